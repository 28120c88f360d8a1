package pitix

import (
	"strings"
	"time"

	"github.com/mmdatafocus/booksync/connector"
)

// mapSaleStatus derives the canonical invoice status from the sale status,
// the payment status, and the due date. PitiX does not track overdue, so it
// is synthesized here from the due date. Every unknown upstream value lands
// on the safe default, never an error.
func mapSaleStatus(saleStatus string, paymentStatus string, dueDate *time.Time, now time.Time) connector.InvoiceStatus {
	switch strings.ToUpper(strings.TrimSpace(saleStatus)) {
	case "DRAFT":
		return connector.InvoiceStatusDraft
	case "VOID":
		return connector.InvoiceStatusVoid
	case "CANCELED", "CANCELLED":
		return connector.InvoiceStatusCancelled
	case "COMPLETED", "CONFIRMED", "CLOSED", "":
		// Open document: the payment status decides.
	default:
		// Unknown sale status: treat as an open document.
	}

	switch strings.ToUpper(strings.TrimSpace(paymentStatus)) {
	case "PAID":
		return connector.InvoiceStatusPaid
	case "PARTIAL", "PARTIALLY_PAID":
		if pastDue(dueDate, now) {
			return connector.InvoiceStatusOverdue
		}
		return connector.InvoiceStatusPartiallyPaid
	case "UNPAID", "PENDING", "":
		if pastDue(dueDate, now) {
			return connector.InvoiceStatusOverdue
		}
		return connector.InvoiceStatusSent
	default:
		if pastDue(dueDate, now) {
			return connector.InvoiceStatusOverdue
		}
		return connector.InvoiceStatusSent
	}
}

// mapExpenseStatus is the bill-side mapping for expense documents.
func mapExpenseStatus(status string, dueDate *time.Time, now time.Time) connector.BillStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "DRAFT":
		return connector.BillStatusDraft
	case "VOID":
		return connector.BillStatusVoid
	case "CANCELED", "CANCELLED":
		return connector.BillStatusCancelled
	case "PAID":
		return connector.BillStatusPaid
	case "PARTIAL", "PARTIALLY_PAID":
		if pastDue(dueDate, now) {
			return connector.BillStatusOverdue
		}
		return connector.BillStatusPartiallyPaid
	case "APPROVED", "RECEIVED", "OPEN", "":
		if pastDue(dueDate, now) {
			return connector.BillStatusOverdue
		}
		return connector.BillStatusReceived
	default:
		if pastDue(dueDate, now) {
			return connector.BillStatusOverdue
		}
		return connector.BillStatusReceived
	}
}

func pastDue(dueDate *time.Time, now time.Time) bool {
	return dueDate != nil && dueDate.Before(now)
}
