package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/booksync/connector"
	"github.com/mmdatafocus/booksync/models"
	"github.com/mmdatafocus/booksync/utils"
)

type upsertOutcome int

const (
	outcomeCreated upsertOutcome = iota + 1
	outcomeUpdated
	outcomeSkipped
)

// ErrMissingExternalId means a connector produced a record without a stable
// external id. There is no safe way to upsert such a record, so the whole
// entity type fails instead of silently dropping rows.
var ErrMissingExternalId = errors.New("record is missing its external id")

// syncScope pins every upsert in a run to one organization and one source
// system.
type syncScope struct {
	organizationId string
	source         string
}

func requireExternalId(entity, externalId string) (string, error) {
	externalId = strings.TrimSpace(externalId)
	if externalId == "" {
		return "", fmt.Errorf("%s: %w", entity, ErrMissingExternalId)
	}
	return externalId, nil
}

// resolveContactID maps a referenced record's external id onto the local row
// id. A blank or unknown reference yields nil; referenced rows may simply not
// have been synced yet, and a later run backfills the link.
func resolveContactID(ctx context.Context, st Store, scope syncScope, externalId string) (*int, error) {
	externalId = strings.TrimSpace(externalId)
	if externalId == "" {
		return nil, nil
	}
	return st.ContactID(ctx, scope.organizationId, externalId, scope.source)
}

func resolveAccountID(ctx context.Context, st Store, scope syncScope, externalId string) (*int, error) {
	externalId = strings.TrimSpace(externalId)
	if externalId == "" {
		return nil, nil
	}
	return st.AccountID(ctx, scope.organizationId, externalId, scope.source)
}

func resolveInvoiceID(ctx context.Context, st Store, scope syncScope, externalId string) (*int, error) {
	externalId = strings.TrimSpace(externalId)
	if externalId == "" {
		return nil, nil
	}
	return st.InvoiceID(ctx, scope.organizationId, externalId, scope.source)
}

func resolveBillID(ctx context.Context, st Store, scope syncScope, externalId string) (*int, error) {
	externalId = strings.TrimSpace(externalId)
	if externalId == "" {
		return nil, nil
	}
	return st.BillID(ctx, scope.organizationId, externalId, scope.source)
}

// unchanged reports whether the stored row's payload hash proves the incoming
// record is byte-for-byte (modulo key order) the one we already hold. An
// empty hash means the connector sent no raw payload, so we always take the
// update path.
func unchanged(existingHash, incomingHash string) bool {
	return incomingHash != "" && existingHash == incomingHash
}

func upsertAccount(ctx context.Context, st Store, scope syncScope, dto connector.NormalizedAccount) (upsertOutcome, error) {
	externalId, err := requireExternalId("account", dto.ExternalId)
	if err != nil {
		return 0, err
	}
	hash := utils.PayloadHash(dto.RawData)

	row, err := st.FindAccount(ctx, scope.organizationId, externalId, scope.source)
	if err != nil {
		return 0, err
	}
	outcome := outcomeUpdated
	if row == nil {
		row = &models.Account{
			OrganizationId: scope.organizationId,
			ExternalId:     externalId,
			Source:         scope.source,
		}
		outcome = outcomeCreated
	} else if unchanged(row.PayloadHash, hash) {
		return outcomeSkipped, nil
	}

	isActive := dto.IsActive
	row.Name = dto.Name
	row.Code = dto.Code
	row.AccountType = string(dto.AccountType)
	row.Description = dto.Description
	row.Currency = dto.Currency
	row.IsActive = &isActive
	row.PayloadHash = hash
	if err := st.SaveAccount(ctx, row); err != nil {
		return 0, err
	}
	return outcome, nil
}

func upsertContact(ctx context.Context, st Store, scope syncScope, dto connector.NormalizedContact) (upsertOutcome, error) {
	externalId, err := requireExternalId("contact", dto.ExternalId)
	if err != nil {
		return 0, err
	}
	hash := utils.PayloadHash(dto.RawData)

	row, err := st.FindContact(ctx, scope.organizationId, externalId, scope.source)
	if err != nil {
		return 0, err
	}
	outcome := outcomeUpdated
	if row == nil {
		row = &models.Contact{
			OrganizationId: scope.organizationId,
			ExternalId:     externalId,
			Source:         scope.source,
		}
		outcome = outcomeCreated
	} else if unchanged(row.PayloadHash, hash) {
		return outcomeSkipped, nil
	}

	row.ContactType = string(dto.ContactType)
	row.Name = dto.Name
	row.Email = dto.Email
	row.Phone = utils.NormalizePhone(dto.Phone)
	row.Mobile = utils.NormalizePhone(dto.Mobile)
	row.Currency = dto.Currency
	row.PayloadHash = hash
	if err := st.SaveContact(ctx, row); err != nil {
		return 0, err
	}
	return outcome, nil
}

func upsertInvoice(ctx context.Context, st Store, scope syncScope, dto connector.NormalizedInvoice) (upsertOutcome, error) {
	externalId, err := requireExternalId("invoice", dto.ExternalId)
	if err != nil {
		return 0, err
	}
	hash := utils.PayloadHash(dto.RawData)

	row, err := st.FindInvoice(ctx, scope.organizationId, externalId, scope.source)
	if err != nil {
		return 0, err
	}
	outcome := outcomeUpdated
	if row == nil {
		row = &models.Invoice{
			OrganizationId: scope.organizationId,
			ExternalId:     externalId,
			Source:         scope.source,
		}
		outcome = outcomeCreated
	} else if unchanged(row.PayloadHash, hash) {
		return outcomeSkipped, nil
	}

	// Re-resolved on every update too, so a contact that arrived after the
	// invoice gets linked once the invoice changes again.
	contactId, err := resolveContactID(ctx, st, scope, dto.ContactExternalId)
	if err != nil {
		return 0, err
	}

	row.InvoiceNumber = dto.InvoiceNumber
	row.ContactId = contactId
	row.IssueDate = dto.IssueDate
	row.DueDate = dto.DueDate
	row.Status = string(dto.Status)
	row.Currency = dto.Currency
	row.Total = dto.Total
	row.PaidAmount = dto.PaidAmount
	row.Balance = dto.Total.Sub(dto.PaidAmount)
	row.Memo = dto.Memo
	row.PayloadHash = hash
	if err := st.SaveInvoice(ctx, row); err != nil {
		return 0, err
	}
	return outcome, nil
}

func upsertBill(ctx context.Context, st Store, scope syncScope, dto connector.NormalizedBill) (upsertOutcome, error) {
	externalId, err := requireExternalId("bill", dto.ExternalId)
	if err != nil {
		return 0, err
	}
	hash := utils.PayloadHash(dto.RawData)

	row, err := st.FindBill(ctx, scope.organizationId, externalId, scope.source)
	if err != nil {
		return 0, err
	}
	outcome := outcomeUpdated
	if row == nil {
		row = &models.Bill{
			OrganizationId: scope.organizationId,
			ExternalId:     externalId,
			Source:         scope.source,
		}
		outcome = outcomeCreated
	} else if unchanged(row.PayloadHash, hash) {
		return outcomeSkipped, nil
	}

	contactId, err := resolveContactID(ctx, st, scope, dto.VendorExternalId)
	if err != nil {
		return 0, err
	}

	row.BillNumber = dto.BillNumber
	row.ContactId = contactId
	row.IssueDate = dto.IssueDate
	row.DueDate = dto.DueDate
	row.Status = string(dto.Status)
	row.Currency = dto.Currency
	row.Total = dto.Total
	row.PaidAmount = dto.PaidAmount
	row.Balance = dto.Total.Sub(dto.PaidAmount)
	row.Memo = dto.Memo
	row.PayloadHash = hash
	if err := st.SaveBill(ctx, row); err != nil {
		return 0, err
	}
	return outcome, nil
}

func upsertPayment(ctx context.Context, st Store, scope syncScope, dto connector.NormalizedPayment) (upsertOutcome, error) {
	externalId, err := requireExternalId("payment", dto.ExternalId)
	if err != nil {
		return 0, err
	}
	hash := utils.PayloadHash(dto.RawData)

	row, err := st.FindPayment(ctx, scope.organizationId, externalId, scope.source)
	if err != nil {
		return 0, err
	}
	outcome := outcomeUpdated
	if row == nil {
		row = &models.Payment{
			OrganizationId: scope.organizationId,
			ExternalId:     externalId,
			Source:         scope.source,
		}
		outcome = outcomeCreated
	} else if unchanged(row.PayloadHash, hash) {
		return outcomeSkipped, nil
	}

	contactId, err := resolveContactID(ctx, st, scope, dto.ContactExternalId)
	if err != nil {
		return 0, err
	}
	invoiceId, err := resolveInvoiceID(ctx, st, scope, dto.InvoiceExternalId)
	if err != nil {
		return 0, err
	}
	billId, err := resolveBillID(ctx, st, scope, dto.BillExternalId)
	if err != nil {
		return 0, err
	}

	row.PaymentNumber = dto.PaymentNumber
	row.ContactId = contactId
	row.InvoiceId = invoiceId
	row.BillId = billId
	row.PaymentDate = dto.PaymentDate
	row.Amount = dto.Amount
	row.Currency = dto.Currency
	row.Method = dto.Method
	row.PayloadHash = hash
	if err := st.SavePayment(ctx, row); err != nil {
		return 0, err
	}
	return outcome, nil
}

func upsertBankTransaction(ctx context.Context, st Store, scope syncScope, dto connector.NormalizedBankTransaction) (upsertOutcome, error) {
	externalId, err := requireExternalId("bank_transaction", dto.ExternalId)
	if err != nil {
		return 0, err
	}
	hash := utils.PayloadHash(dto.RawData)

	row, err := st.FindBankTransaction(ctx, scope.organizationId, externalId, scope.source)
	if err != nil {
		return 0, err
	}
	outcome := outcomeUpdated
	if row == nil {
		row = &models.BankTransaction{
			OrganizationId: scope.organizationId,
			ExternalId:     externalId,
			Source:         scope.source,
		}
		outcome = outcomeCreated
	} else if unchanged(row.PayloadHash, hash) {
		return outcomeSkipped, nil
	}

	accountId, err := resolveAccountID(ctx, st, scope, dto.AccountExternalId)
	if err != nil {
		return 0, err
	}

	row.AccountId = accountId
	row.TransactionDate = dto.TransactionDate
	row.TransactionType = string(dto.TransactionType)
	row.Amount = dto.Amount
	row.Currency = dto.Currency
	row.Description = dto.Description
	row.Reference = dto.Reference
	row.PayloadHash = hash
	if err := st.SaveBankTransaction(ctx, row); err != nil {
		return 0, err
	}
	return outcome, nil
}

func upsertJournalEntry(ctx context.Context, st Store, scope syncScope, dto connector.NormalizedJournalEntry) (upsertOutcome, error) {
	externalId, err := requireExternalId("journal_entry", dto.ExternalId)
	if err != nil {
		return 0, err
	}
	hash := utils.PayloadHash(dto.RawData)

	row, err := st.FindJournalEntry(ctx, scope.organizationId, externalId, scope.source)
	if err != nil {
		return 0, err
	}
	outcome := outcomeUpdated
	if row == nil {
		row = &models.JournalEntry{
			OrganizationId: scope.organizationId,
			ExternalId:     externalId,
			Source:         scope.source,
		}
		outcome = outcomeCreated
	} else if unchanged(row.PayloadHash, hash) {
		return outcomeSkipped, nil
	}

	lines, err := json.Marshal(dto.Lines)
	if err != nil {
		return 0, fmt.Errorf("journal_entry %s: encode lines: %w", externalId, err)
	}

	row.EntryNumber = dto.EntryNumber
	row.EntryDate = dto.EntryDate
	row.Memo = dto.Memo
	row.Currency = dto.Currency
	row.TotalDebit = dto.TotalDebit
	row.TotalCredit = dto.TotalCredit
	row.LinesJSON = lines
	row.PayloadHash = hash
	if err := st.SaveJournalEntry(ctx, row); err != nil {
		return 0, err
	}
	return outcome, nil
}
