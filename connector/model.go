package connector

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical account classifications shared by every connector.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

type ContactType string

const (
	ContactTypeCustomer ContactType = "customer"
	ContactTypeVendor   ContactType = "vendor"
)

// Canonical invoice statuses. Connectors map provider vocabularies into this
// set; unmapped upstream values land on InvoiceStatusSent, never an error.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusVoid          InvoiceStatus = "void"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// Canonical bill statuses; the safe default for unknown upstream values is
// BillStatusReceived.
type BillStatus string

const (
	BillStatusDraft         BillStatus = "draft"
	BillStatusReceived      BillStatus = "received"
	BillStatusPaid          BillStatus = "paid"
	BillStatusPartiallyPaid BillStatus = "partially_paid"
	BillStatusOverdue       BillStatus = "overdue"
	BillStatusVoid          BillStatus = "void"
	BillStatusCancelled     BillStatus = "cancelled"
)

type BankTransactionType string

const (
	BankTransactionDeposit    BankTransactionType = "deposit"
	BankTransactionWithdrawal BankTransactionType = "withdrawal"
)

// Normalized DTOs are the provider-agnostic shape connectors hand to the sync
// engine. They are transient: produced by one fetch page, consumed by the
// upsert step, never persisted as-is. ExternalId is required and must be
// stable; cross-references carry the referenced record's external id, not a
// local row id. RawData holds the original provider record and is used only
// for change detection.

type NormalizedAccount struct {
	ExternalId  string          `json:"external_id"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	AccountType AccountType     `json:"account_type"`
	Description string          `json:"description"`
	Currency    string          `json:"currency"`
	IsActive    bool            `json:"is_active"`
	RawData     json.RawMessage `json:"raw_data"`
}

type NormalizedContact struct {
	ExternalId  string          `json:"external_id"`
	ContactType ContactType     `json:"contact_type"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Mobile      string          `json:"mobile"`
	Currency    string          `json:"currency"`
	RawData     json.RawMessage `json:"raw_data"`
}

type NormalizedInvoice struct {
	ExternalId        string          `json:"external_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	ContactExternalId string          `json:"contact_external_id"`
	IssueDate         time.Time       `json:"issue_date"`
	DueDate           *time.Time      `json:"due_date"`
	Status            InvoiceStatus   `json:"status"`
	Currency          string          `json:"currency"`
	Total             decimal.Decimal `json:"total"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Memo              string          `json:"memo"`
	RawData           json.RawMessage `json:"raw_data"`
}

type NormalizedBill struct {
	ExternalId       string          `json:"external_id"`
	BillNumber       string          `json:"bill_number"`
	VendorExternalId string          `json:"vendor_external_id"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          *time.Time      `json:"due_date"`
	Status           BillStatus      `json:"status"`
	Currency         string          `json:"currency"`
	Total            decimal.Decimal `json:"total"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	Memo             string          `json:"memo"`
	RawData          json.RawMessage `json:"raw_data"`
}

type NormalizedPayment struct {
	ExternalId        string          `json:"external_id"`
	PaymentNumber     string          `json:"payment_number"`
	PaymentDate       time.Time       `json:"payment_date"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Method            string          `json:"method"`
	ContactExternalId string          `json:"contact_external_id"`
	InvoiceExternalId string          `json:"invoice_external_id"`
	BillExternalId    string          `json:"bill_external_id"`
	RawData           json.RawMessage `json:"raw_data"`
}

type NormalizedBankTransaction struct {
	ExternalId        string              `json:"external_id"`
	AccountExternalId string              `json:"account_external_id"`
	TransactionDate   time.Time           `json:"transaction_date"`
	TransactionType   BankTransactionType `json:"transaction_type"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	Description       string              `json:"description"`
	Reference         string              `json:"reference"`
	RawData           json.RawMessage     `json:"raw_data"`
}

type NormalizedJournalLine struct {
	AccountExternalId string          `json:"account_external_id"`
	Description       string          `json:"description"`
	Debit             decimal.Decimal `json:"debit"`
	Credit            decimal.Decimal `json:"credit"`
}

type NormalizedJournalEntry struct {
	ExternalId  string                  `json:"external_id"`
	EntryNumber string                  `json:"entry_number"`
	EntryDate   time.Time               `json:"entry_date"`
	Memo        string                  `json:"memo"`
	Currency    string                  `json:"currency"`
	TotalDebit  decimal.Decimal         `json:"total_debit"`
	TotalCredit decimal.Decimal         `json:"total_credit"`
	Lines       []NormalizedJournalLine `json:"lines"`
	RawData     json.RawMessage         `json:"raw_data"`
}
