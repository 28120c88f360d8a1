package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment may reference a contact, an invoice or a bill; all three are
// nullable because the referenced row may not have been synced yet.
type Payment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"uniqueIndex:idx_payment_external,priority:1;size:64;not null" json:"organization_id"`
	ExternalId     string          `gorm:"uniqueIndex:idx_payment_external,priority:2;size:128;not null" json:"external_id"`
	Source         string          `gorm:"uniqueIndex:idx_payment_external,priority:3;size:50;not null" json:"source"`
	PaymentNumber  string          `gorm:"size:100" json:"payment_number"`
	ContactId      *int            `gorm:"index" json:"contact_id"`
	InvoiceId      *int            `gorm:"index" json:"invoice_id"`
	BillId         *int            `gorm:"index" json:"bill_id"`
	PaymentDate    time.Time       `json:"payment_date"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Currency       string          `gorm:"size:3" json:"currency"`
	Method         string          `gorm:"size:50" json:"method"`
	PayloadHash    string          `gorm:"size:64" json:"payload_hash"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
