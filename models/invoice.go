package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"uniqueIndex:idx_invoice_external,priority:1;size:64;not null" json:"organization_id"`
	ExternalId     string          `gorm:"uniqueIndex:idx_invoice_external,priority:2;size:128;not null" json:"external_id"`
	Source         string          `gorm:"uniqueIndex:idx_invoice_external,priority:3;size:50;not null" json:"source"`
	InvoiceNumber  string          `gorm:"size:100" json:"invoice_number"`
	ContactId      *int            `gorm:"index" json:"contact_id"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        *time.Time      `json:"due_date"`
	Status         string          `gorm:"size:20;not null" json:"status"`
	Currency       string          `gorm:"size:3" json:"currency"`
	Total          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	// Balance is always recomputed as total - paid_amount on upsert; the
	// upstream figure is never trusted directly.
	Balance     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	Memo        string          `gorm:"type:text" json:"memo"`
	PayloadHash string          `gorm:"size:64" json:"payload_hash"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
