package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry stores its lines as normalized JSON; line-level account
// references keep their external ids and are resolved by reporting code on
// read, not by the sync engine.
type JournalEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"uniqueIndex:idx_journal_external,priority:1;size:64;not null" json:"organization_id"`
	ExternalId     string          `gorm:"uniqueIndex:idx_journal_external,priority:2;size:128;not null" json:"external_id"`
	Source         string          `gorm:"uniqueIndex:idx_journal_external,priority:3;size:50;not null" json:"source"`
	EntryNumber    string          `gorm:"size:100" json:"entry_number"`
	EntryDate      time.Time       `json:"entry_date"`
	Memo           string          `gorm:"type:text" json:"memo"`
	Currency       string          `gorm:"size:3" json:"currency"`
	TotalDebit     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_debit"`
	TotalCredit    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_credit"`
	LinesJSON      []byte          `gorm:"type:json" json:"lines"`
	PayloadHash    string          `gorm:"size:64" json:"payload_hash"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
