package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BankTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrganizationId  string          `gorm:"uniqueIndex:idx_bank_txn_external,priority:1;size:64;not null" json:"organization_id"`
	ExternalId      string          `gorm:"uniqueIndex:idx_bank_txn_external,priority:2;size:128;not null" json:"external_id"`
	Source          string          `gorm:"uniqueIndex:idx_bank_txn_external,priority:3;size:50;not null" json:"source"`
	AccountId       *int            `gorm:"index" json:"account_id"`
	TransactionDate time.Time       `json:"transaction_date"`
	TransactionType string          `gorm:"size:10;not null" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Currency        string          `gorm:"size:3" json:"currency"`
	Description     string          `gorm:"type:text" json:"description"`
	Reference       string          `gorm:"size:100" json:"reference"`
	PayloadHash     string          `gorm:"size:64" json:"payload_hash"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
