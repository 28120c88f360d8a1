package models

import (
	"time"
)

// Account is one chart-of-accounts row ingested from an external system.
// (organization_id, external_id, source) is the idempotency key; ID is the
// local surrogate used by foreign keys from other synced rows.
type Account struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"uniqueIndex:idx_account_external,priority:1;size:64;not null" json:"organization_id"`
	ExternalId     string    `gorm:"uniqueIndex:idx_account_external,priority:2;size:128;not null" json:"external_id"`
	Source         string    `gorm:"uniqueIndex:idx_account_external,priority:3;size:50;not null" json:"source"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Code           string    `gorm:"size:50" json:"code"`
	AccountType    string    `gorm:"size:20;not null" json:"account_type"`
	Description    string    `gorm:"type:text" json:"description"`
	Currency       string    `gorm:"size:3" json:"currency"`
	IsActive       *bool     `gorm:"not null;default:true" json:"is_active"`
	PayloadHash    string    `gorm:"size:64" json:"payload_hash"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
