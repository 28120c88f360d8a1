package models

import (
	"time"
)

// Contact holds both customers and vendors; ContactType tells them apart.
type Contact struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"uniqueIndex:idx_contact_external,priority:1;size:64;not null" json:"organization_id"`
	ExternalId     string    `gorm:"uniqueIndex:idx_contact_external,priority:2;size:128;not null" json:"external_id"`
	Source         string    `gorm:"uniqueIndex:idx_contact_external,priority:3;size:50;not null" json:"source"`
	ContactType    string    `gorm:"size:10;not null" json:"contact_type"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:100" json:"email"`
	Phone          string    `gorm:"size:20" json:"phone"`
	Mobile         string    `gorm:"size:20" json:"mobile"`
	Currency       string    `gorm:"size:3" json:"currency"`
	PayloadHash    string    `gorm:"size:64" json:"payload_hash"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
