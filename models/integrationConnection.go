package models

import (
	"errors"
	"time"
)

const (
	IntegrationProviderPitiX = "pitix"
)

const (
	IntegrationStatusConnected    = "connected"
	IntegrationStatusDisconnected = "disconnected"
	IntegrationStatusError        = "error"
)

// ErrNoActiveIntegration is the declared error of the connector factory when
// an organization has no connected integration.
var ErrNoActiveIntegration = errors.New("no active integration for organization")

// IntegrationConnection routes an organization to its connector and holds the
// credentials reference. Provider doubles as the Source stamped on every
// synced row.
type IntegrationConnection struct {
	ID                uint       `gorm:"primary_key" json:"id"`
	OrganizationId    string     `gorm:"uniqueIndex:idx_integration_conn,priority:1;size:64;not null" json:"organization_id"`
	Provider          string     `gorm:"uniqueIndex:idx_integration_conn,priority:2;size:50;not null" json:"provider"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	AuthType          string     `gorm:"size:20" json:"auth_type"`
	AuthSecretRef     string     `gorm:"type:text" json:"auth_secret_ref"`
	StoreId           string     `gorm:"size:100" json:"store_id"`
	StoreName         string     `gorm:"size:255" json:"store_name"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
	LastSuccessSyncAt *time.Time `json:"last_success_sync_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
