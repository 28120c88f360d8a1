package models

import (
	"encoding/json"
	"time"
)

const (
	SyncRunStatusPending   = "pending"
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusPartial   = "partial"
	SyncRunStatusFailed    = "failed"
)

const (
	SyncTypeFull    = "full"
	SyncTypePartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
)

// SyncRun is the durable audit record of one orchestration invocation. Its
// column shape is read by dashboard and alerting code and must stay stable
// even as connectors change.
type SyncRun struct {
	ID               uint       `gorm:"primary_key" json:"id"`
	OrganizationId   string     `gorm:"index;size:64;not null" json:"organization_id"`
	ConnectionId     uint       `gorm:"index;not null" json:"connection_id"`
	Source           string     `gorm:"size:50;not null" json:"source"`
	SyncType         string     `gorm:"size:10;not null" json:"sync_type"`
	EntityTypesJSON  []byte     `gorm:"type:json" json:"entity_types"`
	Status           string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy      string     `gorm:"size:20" json:"triggered_by"`
	StartedAt        *time.Time `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	DurationMs       int64      `json:"duration_ms"`
	CountsJSON       []byte     `gorm:"type:json" json:"counts"`
	ErrorSummary     string     `gorm:"type:text" json:"error_summary"`
	ErrorDetailsJSON []byte     `gorm:"type:json" json:"error_details"`
	ParentRunId      *uint      `gorm:"index" json:"parent_run_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the run reached a final status. A terminal run
// is immutable and must never be executed again.
func (r *SyncRun) IsTerminal() bool {
	switch r.Status {
	case SyncRunStatusCompleted, SyncRunStatusPartial, SyncRunStatusFailed:
		return true
	}
	return false
}

// EntityCounts is the per-entity-type outcome recorded in CountsJSON: either
// created/updated/skipped tallies or an error marker.
type EntityCounts struct {
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

type SyncErrorDetail struct {
	EntityType string `json:"entity_type"`
	Error      string `json:"error"`
}

func EncodeCounts(counts map[string]EntityCounts) []byte {
	b, _ := json.Marshal(counts)
	return b
}

func DecodeCounts(raw []byte) map[string]EntityCounts {
	if len(raw) == 0 {
		return map[string]EntityCounts{}
	}
	var counts map[string]EntityCounts
	if err := json.Unmarshal(raw, &counts); err != nil {
		return map[string]EntityCounts{}
	}
	return counts
}

func EncodeErrorDetails(details []SyncErrorDetail) []byte {
	if len(details) == 0 {
		return nil
	}
	b, _ := json.Marshal(details)
	return b
}

func DecodeErrorDetails(raw []byte) []SyncErrorDetail {
	if len(raw) == 0 {
		return nil
	}
	var details []SyncErrorDetail
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil
	}
	return details
}

func EncodeEntityTypes(types []string) []byte {
	if len(types) == 0 {
		return nil
	}
	b, _ := json.Marshal(types)
	return b
}

func DecodeEntityTypes(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var types []string
	if err := json.Unmarshal(raw, &types); err != nil {
		return nil
	}
	return types
}
