package model

import "time"

// ChangeType classifies an audit-trail event.
type ChangeType string

const (
	ChangePriceListUpload ChangeType = "price_list_upload"
	ChangePublish         ChangeType = "publish"
	ChangeRollback        ChangeType = "rollback"
	ChangeHottestOverride ChangeType = "hottest_override"
	ChangeDescription     ChangeType = "description_update"
	ChangeImageUpdate     ChangeType = "image_update"
)

// ChangeLogEntry is an append-only audit record. Write-only from the
// pipeline's perspective; the admin timeline view consumes it elsewhere.
type ChangeLogEntry struct {
	ID         string         `json:"id"`
	DevID      string         `json:"dev_id"`
	ChangeType ChangeType     `json:"change_type"`
	ChangedAt  time.Time      `json:"changed_at"`
	Details    map[string]any `json:"details,omitempty"`
	Notes      string         `json:"notes,omitempty"`
}
