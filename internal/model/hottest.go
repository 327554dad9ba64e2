package model

import "time"

// HottestUnit is the single "deal of the moment" unit elected per development.
// At most one current row per dev_id (upsert on conflict). When ManualOverride
// is set the automatic scorer must not overwrite the row.
type HottestUnit struct {
	DevID          string    `json:"dev_id"`
	UnitID         string    `json:"unit_id"`
	UnitNumber     string    `json:"unit_number"`
	Score          float64   `json:"score"`
	Reason         string    `json:"reason"`
	ManualOverride bool      `json:"manual_override"`
	UpdatedAt      time.Time `json:"updated_at"`
}
