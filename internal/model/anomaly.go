package model

import "time"

// AnomalyType classifies a data-quality finding.
type AnomalyType string

const (
	AnomalyPriceDrop   AnomalyType = "price_drop"
	AnomalyDuplicate   AnomalyType = "duplicate"
	AnomalyPSFOutlier  AnomalyType = "psf_outlier"
	AnomalyMissingData AnomalyType = "missing_data"
)

// AnomalySeverity distinguishes blocking problems from advisories.
type AnomalySeverity string

const (
	SeverityError   AnomalySeverity = "error"
	SeverityWarning AnomalySeverity = "warning"
)

// UnitAnomaly is an append-only data-quality finding raised after a publish.
// Only the Resolved flag is ever mutated, and only by a human action.
type UnitAnomaly struct {
	ID         string          `json:"id"`
	DevID      string          `json:"dev_id"`
	UnitID     string          `json:"unit_id,omitempty"`
	UnitNumber string          `json:"unit_number,omitempty"`
	Type       AnomalyType     `json:"anomaly_type"`
	Severity   AnomalySeverity `json:"severity"`
	Details    map[string]any  `json:"details"`
	DetectedAt time.Time       `json:"detected_at"`
	Resolved   bool            `json:"resolved"`
}
