package model

// PriceChange records one unit's price moving between two snapshots.
type PriceChange struct {
	UnitCode string  `json:"unit_code"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
}

// StatusChange records one unit's status moving between two snapshots.
type StatusChange struct {
	UnitCode  string     `json:"unit_code"`
	OldStatus UnitStatus `json:"old_status"`
	NewStatus UnitStatus `json:"new_status"`
}

// Diff is the computed comparison between an incoming price list and the
// currently stored unit set. It is never persisted; it exists to drive the
// publish safety gate and to be echoed back to the uploader.
type Diff struct {
	NewUnits      int            `json:"new_units"`
	UpdatedUnits  int            `json:"updated_units"`
	RemovedUnits  int            `json:"removed_units"`
	PriceChanges  []PriceChange  `json:"price_changes"`
	StatusChanges []StatusChange `json:"status_changes"`
	// ErrorRate is changed-or-removed units over max(currentCount, 1);
	// a change on a development with no prior inventory reads as 100%.
	ErrorRate   float64 `json:"error_rate"`
	AutoPublish bool    `json:"auto_publish"`
}
