package model

import "time"

// PriceList is one ingest event: a developer-supplied spreadsheet upload.
// Multiple lists accumulate per development; rolling back means re-applying
// an older list's stored rows.
type PriceList struct {
	ID          string     `json:"id"`
	DevID       string     `json:"dev_id"`
	Source      string     `json:"source"` // "upload", "ftp", "email"
	FilePath    string     `json:"file_path"`
	ReceivedAt  time.Time  `json:"received_at"`
	ParsedOK    bool       `json:"parsed_ok"` // diff judged auto-publishable
	PublishedAt *time.Time `json:"published_at,omitempty"`
	PublishedBy string     `json:"published_by,omitempty"`
	IsActive    bool       `json:"is_active"` // currently reflected in units
}

// PriceListRow is one parsed line of an uploaded file. Immutable once stored.
// Raw preserves the original column values verbatim so a reviewer can see
// exactly what the source file contained.
type PriceListRow struct {
	ID            string     `json:"id"`
	PriceListID   string     `json:"price_list_id"`
	RowNumber     int        `json:"row_number"` // 1-indexed source row
	UnitCode      string     `json:"unit_code"`
	Beds          int        `json:"beds"`
	SizeSqft      float64    `json:"size_sqft"`
	Price         float64    `json:"price"`
	Status        UnitStatus `json:"status"`
	Building      string     `json:"building,omitempty"`
	Floor         int        `json:"floor,omitempty"`
	ServiceCharge *float64   `json:"service_charge,omitempty"`
	Raw           []string   `json:"raw"`
}
