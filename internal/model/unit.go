package model

import "time"

// UnitStatus represents the sales state of a unit.
type UnitStatus string

const (
	UnitStatusAvailable        UnitStatus = "available"
	UnitStatusUnderNegotiation UnitStatus = "under_negotiation"
	UnitStatusSold             UnitStatus = "sold"
)

// ParseUnitStatus normalizes the free-form status strings found in developer
// price lists. Unrecognized values default to available, which is the safe
// direction: a wrongly-available unit is caught at the next upload, a
// wrongly-sold unit disappears from marketing.
func ParseUnitStatus(raw string) UnitStatus {
	switch normalizeToken(raw) {
	case "sold", "exchanged", "completed":
		return UnitStatusSold
	case "reserved", "undernegotiation", "underoffer", "negotiation", "offer":
		// A reservation is not a completed sale; the unit stays in sellable
		// inventory and keeps feeding the starting-price computation.
		return UnitStatusUnderNegotiation
	default:
		return UnitStatusAvailable
	}
}

// Unit is one sellable apartment within a development.
// (dev_id, unit_number) is unique; units are only ever upserted, never deleted.
type Unit struct {
	ID             string     `json:"id"`
	DevID          string     `json:"dev_id"`
	UnitNumber     string     `json:"unit_number"`
	Beds           int        `json:"beds"` // 0 = studio
	SizeSqft       float64    `json:"size_sqft"`
	Price          float64    `json:"price"` // GBP
	Status         UnitStatus `json:"status"`
	Building       string     `json:"building,omitempty"`
	Floor          int        `json:"floor"`
	Aspect         string     `json:"aspect,omitempty"`
	ViewPark       bool       `json:"view_park"`
	ViewRiver      bool       `json:"view_river"`
	HasBalcony     bool       `json:"has_balcony"`
	ServiceCharge  *float64   `json:"service_charge,omitempty"`
	CompletionDate string     `json:"completion_date,omitempty"` // period string, e.g. "Q3 2026"
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Sellable reports whether the unit counts toward public inventory.
func (u Unit) Sellable() bool {
	return u.Status == UnitStatusAvailable || u.Status == UnitStatusUnderNegotiation
}

// PricePerSqft returns the unit's price-per-area, or 0 when size is unknown.
func (u Unit) PricePerSqft() float64 {
	if u.SizeSqft <= 0 {
		return 0
	}
	return u.Price / u.SizeSqft
}
