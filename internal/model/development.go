package model

import "time"

// Development is a marketed new-build scheme containing many sellable units.
type Development struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Postcode string  `json:"postcode"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	// StartingPrices maps bed count to the minimum price across sellable
	// units. Recomputed by every publish; shown as "from £X" on listings.
	StartingPrices map[int]float64 `json:"starting_prices,omitempty"`
	Description    string          `json:"description,omitempty"`
	Insights       *AreaInsights   `json:"insights,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AreaInsights holds location-enrichment facts for a development. Estimated
// is true when an upstream source was unreachable and the values came from
// the postcode-prefix heuristic instead.
type AreaInsights struct {
	CrimePerMonth      float64   `json:"crime_per_month"`
	CrimeBand          string    `json:"crime_band"`
	AirQualityIndex    int       `json:"air_quality_index"`
	AirQualityBand     string    `json:"air_quality_band"`
	GreenSpaceHectares float64   `json:"green_space_hectares"`
	GreenSpaceBand     string    `json:"green_space_band"`
	SchoolsOutstanding int       `json:"schools_outstanding"`
	SchoolsGood        int       `json:"schools_good"`
	Estimated          bool      `json:"estimated"`
	UpdatedAt          time.Time `json:"updated_at"`
}
