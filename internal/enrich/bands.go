package enrich

import (
	"strings"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

// Band labels used across listings and marketing copy.
const (
	BandLow     = "low"
	BandAverage = "average"
	BandHigh    = "high"

	BandGood     = "good"
	BandModerate = "moderate"
	BandPoor     = "poor"

	BandLeafy = "leafy"
	BandSome  = "some green space"
	BandUrban = "urban"
)

// CrimeBand bands a monthly street-crime count for a ~1km radius.
func CrimeBand(perMonth float64) string {
	switch {
	case perMonth < 40:
		return BandLow
	case perMonth < 120:
		return BandAverage
	default:
		return BandHigh
	}
}

// AirQualityBand bands a WAQI index value on the standard EPA breakpoints.
func AirQualityBand(aqi int) string {
	switch {
	case aqi <= 50:
		return BandGood
	case aqi <= 100:
		return BandModerate
	default:
		return BandPoor
	}
}

// GreenSpaceBand bands total park area within the search radius.
func GreenSpaceBand(hectares float64) string {
	switch {
	case hectares >= 10:
		return BandLeafy
	case hectares >= 2:
		return BandSome
	default:
		return BandUrban
	}
}

// postcodeEstimates carries rough per-area figures used when an upstream is
// down or a development has no coordinates. Keyed by postcode area (the
// leading letters, e.g. "SW" for SW18).
var postcodeEstimates = map[string]model.AreaInsights{
	"EC": {CrimePerMonth: 150, AirQualityIndex: 85, GreenSpaceHectares: 1},
	"WC": {CrimePerMonth: 160, AirQualityIndex: 85, GreenSpaceHectares: 2},
	"E":  {CrimePerMonth: 110, AirQualityIndex: 70, GreenSpaceHectares: 4},
	"N":  {CrimePerMonth: 90, AirQualityIndex: 65, GreenSpaceHectares: 6},
	"NW": {CrimePerMonth: 80, AirQualityIndex: 60, GreenSpaceHectares: 8},
	"SE": {CrimePerMonth: 100, AirQualityIndex: 65, GreenSpaceHectares: 7},
	"SW": {CrimePerMonth: 70, AirQualityIndex: 60, GreenSpaceHectares: 12},
	"W":  {CrimePerMonth: 95, AirQualityIndex: 75, GreenSpaceHectares: 5},
}

// defaultEstimate covers outer-London and unknown postcodes.
var defaultEstimate = model.AreaInsights{
	CrimePerMonth:      60,
	AirQualityIndex:    55,
	GreenSpaceHectares: 8,
}

// EstimateByPostcode returns banded heuristic insights for a postcode when
// real lookups are unavailable. School counts stay zero: there is no honest
// way to guess Ofsted ratings from a postcode.
func EstimateByPostcode(postcode string) model.AreaInsights {
	est, ok := postcodeEstimates[PostcodeArea(postcode)]
	if !ok {
		est = defaultEstimate
	}
	est.CrimeBand = CrimeBand(est.CrimePerMonth)
	est.AirQualityBand = AirQualityBand(est.AirQualityIndex)
	est.GreenSpaceBand = GreenSpaceBand(est.GreenSpaceHectares)
	est.Estimated = true
	return est
}

// PostcodeArea extracts the leading letters of a UK postcode ("SW18 1AA"
// gives "SW"). Empty input gives "".
func PostcodeArea(postcode string) string {
	pc := strings.ToUpper(strings.TrimSpace(postcode))
	end := 0
	for end < len(pc) && pc[end] >= 'A' && pc[end] <= 'Z' {
		end++
	}
	return pc[:end]
}
