// Package anomaly scans a development's units for data-quality problems after
// a publish: suspicious price drops, duplicated listings, price-per-sqft
// outliers, and missing fields.
package anomaly

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
)

// Validator detects unit anomalies and records them in the store.
type Validator struct {
	store  store.Store
	policy config.PolicyConfig
}

// NewValidator creates a Validator with the given thresholds.
func NewValidator(s store.Store, policy config.PolicyConfig) *Validator {
	return &Validator{store: s, policy: policy}
}

// Run scans all units of a development against the pre-publish price snapshot
// and inserts the detected anomalies in one batch. It returns what it found.
func (v *Validator) Run(ctx context.Context, devID string, snapshot map[string]float64) ([]model.UnitAnomaly, error) {
	units, err := v.store.ListUnits(ctx, devID)
	if err != nil {
		return nil, eris.Wrapf(err, "anomaly: list units %s", devID)
	}

	anomalies := Detect(units, snapshot, v.policy)
	if err := v.store.InsertAnomalies(ctx, anomalies); err != nil {
		return nil, eris.Wrapf(err, "anomaly: insert %s", devID)
	}

	zap.L().Info("anomaly: validated units",
		zap.String("dev_id", devID),
		zap.Int("units", len(units)),
		zap.Int("anomalies", len(anomalies)),
	)
	return anomalies, nil
}

// Detect is the pure detection pass over a unit set. snapshot maps unit
// number to its pre-publish price; a nil snapshot disables drop detection.
func Detect(units []model.Unit, snapshot map[string]float64, policy config.PolicyConfig) []model.UnitAnomaly {
	var out []model.UnitAnomaly
	out = append(out, detectMissingData(units)...)
	out = append(out, detectPriceDrops(units, snapshot, policy.PriceDropPct)...)
	out = append(out, detectDuplicates(units, policy.SizeSimilarityPct)...)
	out = append(out, detectPSFOutliers(units, policy.PSFZScore)...)
	return out
}

// detectMissingData flags zero price or size, one anomaly per missing field.
func detectMissingData(units []model.Unit) []model.UnitAnomaly {
	var out []model.UnitAnomaly
	for _, u := range units {
		if u.Price <= 0 {
			out = append(out, unitAnomaly(u, model.AnomalyMissingData, model.SeverityError,
				map[string]any{"field": "price"}))
		}
		if u.SizeSqft <= 0 {
			out = append(out, unitAnomaly(u, model.AnomalyMissingData, model.SeverityError,
				map[string]any{"field": "size_sqft"}))
		}
	}
	return out
}

// detectPriceDrops flags units whose price fell more than dropPct below the
// pre-publish snapshot.
func detectPriceDrops(units []model.Unit, snapshot map[string]float64, dropPct float64) []model.UnitAnomaly {
	if len(snapshot) == 0 {
		return nil
	}
	var out []model.UnitAnomaly
	for _, u := range units {
		old, ok := snapshot[u.UnitNumber]
		if !ok || old <= 0 || u.Price <= 0 {
			continue
		}
		drop := (old - u.Price) / old
		if drop > dropPct {
			out = append(out, unitAnomaly(u, model.AnomalyPriceDrop, model.SeverityError, map[string]any{
				"old_price": old,
				"new_price": u.Price,
				"drop_pct":  round2(drop * 100),
			}))
		}
	}
	return out
}

// detectDuplicates flags exact unit-code duplicates as errors and
// similar-size pairs within a (beds, building, floor) group as warnings.
func detectDuplicates(units []model.Unit, similarityPct float64) []model.UnitAnomaly {
	var out []model.UnitAnomaly

	byCode := make(map[string]int)
	for _, u := range units {
		byCode[u.UnitNumber]++
	}
	seen := make(map[string]bool)
	for _, u := range units {
		if byCode[u.UnitNumber] > 1 && !seen[u.UnitNumber] {
			seen[u.UnitNumber] = true
			out = append(out, unitAnomaly(u, model.AnomalyDuplicate, model.SeverityError, map[string]any{
				"unit_code": u.UnitNumber,
				"count":     byCode[u.UnitNumber],
			}))
		}
	}

	type groupKey struct {
		beds     int
		building string
		floor    int
	}
	groups := make(map[groupKey][]model.Unit)
	for _, u := range units {
		if u.SizeSqft <= 0 {
			continue
		}
		k := groupKey{u.Beds, u.Building, u.Floor}
		groups[k] = append(groups[k], u)
	}
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.UnitNumber == b.UnitNumber {
					continue
				}
				larger := math.Max(a.SizeSqft, b.SizeSqft)
				diff := math.Abs(a.SizeSqft - b.SizeSqft)
				if diff/larger <= similarityPct {
					out = append(out, unitAnomaly(a, model.AnomalyDuplicate, model.SeverityWarning, map[string]any{
						"unit_code":       a.UnitNumber,
						"other_unit_code": b.UnitNumber,
						"size_diff_pct":   round2(diff / larger * 100),
					}))
				}
			}
		}
	}
	return out
}

// detectPSFOutliers flags units whose price per sqft deviates more than
// zThreshold standard deviations from the population mean. Units with missing
// price or size never reach this check; they are missing_data instead.
func detectPSFOutliers(units []model.Unit, zThreshold float64) []model.UnitAnomaly {
	type psfUnit struct {
		unit model.Unit
		psf  float64
	}
	var pop []psfUnit
	for _, u := range units {
		psf := u.PricePerSqft()
		if psf > 0 && !math.IsInf(psf, 0) && !math.IsNaN(psf) {
			pop = append(pop, psfUnit{u, psf})
		}
	}
	if len(pop) < 2 {
		return nil
	}

	var sum float64
	for _, p := range pop {
		sum += p.psf
	}
	mean := sum / float64(len(pop))

	var variance float64
	for _, p := range pop {
		variance += (p.psf - mean) * (p.psf - mean)
	}
	stddev := math.Sqrt(variance / float64(len(pop)))
	if stddev == 0 {
		return nil
	}

	var out []model.UnitAnomaly
	for _, p := range pop {
		z := (p.psf - mean) / stddev
		if math.Abs(z) > zThreshold {
			out = append(out, unitAnomaly(p.unit, model.AnomalyPSFOutlier, model.SeverityWarning, map[string]any{
				"psf":      round2(p.psf),
				"mean_psf": round2(mean),
				"z_score":  round2(z),
			}))
		}
	}
	return out
}

func unitAnomaly(u model.Unit, typ model.AnomalyType, sev model.AnomalySeverity, details map[string]any) model.UnitAnomaly {
	return model.UnitAnomaly{
		DevID:      u.DevID,
		UnitID:     u.ID,
		UnitNumber: u.UnitNumber,
		Type:       typ,
		Severity:   sev,
		Details:    details,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
