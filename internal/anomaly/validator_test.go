package anomaly

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
)

var testPolicy = config.PolicyConfig{
	MaxErrorRate:      0.05,
	LargeChangePct:    0.15,
	PriceDropPct:      0.20,
	PSFZScore:         3.0,
	SizeSimilarityPct: 0.03,
}

func findByType(anomalies []model.UnitAnomaly, typ model.AnomalyType) []model.UnitAnomaly {
	var out []model.UnitAnomaly
	for _, a := range anomalies {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestDetect_PriceDrop(t *testing.T) {
	units := []model.Unit{
		{UnitNumber: "A-101", Beds: 1, SizeSqft: 540, Price: 380000, Status: model.UnitStatusAvailable},
		{UnitNumber: "A-102", Beds: 1, SizeSqft: 545, Price: 470000, Status: model.UnitStatusAvailable},
	}
	snapshot := map[string]float64{
		"A-101": 500000, // 24% drop
		"A-102": 480000, // 2% drop
	}

	got := findByType(Detect(units, snapshot, testPolicy), model.AnomalyPriceDrop)
	require.Len(t, got, 1)
	assert.Equal(t, "A-101", got[0].UnitNumber)
	assert.Equal(t, model.SeverityError, got[0].Severity)
	assert.InDelta(t, 24.0, got[0].Details["drop_pct"].(float64), 0.01)
	assert.InDelta(t, 500000, got[0].Details["old_price"].(float64), 0.01)
}

func TestDetect_PriceDrop_NewUnitIgnored(t *testing.T) {
	units := []model.Unit{
		{UnitNumber: "A-103", Beds: 1, SizeSqft: 540, Price: 300000, Status: model.UnitStatusAvailable},
	}
	// Not in the snapshot: brand new unit, no drop to measure.
	got := findByType(Detect(units, map[string]float64{"A-101": 500000}, testPolicy), model.AnomalyPriceDrop)
	assert.Empty(t, got)
}

func TestDetect_MissingDataNotPSFOutlier(t *testing.T) {
	// A unit whose price failed to parse (coerced to 0) must surface as
	// missing data, not as a grotesque price-per-sqft outlier.
	units := []model.Unit{
		{UnitNumber: "A-101", Beds: 1, SizeSqft: 1000, Price: 0, Status: model.UnitStatusAvailable},
		{UnitNumber: "A-102", Beds: 1, SizeSqft: 540, Price: 465000, Status: model.UnitStatusAvailable},
		{UnitNumber: "A-103", Beds: 1, SizeSqft: 550, Price: 470000, Status: model.UnitStatusAvailable},
	}

	anomalies := Detect(units, nil, testPolicy)

	missing := findByType(anomalies, model.AnomalyMissingData)
	require.Len(t, missing, 1)
	assert.Equal(t, "A-101", missing[0].UnitNumber)
	assert.Equal(t, "price", missing[0].Details["field"])

	// The zero-price unit is excluded from the PSF population entirely.
	assert.Empty(t, findByType(anomalies, model.AnomalyPSFOutlier))
}

func TestDetect_MissingData_BothFields(t *testing.T) {
	units := []model.Unit{
		{UnitNumber: "A-101", Beds: 1, SizeSqft: 0, Price: 0, Status: model.UnitStatusAvailable},
	}
	got := findByType(Detect(units, nil, testPolicy), model.AnomalyMissingData)
	require.Len(t, got, 2)
	fields := []string{got[0].Details["field"].(string), got[1].Details["field"].(string)}
	assert.ElementsMatch(t, []string{"price", "size_sqft"}, fields)
}

func TestDetect_DuplicateByCode(t *testing.T) {
	units := []model.Unit{
		{UnitNumber: "A-101", Beds: 1, SizeSqft: 540, Price: 465000},
		{UnitNumber: "A-101", Beds: 1, SizeSqft: 540, Price: 465000},
	}
	got := findByType(Detect(units, nil, testPolicy), model.AnomalyDuplicate)
	// One code-duplicate error, reported once per code.
	codeDups := 0
	for _, a := range got {
		if a.Severity == model.SeverityError {
			codeDups++
			assert.Equal(t, 2, int(a.Details["count"].(int)))
		}
	}
	assert.Equal(t, 1, codeDups)
}

func TestDetect_DuplicateBySimilarSize(t *testing.T) {
	units := []model.Unit{
		{UnitNumber: "A-101", Beds: 2, Building: "A", Floor: 1, SizeSqft: 780, Price: 640000},
		{UnitNumber: "A-102", Beds: 2, Building: "A", Floor: 1, SizeSqft: 790, Price: 650000}, // 1.27% size diff
		{UnitNumber: "A-103", Beds: 2, Building: "A", Floor: 1, SizeSqft: 900, Price: 720000}, // well clear
		{UnitNumber: "B-101", Beds: 2, Building: "B", Floor: 1, SizeSqft: 781, Price: 641000}, // other building
	}
	got := findByType(Detect(units, nil, testPolicy), model.AnomalyDuplicate)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityWarning, got[0].Severity)
	assert.Equal(t, "A-101", got[0].Details["unit_code"])
	assert.Equal(t, "A-102", got[0].Details["other_unit_code"])
	assert.InDelta(t, 1.27, got[0].Details["size_diff_pct"].(float64), 0.01)
}

func TestDetect_PSFOutlier(t *testing.T) {
	// Nine tightly clustered units and one priced an order of magnitude off.
	units := make([]model.Unit, 0, 10)
	for i := 0; i < 9; i++ {
		units = append(units, model.Unit{
			UnitNumber: "A-10" + string(rune('0'+i)), Beds: 1, SizeSqft: 540,
			Price: 460000 + float64(i)*2000,
		})
	}
	units = append(units, model.Unit{UnitNumber: "A-999", Beds: 1, SizeSqft: 540, Price: 4600000})

	got := findByType(Detect(units, nil, testPolicy), model.AnomalyPSFOutlier)
	require.Len(t, got, 1)
	assert.Equal(t, "A-999", got[0].UnitNumber)
	assert.Equal(t, model.SeverityWarning, got[0].Severity)
	assert.Greater(t, got[0].Details["z_score"].(float64), 2.9)
}

func TestDetect_PSFOutlier_ZeroStddevSkipped(t *testing.T) {
	units := []model.Unit{
		{UnitNumber: "A-101", Beds: 1, SizeSqft: 500, Price: 400000},
		{UnitNumber: "A-102", Beds: 1, SizeSqft: 500, Price: 400000},
		{UnitNumber: "A-103", Beds: 1, SizeSqft: 500, Price: 400000},
	}
	got := findByType(Detect(units, nil, testPolicy), model.AnomalyPSFOutlier)
	assert.Empty(t, got)
}

func TestValidator_Run_PersistsBatch(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.UpsertDevelopment(ctx, model.Development{ID: "dev1", Name: "Riverside"}))
	require.NoError(t, s.UpsertUnit(ctx, model.Unit{
		DevID: "dev1", UnitNumber: "A-101", Beds: 1, SizeSqft: 0, Price: 465000,
		Status: model.UnitStatusAvailable,
	}))

	v := NewValidator(s, testPolicy)
	found, err := v.Run(ctx, "dev1", nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, model.AnomalyMissingData, found[0].Type)

	stored, err := s.ListAnomalies(ctx, "dev1", true)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "size_sqft", stored[0].Details["field"])
}
