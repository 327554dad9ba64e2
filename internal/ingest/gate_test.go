package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

var gatePolicy = config.PolicyConfig{
	MaxErrorRate:   0.05,
	LargeChangePct: 0.15,
}

func TestEvaluateGate_SmallCleanDiffAutoPublishes(t *testing.T) {
	d := model.Diff{
		UpdatedUnits: 1,
		ErrorRate:    0.01,
		PriceChanges: []model.PriceChange{
			{UnitCode: "A-101", OldPrice: 400000, NewPrice: 448000}, // +12%
		},
	}

	result := EvaluateGate(d, gatePolicy)
	assert.True(t, result.AutoPublish)
	assert.Empty(t, result.LargePriceChanges)
}

func TestEvaluateGate_HighErrorRateBlocks(t *testing.T) {
	d := model.Diff{NewUnits: 1, ErrorRate: 1.0}

	result := EvaluateGate(d, gatePolicy)
	assert.False(t, result.AutoPublish)
}

func TestEvaluateGate_ErrorRateBoundary(t *testing.T) {
	// The threshold is exclusive: an error rate exactly at MaxErrorRate
	// blocks, just below passes.
	at := EvaluateGate(model.Diff{UpdatedUnits: 5, ErrorRate: 0.05}, gatePolicy)
	assert.False(t, at.AutoPublish)

	below := EvaluateGate(model.Diff{UpdatedUnits: 4, ErrorRate: 0.0499}, gatePolicy)
	assert.True(t, below.AutoPublish)
}

func TestEvaluateGate_LargePriceMoveBlocks(t *testing.T) {
	d := model.Diff{
		ErrorRate: 0.01,
		PriceChanges: []model.PriceChange{
			{UnitCode: "A-101", OldPrice: 400000, NewPrice: 330000}, // -17.5%
		},
	}

	result := EvaluateGate(d, gatePolicy)
	assert.False(t, result.AutoPublish)
	require.Len(t, result.LargePriceChanges, 1)
	assert.Equal(t, "A-101", result.LargePriceChanges[0].UnitCode)
}

func TestEvaluateGate_LargeRiseBlocksToo(t *testing.T) {
	d := model.Diff{
		ErrorRate: 0.01,
		PriceChanges: []model.PriceChange{
			{UnitCode: "A-101", OldPrice: 400000, NewPrice: 480000}, // +20%
		},
	}

	result := EvaluateGate(d, gatePolicy)
	assert.False(t, result.AutoPublish)
	assert.Len(t, result.LargePriceChanges, 1)
}

func TestEvaluateGate_ZeroOldPriceIgnored(t *testing.T) {
	d := model.Diff{
		ErrorRate: 0.01,
		PriceChanges: []model.PriceChange{
			{UnitCode: "A-101", OldPrice: 0, NewPrice: 480000},
		},
	}

	result := EvaluateGate(d, gatePolicy)
	assert.True(t, result.AutoPublish)
}
