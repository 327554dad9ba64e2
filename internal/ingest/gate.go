package ingest

import (
	"math"

	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

// GateResult is the publish safety gate's verdict on a diff.
type GateResult struct {
	AutoPublish       bool
	LargePriceChanges []model.PriceChange
}

// EvaluateGate decides whether a diff is safe for unattended publish: the
// error rate must stay under policy.MaxErrorRate and no single unit may move
// more than policy.LargeChangePct in either direction. The verdict is
// advisory; a human can always publish (or roll back) regardless.
func EvaluateGate(d model.Diff, policy config.PolicyConfig) GateResult {
	var result GateResult
	for _, pc := range d.PriceChanges {
		if pc.OldPrice <= 0 {
			continue
		}
		if math.Abs(pc.NewPrice-pc.OldPrice)/pc.OldPrice > policy.LargeChangePct {
			result.LargePriceChanges = append(result.LargePriceChanges, pc)
		}
	}
	result.AutoPublish = d.ErrorRate < policy.MaxErrorRate && len(result.LargePriceChanges) == 0
	return result
}
