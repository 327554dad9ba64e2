// Package hottest scores a development's units and picks the single best
// value for buyers, with a human-readable justification.
package hottest

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
)

// ErrNoEligibleUnits is returned when a development has no available or
// under-negotiation units to score.
var ErrNoEligibleUnits = eris.New("hottest: no eligible units")

// OverrideScore is the score assigned to a manually picked hottest unit.
const OverrideScore = 100

// component is one scored aspect of a unit, kept for reason-text assembly.
type component struct {
	points   float64
	sentence string
}

// scoredUnit pairs a unit with its total score and fired components.
type scoredUnit struct {
	unit       model.Unit
	score      float64
	components []component
}

// Scorer computes and persists the hottest unit for a development.
type Scorer struct {
	store store.Store
	now   func() time.Time
}

// NewScorer creates a Scorer.
func NewScorer(s store.Store) *Scorer {
	return &Scorer{store: s, now: time.Now}
}

// Refresh rescores the development's units and upserts the winner. A manual
// override in place wins: the persisted override row is returned unchanged
// rather than a computed score the store-level guard would discard anyway.
func (s *Scorer) Refresh(ctx context.Context, devID string) (*model.HottestUnit, error) {
	current, err := s.store.GetHottestUnit(ctx, devID)
	if err != nil {
		return nil, eris.Wrapf(err, "hottest: load current %s", devID)
	}
	if current != nil && current.ManualOverride {
		zap.L().Info("hottest: manual override in place, refresh skipped",
			zap.String("dev_id", devID),
			zap.String("unit", current.UnitNumber),
		)
		return current, nil
	}

	units, err := s.store.ListUnits(ctx, devID)
	if err != nil {
		return nil, eris.Wrapf(err, "hottest: list units %s", devID)
	}

	winner, err := s.pick(units)
	if err != nil {
		return nil, err
	}

	h := model.HottestUnit{
		DevID:      devID,
		UnitID:     winner.unit.ID,
		UnitNumber: winner.unit.UnitNumber,
		Score:      winner.score,
		Reason:     buildReason(winner),
	}
	if err := s.store.UpsertHottestUnit(ctx, h); err != nil {
		return nil, eris.Wrapf(err, "hottest: upsert %s", devID)
	}

	zap.L().Info("hottest: refreshed",
		zap.String("dev_id", devID),
		zap.String("unit", winner.unit.UnitNumber),
		zap.Float64("score", winner.score),
	)
	return &h, nil
}

// Override pins the hottest unit to a human choice with score 100. The
// scorer's automatic refreshes refuse to overwrite it until cleared.
func (s *Scorer) Override(ctx context.Context, devID, unitID, note string) (*model.HottestUnit, error) {
	unit, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, eris.Wrapf(err, "hottest: load unit %s", unitID)
	}
	if unit.DevID != devID {
		return nil, eris.Errorf("hottest: unit %s belongs to %s, not %s", unitID, unit.DevID, devID)
	}

	h := model.HottestUnit{
		DevID:          devID,
		UnitID:         unit.ID,
		UnitNumber:     unit.UnitNumber,
		Score:          OverrideScore,
		Reason:         note,
		ManualOverride: true,
	}
	if err := s.store.UpsertHottestUnit(ctx, h); err != nil {
		return nil, eris.Wrapf(err, "hottest: override %s", devID)
	}

	if err := s.store.AppendChangeLog(ctx, model.ChangeLogEntry{
		DevID:      devID,
		ChangeType: model.ChangeHottestOverride,
		Details:    map[string]any{"unit_id": unit.ID, "unit_number": unit.UnitNumber},
		Notes:      note,
	}); err != nil {
		zap.L().Error("hottest: change log append failed", zap.String("dev_id", devID), zap.Error(err))
	}
	return &h, nil
}

// ClearOverride releases a manual pick and immediately rescores.
func (s *Scorer) ClearOverride(ctx context.Context, devID string) (*model.HottestUnit, error) {
	if err := s.store.ClearHottestOverride(ctx, devID); err != nil {
		return nil, eris.Wrapf(err, "hottest: clear override %s", devID)
	}
	return s.Refresh(ctx, devID)
}

// pick scores all eligible units and returns the winner. Ties resolve to the
// lowest unit number so repeated runs over identical data stay deterministic.
func (s *Scorer) pick(units []model.Unit) (*scoredUnit, error) {
	var eligible []model.Unit
	for _, u := range units {
		if u.Sellable() {
			eligible = append(eligible, u)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleUnits
	}

	meanPSF := groupMeanPSF(eligible)
	meanSize := groupMeanSize(eligible)
	bedCounts := make(map[int]int)
	for _, u := range eligible {
		bedCounts[u.Beds]++
	}

	scored := make([]scoredUnit, 0, len(eligible))
	for _, u := range eligible {
		scored = append(scored, s.scoreUnit(u, meanPSF[u.Beds], meanSize[u.Beds], bedCounts[u.Beds]))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].unit.UnitNumber < scored[j].unit.UnitNumber
	})
	return &scored[0], nil
}

func (s *Scorer) scoreUnit(u model.Unit, meanPSF, meanSize float64, sameBeds int) scoredUnit {
	var comps []component
	add := func(points float64, sentence string) {
		if points > 0 {
			comps = append(comps, component{points: points, sentence: sentence})
		}
	}

	// Discount against the bed-group mean price per square foot, capped at 40.
	psf := u.PricePerSqft()
	if psf > 0 && meanPSF > 0 && psf < meanPSF {
		gap := meanPSF - psf
		points := gap / meanPSF * 200
		if points > 40 {
			points = 40
		}
		add(points, discountSentence(psf, meanPSF))
	}

	if u.ViewPark {
		add(8, "It looks straight over the park.")
	}
	if u.ViewRiver {
		add(7, "It has direct river views.")
	}
	switch {
	case u.Floor >= 10:
		add(5, floorSentence(u.Floor))
	case u.Floor >= 5:
		add(3, floorSentence(u.Floor))
	}
	if meanSize > 0 && u.SizeSqft > meanSize*1.10 {
		add(3, sizeSentence(u.SizeSqft, meanSize))
	}

	switch {
	case sameBeds <= 3:
		add(10, scarcitySentence(u.Beds, sameBeds))
	case sameBeds <= 5:
		add(5, scarcitySentence(u.Beds, sameBeds))
	}

	if year, ok := completionYear(u.CompletionDate); ok {
		current := s.now().Year()
		switch {
		case year <= current:
			add(10, "It is ready to move into now.")
		case year == current+1:
			add(8, completionSentence(year))
		}
	}

	total := 0.0
	for _, c := range comps {
		total += c.points
	}
	return scoredUnit{unit: u, score: total, components: comps}
}

// groupMeanPSF returns the mean price per square foot per bedroom count,
// over units with positive price and size.
func groupMeanPSF(units []model.Unit) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, u := range units {
		if psf := u.PricePerSqft(); psf > 0 {
			sums[u.Beds] += psf
			counts[u.Beds]++
		}
	}
	means := make(map[int]float64, len(sums))
	for beds, sum := range sums {
		means[beds] = sum / float64(counts[beds])
	}
	return means
}

func groupMeanSize(units []model.Unit) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, u := range units {
		if u.SizeSqft > 0 {
			sums[u.Beds] += u.SizeSqft
			counts[u.Beds]++
		}
	}
	means := make(map[int]float64, len(sums))
	for beds, sum := range sums {
		means[beds] = sum / float64(counts[beds])
	}
	return means
}

var yearRe = regexp.MustCompile(`\b(20\d{2})\b`)

// completionYear extracts a four-digit year from free-text completion dates
// like "Q3 2026", "2026-03", or "Completed 2024".
func completionYear(s string) (int, bool) {
	m := yearRe.FindString(s)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}
