package ingest

import "github.com/ldn-newbuild/inventory-cli/internal/model"

// Diff compares incoming price-list rows against the current unit snapshot
// for the same development. Both sides are keyed by unit code; codes on both
// sides contribute to updatedUnits when any tracked field differs, codes only
// in the new set are additions, codes only in the old set are removals.
func Diff(current []model.Unit, incoming []model.PriceListRow) model.Diff {
	oldByCode := make(map[string]model.Unit, len(current))
	for _, u := range current {
		oldByCode[u.UnitNumber] = u
	}
	newByCode := make(map[string]model.PriceListRow, len(incoming))
	for _, r := range incoming {
		newByCode[r.UnitCode] = r
	}

	var d model.Diff
	for code, row := range newByCode {
		old, exists := oldByCode[code]
		if !exists {
			d.NewUnits++
			continue
		}
		if row.Price != old.Price {
			d.PriceChanges = append(d.PriceChanges, model.PriceChange{
				UnitCode: code, OldPrice: old.Price, NewPrice: row.Price,
			})
		}
		if row.Status != old.Status {
			d.StatusChanges = append(d.StatusChanges, model.StatusChange{
				UnitCode: code, OldStatus: old.Status, NewStatus: row.Status,
			})
		}
		if rowDiffers(old, row) {
			d.UpdatedUnits++
		}
	}
	for code := range oldByCode {
		if _, exists := newByCode[code]; !exists {
			d.RemovedUnits++
		}
	}

	// Dividing by max(count, 1) deliberately makes "1 change on a development
	// with no prior inventory" read as 100% change.
	denom := len(current)
	if denom < 1 {
		denom = 1
	}
	d.ErrorRate = float64(d.NewUnits+d.UpdatedUnits+d.RemovedUnits) / float64(denom)

	return d
}

func rowDiffers(old model.Unit, row model.PriceListRow) bool {
	if row.Price != old.Price || row.Status != old.Status {
		return true
	}
	if row.Beds != old.Beds || row.SizeSqft != old.SizeSqft {
		return true
	}
	if (row.ServiceCharge == nil) != (old.ServiceCharge == nil) {
		return true
	}
	if row.ServiceCharge != nil && old.ServiceCharge != nil && *row.ServiceCharge != *old.ServiceCharge {
		return true
	}
	return false
}
