// Package publish merges an ingested price list into the live unit inventory
// and records the change in the audit log.
package publish

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/db"
	"github.com/ldn-newbuild/inventory-cli/internal/events"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
)

// Result summarizes a completed merge.
type Result struct {
	DevID          string             `json:"dev_id"`
	PriceListID    string             `json:"price_list_id"`
	UnitsUpdated   int                `json:"units_updated"`
	StartingPrices map[int]float64    `json:"starting_prices"`
	Snapshot       map[string]float64 `json:"-"`
}

// bulkPooler is implemented by the Postgres store; when available the merger
// upserts all units in one COPY round trip instead of row-by-row.
type bulkPooler interface {
	Pool() db.Pool
}

// Merger applies a price list's rows to the unit inventory.
type Merger struct {
	store      store.Store
	dispatcher *events.Dispatcher
}

// NewMerger creates a Merger. The dispatcher may be nil; side-effect events
// are then skipped.
func NewMerger(s store.Store, d *events.Dispatcher) *Merger {
	return &Merger{store: s, dispatcher: d}
}

// Publish merges the given price list into the live inventory and marks it
// active. Applying the same list twice leaves identical state.
func (m *Merger) Publish(ctx context.Context, priceListID, publishedBy string) (*Result, error) {
	return m.apply(ctx, priceListID, publishedBy, model.ChangePublish)
}

// Rollback re-applies an older price list's stored rows, restoring the
// inventory to that list's state.
func (m *Merger) Rollback(ctx context.Context, priceListID, publishedBy string) (*Result, error) {
	return m.apply(ctx, priceListID, publishedBy, model.ChangeRollback)
}

func (m *Merger) apply(ctx context.Context, priceListID, publishedBy string, changeType model.ChangeType) (*Result, error) {
	list, err := m.store.GetPriceList(ctx, priceListID)
	if err != nil {
		return nil, eris.Wrapf(err, "publish: load price list %s", priceListID)
	}
	rows, err := m.store.GetPriceListRows(ctx, priceListID)
	if err != nil {
		return nil, eris.Wrapf(err, "publish: load rows %s", priceListID)
	}

	// Snapshot current prices before merging so the validator can detect
	// drops against the pre-publish state.
	snapshot, err := m.store.UnitPriceSnapshot(ctx, list.DevID)
	if err != nil {
		return nil, eris.Wrapf(err, "publish: snapshot prices %s", list.DevID)
	}

	if err := m.mergeUnits(ctx, list.DevID, rows); err != nil {
		return nil, err
	}

	units, err := m.store.ListUnits(ctx, list.DevID)
	if err != nil {
		return nil, eris.Wrapf(err, "publish: list units %s", list.DevID)
	}
	startingPrices := StartingPrices(units)
	if err := m.store.UpdateStartingPrices(ctx, list.DevID, startingPrices); err != nil {
		return nil, eris.Wrapf(err, "publish: update starting prices %s", list.DevID)
	}

	if err := m.store.MarkPublished(ctx, priceListID, publishedBy); err != nil {
		return nil, eris.Wrapf(err, "publish: mark published %s", priceListID)
	}

	// Publishing a gate-blocked list is an explicit human approval; record it
	// so the list no longer reads as suspect.
	if !list.ParsedOK {
		if err := m.store.SetParsedOK(ctx, priceListID, true); err != nil {
			return nil, eris.Wrapf(err, "publish: approve list %s", priceListID)
		}
	}

	details := map[string]any{
		"price_list_id":   priceListID,
		"units_updated":   len(rows),
		"starting_prices": startingPrices,
	}
	if err := m.store.AppendChangeLog(ctx, model.ChangeLogEntry{
		DevID:      list.DevID,
		ChangeType: changeType,
		Details:    details,
		Notes:      "by " + publishedBy,
	}); err != nil {
		// The merge itself succeeded; a missing audit row is logged, not fatal.
		zap.L().Error("publish: append change log failed",
			zap.String("dev_id", list.DevID),
			zap.Error(err),
		)
	}

	if m.dispatcher != nil {
		m.dispatcher.Publish(events.Event{Topic: events.TopicHottestRefresh, DevID: list.DevID})
		m.dispatcher.Publish(events.Event{Topic: events.TopicValidateUnits, DevID: list.DevID, Snapshot: snapshot})
	}

	zap.L().Info("publish: merged price list",
		zap.String("dev_id", list.DevID),
		zap.String("price_list_id", priceListID),
		zap.String("change_type", string(changeType)),
		zap.Int("units_updated", len(rows)),
	)

	return &Result{
		DevID:          list.DevID,
		PriceListID:    priceListID,
		UnitsUpdated:   len(rows),
		StartingPrices: startingPrices,
		Snapshot:       snapshot,
	}, nil
}

// mergeUnits writes the rows into the units table, using one bulk COPY when
// the store exposes a pgx pool and falling back to per-row upserts otherwise.
func (m *Merger) mergeUnits(ctx context.Context, devID string, rows []model.PriceListRow) error {
	if bp, ok := m.store.(bulkPooler); ok {
		return m.bulkMerge(ctx, bp.Pool(), devID, rows)
	}
	for _, r := range rows {
		if err := m.store.UpsertUnit(ctx, rowToUnit(devID, r)); err != nil {
			return eris.Wrapf(err, "publish: upsert unit %s", r.UnitCode)
		}
	}
	return nil
}

func (m *Merger) bulkMerge(ctx context.Context, pool db.Pool, devID string, rows []model.PriceListRow) error {
	now := time.Now().UTC()
	batch := make([][]any, 0, len(rows))
	for _, r := range rows {
		u := rowToUnit(devID, r)
		batch = append(batch, []any{
			u.ID, u.DevID, u.UnitNumber, u.Beds, u.SizeSqft, u.Price,
			string(u.Status), u.Building, u.Floor, u.ServiceCharge, now,
		})
	}

	_, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "units",
		Columns:      []string{"id", "dev_id", "unit_number", "beds", "size_sqft", "price", "status", "building", "floor", "service_charge", "updated_at"},
		ConflictKeys: []string{"dev_id", "unit_number"},
		UpdateCols:   []string{"beds", "size_sqft", "price", "status", "service_charge", "updated_at"},
	}, batch)
	return eris.Wrapf(err, "publish: bulk merge %s", devID)
}

func rowToUnit(devID string, r model.PriceListRow) model.Unit {
	return model.Unit{
		ID:            r.ID,
		DevID:         devID,
		UnitNumber:    r.UnitCode,
		Beds:          r.Beds,
		SizeSqft:      r.SizeSqft,
		Price:         r.Price,
		Status:        r.Status,
		Building:      r.Building,
		Floor:         r.Floor,
		ServiceCharge: r.ServiceCharge,
	}
}

// StartingPrices computes the per-bedroom-count minimum price over sellable
// units. Units with a zero price are skipped; they surface as missing_data
// anomalies instead of a £0 headline price.
func StartingPrices(units []model.Unit) map[int]float64 {
	prices := make(map[int]float64)
	for _, u := range units {
		if !u.Sellable() || u.Price <= 0 {
			continue
		}
		if cur, ok := prices[u.Beds]; !ok || u.Price < cur {
			prices[u.Beds] = u.Price
		}
	}
	return prices
}
