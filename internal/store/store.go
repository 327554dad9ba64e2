// Package store persists developments, units, price lists, and the audit
// trail behind a backend-agnostic interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = eris.New("not found")

// Store defines the persistence interface for the inventory pipeline.
type Store interface {
	// Developments
	UpsertDevelopment(ctx context.Context, dev model.Development) error
	GetDevelopment(ctx context.Context, devID string) (*model.Development, error)
	ListDevelopments(ctx context.Context) ([]model.Development, error)
	UpdateStartingPrices(ctx context.Context, devID string, prices map[int]float64) error
	UpdateInsights(ctx context.Context, devID string, insights model.AreaInsights) error
	UpdateDescription(ctx context.Context, devID string, description string) error

	// Units
	UpsertUnit(ctx context.Context, unit model.Unit) error
	GetUnit(ctx context.Context, unitID string) (*model.Unit, error)
	ListUnits(ctx context.Context, devID string) ([]model.Unit, error)
	// UnitPriceSnapshot returns current prices keyed by unit number, taken
	// before a merge so the validator can detect drops afterwards.
	UnitPriceSnapshot(ctx context.Context, devID string) (map[string]float64, error)

	// Price lists
	CreatePriceList(ctx context.Context, list model.PriceList, rows []model.PriceListRow) (*model.PriceList, error)
	GetPriceList(ctx context.Context, id string) (*model.PriceList, error)
	GetPriceListRows(ctx context.Context, id string) ([]model.PriceListRow, error)
	ListPriceLists(ctx context.Context, devID string) ([]model.PriceList, error)
	SetParsedOK(ctx context.Context, id string, ok bool) error
	// MarkPublished stamps the list and makes it the active one for its
	// development, clearing is_active on every other list.
	MarkPublished(ctx context.Context, id string, publishedBy string) error

	// Hottest unit
	GetHottestUnit(ctx context.Context, devID string) (*model.HottestUnit, error)
	// UpsertHottestUnit refuses to overwrite a manually overridden row unless
	// the incoming row is itself an override.
	UpsertHottestUnit(ctx context.Context, h model.HottestUnit) error
	ClearHottestOverride(ctx context.Context, devID string) error

	// Anomalies
	InsertAnomalies(ctx context.Context, anomalies []model.UnitAnomaly) error
	ListAnomalies(ctx context.Context, devID string, unresolvedOnly bool) ([]model.UnitAnomaly, error)
	ResolveAnomaly(ctx context.Context, id string) error

	// Change log
	AppendChangeLog(ctx context.Context, entry model.ChangeLogEntry) error
	ListChangeLog(ctx context.Context, devID string, limit int) ([]model.ChangeLogEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
