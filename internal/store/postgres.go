package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/db"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_unit":       `SELECT id, dev_id, unit_number, beds, size_sqft, price, status, building, floor, aspect, view_park, view_river, has_balcony, service_charge, completion_date, updated_at FROM units WHERE id = $1`,
	"price_snapshot": `SELECT unit_number, price FROM units WHERE dev_id = $1`,
	"get_hottest":    `SELECT dev_id, unit_id, unit_number, score, reason, manual_override, updated_at FROM hottest_unit WHERE dev_id = $1`,
	"append_log":     `INSERT INTO change_log (id, dev_id, change_type, changed_at, details, notes) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk unit upserts during a publish).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS developments (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	postcode        TEXT NOT NULL DEFAULT '',
	lat             DOUBLE PRECISION,
	lon             DOUBLE PRECISION,
	starting_prices JSONB,
	description     TEXT NOT NULL DEFAULT '',
	insights        JSONB,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS units (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dev_id          TEXT NOT NULL REFERENCES developments(id),
	unit_number     TEXT NOT NULL,
	beds            INTEGER NOT NULL DEFAULT 0,
	size_sqft       DOUBLE PRECISION NOT NULL DEFAULT 0,
	price           DOUBLE PRECISION NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'available',
	building        TEXT NOT NULL DEFAULT '',
	floor           INTEGER NOT NULL DEFAULT 0,
	aspect          TEXT NOT NULL DEFAULT '',
	view_park       BOOLEAN NOT NULL DEFAULT false,
	view_river      BOOLEAN NOT NULL DEFAULT false,
	has_balcony     BOOLEAN NOT NULL DEFAULT false,
	service_charge  DOUBLE PRECISION,
	completion_date TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (dev_id, unit_number)
);

CREATE INDEX IF NOT EXISTS idx_units_dev_id ON units(dev_id);
CREATE INDEX IF NOT EXISTS idx_units_status ON units(dev_id, status);

CREATE TABLE IF NOT EXISTS price_lists (
	id           TEXT PRIMARY KEY,
	dev_id       TEXT NOT NULL REFERENCES developments(id),
	source       TEXT NOT NULL DEFAULT 'upload',
	file_path    TEXT NOT NULL DEFAULT '',
	received_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	parsed_ok    BOOLEAN NOT NULL DEFAULT false,
	published_at TIMESTAMPTZ,
	published_by TEXT NOT NULL DEFAULT '',
	is_active    BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_price_lists_dev_id ON price_lists(dev_id, received_at DESC);

CREATE TABLE IF NOT EXISTS price_list_rows (
	id             TEXT PRIMARY KEY,
	price_list_id  TEXT NOT NULL REFERENCES price_lists(id),
	row_number     INTEGER NOT NULL,
	unit_code      TEXT NOT NULL,
	beds           INTEGER NOT NULL DEFAULT 0,
	size_sqft      DOUBLE PRECISION NOT NULL DEFAULT 0,
	price          DOUBLE PRECISION NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'available',
	building       TEXT NOT NULL DEFAULT '',
	floor          INTEGER NOT NULL DEFAULT 0,
	service_charge DOUBLE PRECISION,
	raw            JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_list_rows_list ON price_list_rows(price_list_id, row_number);

CREATE TABLE IF NOT EXISTS hottest_unit (
	dev_id          TEXT PRIMARY KEY REFERENCES developments(id),
	unit_id         TEXT NOT NULL,
	unit_number     TEXT NOT NULL DEFAULT '',
	score           DOUBLE PRECISION NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	manual_override BOOLEAN NOT NULL DEFAULT false,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS unit_anomalies (
	id           TEXT PRIMARY KEY,
	dev_id       TEXT NOT NULL,
	unit_id      TEXT,
	unit_number  TEXT,
	anomaly_type TEXT NOT NULL,
	severity     TEXT NOT NULL,
	details      JSONB NOT NULL,
	detected_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved     BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_unit_anomalies_dev ON unit_anomalies(dev_id, resolved);

CREATE TABLE IF NOT EXISTS change_log (
	id          TEXT PRIMARY KEY,
	dev_id      TEXT NOT NULL,
	change_type TEXT NOT NULL,
	changed_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	details     JSONB,
	notes       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_change_log_dev ON change_log(dev_id, changed_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Developments

func (s *PostgresStore) UpsertDevelopment(ctx context.Context, dev model.Development) error {
	pricesJSON, err := marshalOrNil(dev.StartingPrices)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal starting prices")
	}
	insightsJSON, err := marshalOrNil(dev.Insights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal insights")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO developments (id, name, postcode, lat, lon, starting_prices, description, insights, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   name = $2, postcode = $3, lat = $4, lon = $5,
		   starting_prices = $6, description = $7, insights = $8, updated_at = $9`,
		dev.ID, dev.Name, dev.Postcode, dev.Lat, dev.Lon,
		pricesJSON, dev.Description, insightsJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert development %s", dev.ID)
}

func (s *PostgresStore) GetDevelopment(ctx context.Context, devID string) (*model.Development, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, postcode, COALESCE(lat, 0), COALESCE(lon, 0), starting_prices, description, insights, updated_at
		 FROM developments WHERE id = $1`,
		devID,
	)

	var d model.Development
	var pricesJSON, insightsJSON []byte
	err := row.Scan(&d.ID, &d.Name, &d.Postcode, &d.Lat, &d.Lon, &pricesJSON, &d.Description, &insightsJSON, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: development %s", devID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get development %s", devID)
	}
	if len(pricesJSON) > 0 {
		if err := json.Unmarshal(pricesJSON, &d.StartingPrices); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal starting prices")
		}
	}
	if len(insightsJSON) > 0 {
		d.Insights = &model.AreaInsights{}
		if err := json.Unmarshal(insightsJSON, d.Insights); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal insights")
		}
	}
	return &d, nil
}

func (s *PostgresStore) ListDevelopments(ctx context.Context) ([]model.Development, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, postcode, COALESCE(lat, 0), COALESCE(lon, 0), starting_prices, description, insights, updated_at
		 FROM developments ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list developments")
	}
	defer rows.Close()

	var devs []model.Development
	for rows.Next() {
		var d model.Development
		var pricesJSON, insightsJSON []byte
		if err := rows.Scan(&d.ID, &d.Name, &d.Postcode, &d.Lat, &d.Lon, &pricesJSON, &d.Description, &insightsJSON, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan development")
		}
		if len(pricesJSON) > 0 {
			if err := json.Unmarshal(pricesJSON, &d.StartingPrices); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal starting prices")
			}
		}
		if len(insightsJSON) > 0 {
			d.Insights = &model.AreaInsights{}
			if err := json.Unmarshal(insightsJSON, d.Insights); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal insights")
			}
		}
		devs = append(devs, d)
	}
	return devs, eris.Wrap(rows.Err(), "postgres: list developments iterate")
}

func (s *PostgresStore) UpdateStartingPrices(ctx context.Context, devID string, prices map[int]float64) error {
	pricesJSON, err := json.Marshal(prices)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal starting prices")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE developments SET starting_prices = $1, updated_at = $2 WHERE id = $3`,
		pricesJSON, time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update starting prices %s", devID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: development %s", devID)
	}
	return nil
}

func (s *PostgresStore) UpdateInsights(ctx context.Context, devID string, insights model.AreaInsights) error {
	insightsJSON, err := json.Marshal(insights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal insights")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE developments SET insights = $1, updated_at = $2 WHERE id = $3`,
		insightsJSON, time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update insights %s", devID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: development %s", devID)
	}
	return nil
}

func (s *PostgresStore) UpdateDescription(ctx context.Context, devID string, description string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE developments SET description = $1, updated_at = $2 WHERE id = $3`,
		description, time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update description %s", devID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: development %s", devID)
	}
	return nil
}

// Units

func (s *PostgresStore) UpsertUnit(ctx context.Context, unit model.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO units
		   (id, dev_id, unit_number, beds, size_sqft, price, status, building, floor, aspect,
		    view_park, view_river, has_balcony, service_charge, completion_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (dev_id, unit_number) DO UPDATE SET
		   beds = $4, size_sqft = $5, price = $6, status = $7,
		   service_charge = $14, updated_at = $16`,
		unit.ID, unit.DevID, unit.UnitNumber, unit.Beds, unit.SizeSqft, unit.Price,
		string(unit.Status), unit.Building, unit.Floor, unit.Aspect,
		unit.ViewPark, unit.ViewRiver, unit.HasBalcony, unit.ServiceCharge,
		unit.CompletionDate, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert unit %s/%s", unit.DevID, unit.UnitNumber)
}

const unitColumns = `id, dev_id, unit_number, beds, size_sqft, price, status, building, floor, aspect, view_park, view_river, has_balcony, service_charge, completion_date, updated_at`

func (s *PostgresStore) GetUnit(ctx context.Context, unitID string) (*model.Unit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = $1`,
		unitID,
	)
	u, err := scanPgUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: unit %s", unitID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get unit %s", unitID)
	}
	return u, nil
}

func (s *PostgresStore) ListUnits(ctx context.Context, devID string) ([]model.Unit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+unitColumns+` FROM units WHERE dev_id = $1 ORDER BY unit_number`,
		devID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list units %s", devID)
	}
	defer rows.Close()

	var units []model.Unit
	for rows.Next() {
		u, err := scanPgUnit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan unit")
		}
		units = append(units, *u)
	}
	return units, eris.Wrap(rows.Err(), "postgres: list units iterate")
}

func (s *PostgresStore) UnitPriceSnapshot(ctx context.Context, devID string) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT unit_number, price FROM units WHERE dev_id = $1`,
		devID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: price snapshot %s", devID)
	}
	defer rows.Close()

	snapshot := make(map[string]float64)
	for rows.Next() {
		var code string
		var price float64
		if err := rows.Scan(&code, &price); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price snapshot")
		}
		snapshot[code] = price
	}
	return snapshot, eris.Wrap(rows.Err(), "postgres: price snapshot iterate")
}

// Price lists

func (s *PostgresStore) CreatePriceList(ctx context.Context, list model.PriceList, rows []model.PriceListRow) (*model.PriceList, error) {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	if list.ReceivedAt.IsZero() {
		list.ReceivedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin price list tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO price_lists (id, dev_id, source, file_path, received_at, parsed_ok, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, false)`,
		list.ID, list.DevID, list.Source, list.FilePath, list.ReceivedAt, list.ParsedOK,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert price list for %s", list.DevID)
	}

	batch := make([][]any, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		rawJSON, err := json.Marshal(r.Raw)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal raw row %d", r.RowNumber)
		}
		batch = append(batch, []any{
			r.ID, list.ID, r.RowNumber, r.UnitCode, r.Beds, r.SizeSqft,
			r.Price, string(r.Status), r.Building, r.Floor, r.ServiceCharge, rawJSON,
		})
	}
	if len(batch) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"price_list_rows"},
			[]string{"id", "price_list_id", "row_number", "unit_code", "beds", "size_sqft", "price", "status", "building", "floor", "service_charge", "raw"},
			pgx.CopyFromRows(batch),
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: copy price list rows for %s", list.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit price list tx")
	}
	return &list, nil
}

func (s *PostgresStore) GetPriceList(ctx context.Context, id string) (*model.PriceList, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, dev_id, source, file_path, received_at, parsed_ok, published_at, published_by, is_active
		 FROM price_lists WHERE id = $1`,
		id,
	)

	var pl model.PriceList
	err := row.Scan(&pl.ID, &pl.DevID, &pl.Source, &pl.FilePath, &pl.ReceivedAt,
		&pl.ParsedOK, &pl.PublishedAt, &pl.PublishedBy, &pl.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: price list %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get price list %s", id)
	}
	return &pl, nil
}

func (s *PostgresStore) GetPriceListRows(ctx context.Context, id string) ([]model.PriceListRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, price_list_id, row_number, unit_code, beds, size_sqft, price, status, building, floor, service_charge, raw
		 FROM price_list_rows WHERE price_list_id = $1 ORDER BY row_number`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get price list rows %s", id)
	}
	defer rows.Close()

	var out []model.PriceListRow
	for rows.Next() {
		var r model.PriceListRow
		var status string
		var rawJSON []byte
		if err := rows.Scan(&r.ID, &r.PriceListID, &r.RowNumber, &r.UnitCode, &r.Beds,
			&r.SizeSqft, &r.Price, &status, &r.Building, &r.Floor, &r.ServiceCharge, &rawJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price list row")
		}
		r.Status = model.UnitStatus(status)
		if err := json.Unmarshal(rawJSON, &r.Raw); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal raw row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: price list rows iterate")
}

func (s *PostgresStore) ListPriceLists(ctx context.Context, devID string) ([]model.PriceList, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, dev_id, source, file_path, received_at, parsed_ok, published_at, published_by, is_active
		 FROM price_lists WHERE dev_id = $1 ORDER BY received_at DESC`,
		devID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list price lists %s", devID)
	}
	defer rows.Close()

	var lists []model.PriceList
	for rows.Next() {
		var pl model.PriceList
		if err := rows.Scan(&pl.ID, &pl.DevID, &pl.Source, &pl.FilePath, &pl.ReceivedAt,
			&pl.ParsedOK, &pl.PublishedAt, &pl.PublishedBy, &pl.IsActive); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price list")
		}
		lists = append(lists, pl)
	}
	return lists, eris.Wrap(rows.Err(), "postgres: list price lists iterate")
}

func (s *PostgresStore) SetParsedOK(ctx context.Context, id string, ok bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE price_lists SET parsed_ok = $1 WHERE id = $2`,
		ok, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set parsed_ok %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: price list %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id string, publishedBy string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin publish tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var devID string
	err = tx.QueryRow(ctx, `SELECT dev_id FROM price_lists WHERE id = $1`, id).Scan(&devID)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: price list %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: look up price list %s", id)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE price_lists SET is_active = false WHERE dev_id = $1`, devID,
	); err != nil {
		return eris.Wrapf(err, "postgres: deactivate price lists for %s", devID)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE price_lists SET published_at = $1, published_by = $2, is_active = true WHERE id = $3`,
		time.Now().UTC(), publishedBy, id,
	); err != nil {
		return eris.Wrapf(err, "postgres: mark published %s", id)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit publish tx")
}

// Hottest unit

func (s *PostgresStore) GetHottestUnit(ctx context.Context, devID string) (*model.HottestUnit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT dev_id, unit_id, unit_number, score, reason, manual_override, updated_at
		 FROM hottest_unit WHERE dev_id = $1`,
		devID,
	)

	var h model.HottestUnit
	err := row.Scan(&h.DevID, &h.UnitID, &h.UnitNumber, &h.Score, &h.Reason, &h.ManualOverride, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get hottest unit %s", devID)
	}
	return &h, nil
}

func (s *PostgresStore) UpsertHottestUnit(ctx context.Context, h model.HottestUnit) error {
	// The WHERE clause enforces the override guard at the database level:
	// an automatic refresh cannot replace a manually overridden row.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hottest_unit (dev_id, unit_id, unit_number, score, reason, manual_override, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (dev_id) DO UPDATE SET
		   unit_id = $2, unit_number = $3, score = $4, reason = $5, manual_override = $6, updated_at = $7
		 WHERE hottest_unit.manual_override = false OR EXCLUDED.manual_override = true`,
		h.DevID, h.UnitID, h.UnitNumber, h.Score, h.Reason, h.ManualOverride, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert hottest unit %s", h.DevID)
}

func (s *PostgresStore) ClearHottestOverride(ctx context.Context, devID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE hottest_unit SET manual_override = false, updated_at = $1 WHERE dev_id = $2`,
		time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: clear hottest override %s", devID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: hottest unit %s", devID)
	}
	return nil
}

// Anomalies

func (s *PostgresStore) InsertAnomalies(ctx context.Context, anomalies []model.UnitAnomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	batch := make([][]any, 0, len(anomalies))
	for _, a := range anomalies {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.DetectedAt.IsZero() {
			a.DetectedAt = time.Now().UTC()
		}
		detailsJSON, err := json.Marshal(a.Details)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal anomaly details")
		}
		batch = append(batch, []any{
			a.ID, a.DevID, a.UnitID, a.UnitNumber, string(a.Type), string(a.Severity),
			detailsJSON, a.DetectedAt, a.Resolved,
		})
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"unit_anomalies"},
		[]string{"id", "dev_id", "unit_id", "unit_number", "anomaly_type", "severity", "details", "detected_at", "resolved"},
		pgx.CopyFromRows(batch),
	)
	return eris.Wrap(err, "postgres: insert anomalies")
}

func (s *PostgresStore) ListAnomalies(ctx context.Context, devID string, unresolvedOnly bool) ([]model.UnitAnomaly, error) {
	query := `SELECT id, dev_id, COALESCE(unit_id, ''), COALESCE(unit_number, ''), anomaly_type, severity, details, detected_at, resolved
	          FROM unit_anomalies WHERE dev_id = $1`
	if unresolvedOnly {
		query += ` AND resolved = false`
	}
	query += ` ORDER BY detected_at DESC`

	rows, err := s.pool.Query(ctx, query, devID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list anomalies %s", devID)
	}
	defer rows.Close()

	var out []model.UnitAnomaly
	for rows.Next() {
		var a model.UnitAnomaly
		var atype, severity string
		var detailsJSON []byte
		if err := rows.Scan(&a.ID, &a.DevID, &a.UnitID, &a.UnitNumber, &atype, &severity,
			&detailsJSON, &a.DetectedAt, &a.Resolved); err != nil {
			return nil, eris.Wrap(err, "postgres: scan anomaly")
		}
		a.Type = model.AnomalyType(atype)
		a.Severity = model.AnomalySeverity(severity)
		if err := json.Unmarshal(detailsJSON, &a.Details); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal anomaly details")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list anomalies iterate")
}

func (s *PostgresStore) ResolveAnomaly(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE unit_anomalies SET resolved = true WHERE id = $1`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve anomaly %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: anomaly %s", id)
	}
	return nil
}

// Change log

func (s *PostgresStore) AppendChangeLog(ctx context.Context, entry model.ChangeLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	detailsJSON, err := marshalOrNil(entry.Details)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal change log details")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO change_log (id, dev_id, change_type, changed_at, details, notes) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.DevID, string(entry.ChangeType), entry.ChangedAt, detailsJSON, entry.Notes,
	)
	return eris.Wrap(err, "postgres: append change log")
}

func (s *PostgresStore) ListChangeLog(ctx context.Context, devID string, limit int) ([]model.ChangeLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, dev_id, change_type, changed_at, details, notes
		 FROM change_log WHERE dev_id = $1 ORDER BY changed_at DESC LIMIT $2`,
		devID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list change log %s", devID)
	}
	defer rows.Close()

	var out []model.ChangeLogEntry
	for rows.Next() {
		var e model.ChangeLogEntry
		var ctype string
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.DevID, &ctype, &e.ChangedAt, &detailsJSON, &e.Notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change log entry")
		}
		e.ChangeType = model.ChangeType(ctype)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal change log details")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list change log iterate")
}

// helpers

type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgUnit(row pgScannable) (*model.Unit, error) {
	var u model.Unit
	var status string
	err := row.Scan(&u.ID, &u.DevID, &u.UnitNumber, &u.Beds, &u.SizeSqft, &u.Price,
		&status, &u.Building, &u.Floor, &u.Aspect, &u.ViewPark, &u.ViewRiver,
		&u.HasBalcony, &u.ServiceCharge, &u.CompletionDate, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Status = model.UnitStatus(status)
	return &u, nil
}

func marshalOrNil(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[int]float64:
		if t == nil {
			return nil, nil
		}
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	case *model.AreaInsights:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
