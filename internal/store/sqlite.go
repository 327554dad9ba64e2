package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS developments (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	postcode        TEXT NOT NULL DEFAULT '',
	lat             REAL NOT NULL DEFAULT 0,
	lon             REAL NOT NULL DEFAULT 0,
	starting_prices TEXT,
	description     TEXT NOT NULL DEFAULT '',
	insights        TEXT,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS units (
	id              TEXT PRIMARY KEY,
	dev_id          TEXT NOT NULL REFERENCES developments(id),
	unit_number     TEXT NOT NULL,
	beds            INTEGER NOT NULL DEFAULT 0,
	size_sqft       REAL NOT NULL DEFAULT 0,
	price           REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'available',
	building        TEXT NOT NULL DEFAULT '',
	floor           INTEGER NOT NULL DEFAULT 0,
	aspect          TEXT NOT NULL DEFAULT '',
	view_park       INTEGER NOT NULL DEFAULT 0,
	view_river      INTEGER NOT NULL DEFAULT 0,
	has_balcony     INTEGER NOT NULL DEFAULT 0,
	service_charge  REAL,
	completion_date TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (dev_id, unit_number)
);

CREATE INDEX IF NOT EXISTS idx_units_dev_id ON units(dev_id);

CREATE TABLE IF NOT EXISTS price_lists (
	id           TEXT PRIMARY KEY,
	dev_id       TEXT NOT NULL REFERENCES developments(id),
	source       TEXT NOT NULL DEFAULT 'upload',
	file_path    TEXT NOT NULL DEFAULT '',
	received_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	parsed_ok    INTEGER NOT NULL DEFAULT 0,
	published_at DATETIME,
	published_by TEXT NOT NULL DEFAULT '',
	is_active    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_price_lists_dev_id ON price_lists(dev_id, received_at DESC);

CREATE TABLE IF NOT EXISTS price_list_rows (
	id             TEXT PRIMARY KEY,
	price_list_id  TEXT NOT NULL REFERENCES price_lists(id),
	row_number     INTEGER NOT NULL,
	unit_code      TEXT NOT NULL,
	beds           INTEGER NOT NULL DEFAULT 0,
	size_sqft      REAL NOT NULL DEFAULT 0,
	price          REAL NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'available',
	building       TEXT NOT NULL DEFAULT '',
	floor          INTEGER NOT NULL DEFAULT 0,
	service_charge REAL,
	raw            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_list_rows_list ON price_list_rows(price_list_id, row_number);

CREATE TABLE IF NOT EXISTS hottest_unit (
	dev_id          TEXT PRIMARY KEY REFERENCES developments(id),
	unit_id         TEXT NOT NULL,
	unit_number     TEXT NOT NULL DEFAULT '',
	score           REAL NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	manual_override INTEGER NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS unit_anomalies (
	id           TEXT PRIMARY KEY,
	dev_id       TEXT NOT NULL,
	unit_id      TEXT,
	unit_number  TEXT,
	anomaly_type TEXT NOT NULL,
	severity     TEXT NOT NULL,
	details      TEXT NOT NULL,
	detected_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	resolved     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_unit_anomalies_dev ON unit_anomalies(dev_id, resolved);

CREATE TABLE IF NOT EXISTS change_log (
	id          TEXT PRIMARY KEY,
	dev_id      TEXT NOT NULL,
	change_type TEXT NOT NULL,
	changed_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	details     TEXT,
	notes       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_change_log_dev ON change_log(dev_id, changed_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Developments

func (s *SQLiteStore) UpsertDevelopment(ctx context.Context, dev model.Development) error {
	var pricesJSON, insightsJSON any
	if dev.StartingPrices != nil {
		b, err := json.Marshal(dev.StartingPrices)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal starting prices")
		}
		pricesJSON = string(b)
	}
	if dev.Insights != nil {
		b, err := json.Marshal(dev.Insights)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal insights")
		}
		insightsJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO developments (id, name, postcode, lat, lon, starting_prices, description, insights, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, postcode = excluded.postcode, lat = excluded.lat, lon = excluded.lon,
		   starting_prices = excluded.starting_prices, description = excluded.description,
		   insights = excluded.insights, updated_at = excluded.updated_at`,
		dev.ID, dev.Name, dev.Postcode, dev.Lat, dev.Lon,
		pricesJSON, dev.Description, insightsJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert development %s", dev.ID)
}

func (s *SQLiteStore) GetDevelopment(ctx context.Context, devID string) (*model.Development, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, postcode, lat, lon, starting_prices, description, insights, updated_at
		 FROM developments WHERE id = ?`,
		devID,
	)
	d, err := scanDevelopment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: development %s", devID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get development %s", devID)
	}
	return d, nil
}

func (s *SQLiteStore) ListDevelopments(ctx context.Context) ([]model.Development, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, postcode, lat, lon, starting_prices, description, insights, updated_at
		 FROM developments ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list developments")
	}
	defer rows.Close()

	var devs []model.Development
	for rows.Next() {
		d, err := scanDevelopment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan development")
		}
		devs = append(devs, *d)
	}
	return devs, eris.Wrap(rows.Err(), "sqlite: list developments iterate")
}

func (s *SQLiteStore) UpdateStartingPrices(ctx context.Context, devID string, prices map[int]float64) error {
	pricesJSON, err := json.Marshal(prices)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal starting prices")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE developments SET starting_prices = ?, updated_at = ? WHERE id = ?`,
		string(pricesJSON), time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update starting prices %s", devID)
	}
	return checkRowsAffected(res, "development", devID)
}

func (s *SQLiteStore) UpdateInsights(ctx context.Context, devID string, insights model.AreaInsights) error {
	insightsJSON, err := json.Marshal(insights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal insights")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE developments SET insights = ?, updated_at = ? WHERE id = ?`,
		string(insightsJSON), time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update insights %s", devID)
	}
	return checkRowsAffected(res, "development", devID)
}

func (s *SQLiteStore) UpdateDescription(ctx context.Context, devID string, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE developments SET description = ?, updated_at = ? WHERE id = ?`,
		description, time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update description %s", devID)
	}
	return checkRowsAffected(res, "development", devID)
}

// Units

func (s *SQLiteStore) UpsertUnit(ctx context.Context, unit model.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO units
		   (id, dev_id, unit_number, beds, size_sqft, price, status, building, floor, aspect,
		    view_park, view_river, has_balcony, service_charge, completion_date, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dev_id, unit_number) DO UPDATE SET
		   beds = excluded.beds, size_sqft = excluded.size_sqft, price = excluded.price,
		   status = excluded.status, service_charge = excluded.service_charge,
		   updated_at = excluded.updated_at`,
		unit.ID, unit.DevID, unit.UnitNumber, unit.Beds, unit.SizeSqft, unit.Price,
		string(unit.Status), unit.Building, unit.Floor, unit.Aspect,
		unit.ViewPark, unit.ViewRiver, unit.HasBalcony, unit.ServiceCharge,
		unit.CompletionDate, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert unit %s/%s", unit.DevID, unit.UnitNumber)
}

func (s *SQLiteStore) GetUnit(ctx context.Context, unitID string) (*model.Unit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = ?`,
		unitID,
	)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: unit %s", unitID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get unit %s", unitID)
	}
	return u, nil
}

func (s *SQLiteStore) ListUnits(ctx context.Context, devID string) ([]model.Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE dev_id = ? ORDER BY unit_number`,
		devID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list units %s", devID)
	}
	defer rows.Close()

	var units []model.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unit")
		}
		units = append(units, *u)
	}
	return units, eris.Wrap(rows.Err(), "sqlite: list units iterate")
}

func (s *SQLiteStore) UnitPriceSnapshot(ctx context.Context, devID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_number, price FROM units WHERE dev_id = ?`,
		devID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: price snapshot %s", devID)
	}
	defer rows.Close()

	snapshot := make(map[string]float64)
	for rows.Next() {
		var code string
		var price float64
		if err := rows.Scan(&code, &price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price snapshot")
		}
		snapshot[code] = price
	}
	return snapshot, eris.Wrap(rows.Err(), "sqlite: price snapshot iterate")
}

// Price lists

func (s *SQLiteStore) CreatePriceList(ctx context.Context, list model.PriceList, rows []model.PriceListRow) (*model.PriceList, error) {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	if list.ReceivedAt.IsZero() {
		list.ReceivedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin price list tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO price_lists (id, dev_id, source, file_path, received_at, parsed_ok, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		list.ID, list.DevID, list.Source, list.FilePath, list.ReceivedAt, list.ParsedOK,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert price list for %s", list.DevID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO price_list_rows
		   (id, price_list_id, row_number, unit_code, beds, size_sqft, price, status, building, floor, service_charge, raw)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare row insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		rawJSON, err := json.Marshal(r.Raw)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: marshal raw row %d", r.RowNumber)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, list.ID, r.RowNumber, r.UnitCode, r.Beds, r.SizeSqft,
			r.Price, string(r.Status), r.Building, r.Floor, r.ServiceCharge, string(rawJSON),
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert row %d", r.RowNumber)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit price list tx")
	}
	return &list, nil
}

func (s *SQLiteStore) GetPriceList(ctx context.Context, id string) (*model.PriceList, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dev_id, source, file_path, received_at, parsed_ok, published_at, published_by, is_active
		 FROM price_lists WHERE id = ?`,
		id,
	)

	var pl model.PriceList
	err := row.Scan(&pl.ID, &pl.DevID, &pl.Source, &pl.FilePath, &pl.ReceivedAt,
		&pl.ParsedOK, &pl.PublishedAt, &pl.PublishedBy, &pl.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: price list %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get price list %s", id)
	}
	return &pl, nil
}

func (s *SQLiteStore) GetPriceListRows(ctx context.Context, id string) ([]model.PriceListRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, price_list_id, row_number, unit_code, beds, size_sqft, price, status, building, floor, service_charge, raw
		 FROM price_list_rows WHERE price_list_id = ? ORDER BY row_number`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get price list rows %s", id)
	}
	defer rows.Close()

	var out []model.PriceListRow
	for rows.Next() {
		var r model.PriceListRow
		var status, rawJSON string
		if err := rows.Scan(&r.ID, &r.PriceListID, &r.RowNumber, &r.UnitCode, &r.Beds,
			&r.SizeSqft, &r.Price, &status, &r.Building, &r.Floor, &r.ServiceCharge, &rawJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price list row")
		}
		r.Status = model.UnitStatus(status)
		if err := json.Unmarshal([]byte(rawJSON), &r.Raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal raw row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: price list rows iterate")
}

func (s *SQLiteStore) ListPriceLists(ctx context.Context, devID string) ([]model.PriceList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dev_id, source, file_path, received_at, parsed_ok, published_at, published_by, is_active
		 FROM price_lists WHERE dev_id = ? ORDER BY received_at DESC`,
		devID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list price lists %s", devID)
	}
	defer rows.Close()

	var lists []model.PriceList
	for rows.Next() {
		var pl model.PriceList
		if err := rows.Scan(&pl.ID, &pl.DevID, &pl.Source, &pl.FilePath, &pl.ReceivedAt,
			&pl.ParsedOK, &pl.PublishedAt, &pl.PublishedBy, &pl.IsActive); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price list")
		}
		lists = append(lists, pl)
	}
	return lists, eris.Wrap(rows.Err(), "sqlite: list price lists iterate")
}

func (s *SQLiteStore) SetParsedOK(ctx context.Context, id string, ok bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE price_lists SET parsed_ok = ? WHERE id = ?`,
		ok, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set parsed_ok %s", id)
	}
	return checkRowsAffected(res, "price list", id)
}

func (s *SQLiteStore) MarkPublished(ctx context.Context, id string, publishedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin publish tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var devID string
	err = tx.QueryRowContext(ctx, `SELECT dev_id FROM price_lists WHERE id = ?`, id).Scan(&devID)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: price list %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: look up price list %s", id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE price_lists SET is_active = 0 WHERE dev_id = ?`, devID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: deactivate price lists for %s", devID)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE price_lists SET published_at = ?, published_by = ?, is_active = 1 WHERE id = ?`,
		time.Now().UTC(), publishedBy, id,
	); err != nil {
		return eris.Wrapf(err, "sqlite: mark published %s", id)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit publish tx")
}

// Hottest unit

func (s *SQLiteStore) GetHottestUnit(ctx context.Context, devID string) (*model.HottestUnit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT dev_id, unit_id, unit_number, score, reason, manual_override, updated_at
		 FROM hottest_unit WHERE dev_id = ?`,
		devID,
	)

	var h model.HottestUnit
	err := row.Scan(&h.DevID, &h.UnitID, &h.UnitNumber, &h.Score, &h.Reason, &h.ManualOverride, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get hottest unit %s", devID)
	}
	return &h, nil
}

func (s *SQLiteStore) UpsertHottestUnit(ctx context.Context, h model.HottestUnit) error {
	// Override guard lives in the WHERE clause: automatic refreshes do not
	// replace a manually overridden row.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hottest_unit (dev_id, unit_id, unit_number, score, reason, manual_override, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dev_id) DO UPDATE SET
		   unit_id = excluded.unit_id, unit_number = excluded.unit_number,
		   score = excluded.score, reason = excluded.reason,
		   manual_override = excluded.manual_override, updated_at = excluded.updated_at
		 WHERE hottest_unit.manual_override = 0 OR excluded.manual_override = 1`,
		h.DevID, h.UnitID, h.UnitNumber, h.Score, h.Reason, h.ManualOverride, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert hottest unit %s", h.DevID)
}

func (s *SQLiteStore) ClearHottestOverride(ctx context.Context, devID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hottest_unit SET manual_override = 0, updated_at = ? WHERE dev_id = ?`,
		time.Now().UTC(), devID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear hottest override %s", devID)
	}
	return checkRowsAffected(res, "hottest unit", devID)
}

// Anomalies

func (s *SQLiteStore) InsertAnomalies(ctx context.Context, anomalies []model.UnitAnomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin anomaly tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO unit_anomalies (id, dev_id, unit_id, unit_number, anomaly_type, severity, details, detected_at, resolved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare anomaly insert")
	}
	defer stmt.Close()

	for _, a := range anomalies {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.DetectedAt.IsZero() {
			a.DetectedAt = time.Now().UTC()
		}
		detailsJSON, err := json.Marshal(a.Details)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal anomaly details")
		}
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.DevID, a.UnitID, a.UnitNumber, string(a.Type), string(a.Severity),
			string(detailsJSON), a.DetectedAt, a.Resolved,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert anomaly")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit anomaly tx")
}

func (s *SQLiteStore) ListAnomalies(ctx context.Context, devID string, unresolvedOnly bool) ([]model.UnitAnomaly, error) {
	query := `SELECT id, dev_id, COALESCE(unit_id, ''), COALESCE(unit_number, ''), anomaly_type, severity, details, detected_at, resolved
	          FROM unit_anomalies WHERE dev_id = ?`
	if unresolvedOnly {
		query += ` AND resolved = 0`
	}
	query += ` ORDER BY detected_at DESC`

	rows, err := s.db.QueryContext(ctx, query, devID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list anomalies %s", devID)
	}
	defer rows.Close()

	var out []model.UnitAnomaly
	for rows.Next() {
		var a model.UnitAnomaly
		var atype, severity, detailsJSON string
		if err := rows.Scan(&a.ID, &a.DevID, &a.UnitID, &a.UnitNumber, &atype, &severity,
			&detailsJSON, &a.DetectedAt, &a.Resolved); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan anomaly")
		}
		a.Type = model.AnomalyType(atype)
		a.Severity = model.AnomalySeverity(severity)
		if err := json.Unmarshal([]byte(detailsJSON), &a.Details); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal anomaly details")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list anomalies iterate")
}

func (s *SQLiteStore) ResolveAnomaly(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE unit_anomalies SET resolved = 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve anomaly %s", id)
	}
	return checkRowsAffected(res, "anomaly", id)
}

// Change log

func (s *SQLiteStore) AppendChangeLog(ctx context.Context, entry model.ChangeLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	var detailsJSON any
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal change log details")
		}
		detailsJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_log (id, dev_id, change_type, changed_at, details, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DevID, string(entry.ChangeType), entry.ChangedAt, detailsJSON, entry.Notes,
	)
	return eris.Wrap(err, "sqlite: append change log")
}

func (s *SQLiteStore) ListChangeLog(ctx context.Context, devID string, limit int) ([]model.ChangeLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dev_id, change_type, changed_at, details, notes
		 FROM change_log WHERE dev_id = ? ORDER BY changed_at DESC LIMIT ?`,
		devID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list change log %s", devID)
	}
	defer rows.Close()

	var out []model.ChangeLogEntry
	for rows.Next() {
		var e model.ChangeLogEntry
		var ctype string
		var detailsJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.DevID, &ctype, &e.ChangedAt, &detailsJSON, &e.Notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change log entry")
		}
		e.ChangeType = model.ChangeType(ctype)
		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal change log details")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list change log iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUnit(row scannable) (*model.Unit, error) {
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

func scanDevelopment(row scannable) (*model.Development, error) {
	var d model.Development
	var pricesJSON, insightsJSON sql.NullString
	err := row.Scan(&d.ID, &d.Name, &d.Postcode, &d.Lat, &d.Lon, &pricesJSON, &d.Description, &insightsJSON, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if pricesJSON.Valid && pricesJSON.String != "" {
		if err := json.Unmarshal([]byte(pricesJSON.String), &d.StartingPrices); err != nil {
			return nil, eris.Wrap(err, "unmarshal starting prices")
		}
	}
	if insightsJSON.Valid && insightsJSON.String != "" {
		d.Insights = &model.AreaInsights{}
		if err := json.Unmarshal([]byte(insightsJSON.String), d.Insights); err != nil {
			return nil, eris.Wrap(err, "unmarshal insights")
		}
	}
	return &d, nil
}
