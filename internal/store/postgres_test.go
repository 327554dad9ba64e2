package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetDevelopment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, postcode`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDevelopment(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHottestUnit_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT dev_id, unit_id, unit_number, score, reason, manual_override, updated_at`).
		WithArgs("dev1").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetHottestUnit(context.Background(), "dev1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertUnit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO units`).
		WithArgs(pgxmock.AnyArg(), "dev1", "A-101", 1, 540.0, 465000.0, "available",
			"A", 1, "", false, false, false, (*float64)(nil), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertUnit(context.Background(), model.Unit{
		DevID:      "dev1",
		UnitNumber: "A-101",
		Beds:       1,
		SizeSqft:   540,
		Price:      465000,
		Status:     model.UnitStatusAvailable,
		Building:   "A",
		Floor:      1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertHottestUnit_OverrideGuardInQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// The guard must be part of the statement so overrides survive refreshes.
	mock.ExpectExec(`(?s)ON CONFLICT \(dev_id\) DO UPDATE SET.*WHERE hottest_unit\.manual_override = false OR EXCLUDED\.manual_override = true`).
		WithArgs("dev1", "u1", "A-101", 62.5, "reason", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertHottestUnit(context.Background(), model.HottestUnit{
		DevID: "dev1", UnitID: "u1", UnitNumber: "A-101", Score: 62.5, Reason: "reason",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveAnomaly_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE unit_anomalies SET resolved = true`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ResolveAnomaly(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPublished_DeactivatesThenStamps(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT dev_id FROM price_lists WHERE id = \$1`).
		WithArgs("pl-2").
		WillReturnRows(pgxmock.NewRows([]string{"dev_id"}).AddRow("dev1"))
	mock.ExpectExec(`UPDATE price_lists SET is_active = false WHERE dev_id = \$1`).
		WithArgs("dev1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`UPDATE price_lists SET published_at = \$1, published_by = \$2, is_active = true`).
		WithArgs(pgxmock.AnyArg(), "ops@example.com", "pl-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.MarkPublished(context.Background(), "pl-2", "ops@example.com")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPublished_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT dev_id FROM price_lists WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := s.MarkPublished(context.Background(), "ghost", "ops")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
