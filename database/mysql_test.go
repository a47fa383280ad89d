package database

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/charmbracelet/log"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tajaa/matcha-recruit-sub002/config"
	"github.com/tajaa/matcha-recruit-sub002/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db, DialectMySQL, log.New(io.Discard))
	store.SetClock(func() time.Time { return storeNow })
	return store, mock
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{
		Host: "db.internal", Port: "3306", User: "tier1", Password: "s3cret", DBName: "compliance",
	})
	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:3306", parsed.Addr)
	assert.Equal(t, "compliance", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
	assert.Equal(t, time.UTC, parsed.Loc)
}

func TestMySQLUpsertCacheEntry(t *testing.T) {
	store, mock := newMockStore(t)
	sourceID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE jurisdiction_name = VALUES(jurisdiction_name)")).
		WithArgs(sourceID.String(), "san_francisco_ca", "minimum_wage", "general",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := requirement("san_francisco_ca", "San Francisco", models.LevelCity, "CA")
	req.RateType = ""
	require.NoError(t, store.UpsertCacheEntry(context.Background(), sourceID, req, storeNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSeedSources(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE source_name = VALUES(source_name)")).
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.SeedSources(context.Background(), []models.Source{testSource("state_html", models.CoverageState)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSetSourceActiveNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE structured_data_sources SET is_active = ?")).
		WithArgs(false, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetSourceActive(context.Background(), "missing", false)
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLQueryTier1(t *testing.T) {
	store, mock := newMockStore(t)
	sourceID := uuid.New()
	fetched := storeNow.Add(-time.Hour)

	columns := []string{
		"id", "source_id", "jurisdiction_key", "jurisdiction_name", "jurisdiction_level",
		"state", "category", "rate_type", "current_value", "numeric_value",
		"effective_date", "next_scheduled_date", "next_scheduled_value",
		"source_url", "notes", "raw_data", "fetched_at", "source_name", "source_key",
	}
	mock.ExpectQuery(regexp.QuoteMeta("(c.jurisdiction_key = ? OR c.jurisdiction_level = 'state')")).
		WithArgs("CA", "minimum_wage", sqlmock.AnyArg(), true, "san_francisco_ca").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(7), sourceID.String(), "san_francisco_ca", "San Francisco", "city",
				"CA", "minimum_wage", "general", "$18.67", 18.67,
				time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), nil, nil,
				"https://example.com", nil, `{"City":"San Francisco"}`, fetched, "Local feed", "local_csv"))

	rows, err := store.QueryTier1(context.Background(), models.CacheLookup{
		State: "CA", Category: "minimum_wage", JurisdictionKey: "san_francisco_ca", FetchedSince: storeNow.Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, int64(7), r.ID)
	assert.Equal(t, sourceID, r.SourceID)
	require.NotNil(t, r.NumericValue)
	assert.InDelta(t, 18.67, *r.NumericValue, 0.0001)
	assert.Nil(t, r.NextScheduledDate)
	assert.Empty(t, r.Notes)
	assert.Equal(t, "San Francisco", r.RawData["City"])
	assert.Equal(t, "Local feed", r.SourceName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
