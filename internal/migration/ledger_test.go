package migration

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1)::text")).
		WithArgs(LedgerTable).
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(LedgerTable))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM generation_records GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SUCCEEDED", 40).
			AddRow("FAILED", 2))

	info, err := readLedger(context.Background(), db)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(42), info.Total)
	assert.Equal(t, map[string]int64{"SUCCEEDED": 40, "FAILED": 2}, info.ByStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadLedger_TableMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1)::text")).
		WithArgs(LedgerTable).
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

	info, err := readLedger(context.Background(), db)
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Zero(t, info.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadLedger_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1)::text")).
		WillReturnError(assert.AnError)

	_, err = readLedger(context.Background(), db)
	assert.ErrorIs(t, err, assert.AnError)
}
