package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/internal/migration"
)

type fakeMigrator struct {
	version uint
	dirty   bool
	total   uint
	ledger  *migration.LedgerInfo
	err     error
	forced  int
}

func (f *fakeMigrator) Up(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.version = f.total
	return nil
}

func (f *fakeMigrator) Down(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	if f.version > 0 {
		f.version--
	}
	return nil
}

func (f *fakeMigrator) Steps(ctx context.Context, n int) error {
	if f.err != nil {
		return f.err
	}
	f.version = uint(int(f.version) + n)
	return nil
}

func (f *fakeMigrator) Force(ctx context.Context, version int) error {
	f.forced = version
	return f.err
}

func (f *fakeMigrator) Version(ctx context.Context) (uint, bool, error) {
	return f.version, f.dirty, f.err
}

func (f *fakeMigrator) Status(ctx context.Context) ([]migration.MigrationStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []migration.MigrationStatus
	for v := uint(1); v <= f.total; v++ {
		out = append(out, migration.MigrationStatus{
			Version: v,
			Name:    "create_generation_records",
			Applied: v <= f.version,
			Dirty:   f.dirty && v == f.version,
		})
	}
	return out, nil
}

func (f *fakeMigrator) Info(ctx context.Context) (*migration.MigrationInfo, error) {
	return &migration.MigrationInfo{
		CurrentVersion:    f.version,
		Dirty:             f.dirty,
		TotalMigrations:   int(f.total),
		AppliedMigrations: int(f.version),
		PendingMigrations: int(f.total - f.version),
	}, nil
}

func (f *fakeMigrator) Ledger(ctx context.Context) (*migration.LedgerInfo, error) {
	if f.ledger == nil {
		return &migration.LedgerInfo{}, nil
	}
	return f.ledger, nil
}

func (f *fakeMigrator) Close() error { return nil }

func TestMigrateUpAndStatus(t *testing.T) {
	m := &fakeMigrator{total: 1}
	var buf bytes.Buffer
	ctx := context.Background()

	require.NoError(t, migrateUp(ctx, m, &buf, 0))
	assert.Contains(t, buf.String(), "migrate up: schema at version 1, 0 pending")

	buf.Reset()
	m.ledger = &migration.LedgerInfo{Exists: true, Total: 3, ByStatus: map[string]int64{"SUCCEEDED": 2, "FAILED": 1}}
	require.NoError(t, migrateStatus(ctx, m, &buf, 0))
	out := buf.String()
	assert.Contains(t, out, "000001")
	assert.Contains(t, out, "create_generation_records")
	assert.Contains(t, out, "applied")
	assert.Contains(t, out, "generation_records: 3 rows (FAILED 1, SUCCEEDED 2)")
}

func TestMigrateVersion(t *testing.T) {
	m := &fakeMigrator{total: 1}
	var buf bytes.Buffer

	require.NoError(t, migrateVersion(context.Background(), m, &buf, 0))
	assert.Contains(t, buf.String(), "schema version: none")

	buf.Reset()
	m.version, m.dirty = 1, true
	require.NoError(t, migrateVersion(context.Background(), m, &buf, 0))
	assert.Contains(t, buf.String(), "mediaflow migrate force 1")
}

func TestMigrateStepsForceInfo(t *testing.T) {
	m := &fakeMigrator{total: 2, version: 2}
	var buf bytes.Buffer
	ctx := context.Background()

	require.NoError(t, migrateSteps(ctx, m, &buf, -1))
	assert.Contains(t, buf.String(), "reverting 1 version(s)")
	assert.Equal(t, uint(1), m.version)
	assert.Error(t, migrateSteps(ctx, m, &buf, 0))

	buf.Reset()
	require.NoError(t, migrateForce(ctx, m, &buf, 2))
	assert.Equal(t, 2, m.forced)

	buf.Reset()
	require.NoError(t, migrateInfo(ctx, m, &buf, 0))
	assert.Contains(t, buf.String(), "versions pending: 1")
	assert.Contains(t, buf.String(), "generation_records: not created yet")
}

func TestMigratePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	m := &fakeMigrator{total: 1, err: boom}
	var buf bytes.Buffer
	ctx := context.Background()

	assert.ErrorIs(t, migrateUp(ctx, m, &buf, 0), boom)
	assert.ErrorIs(t, migrateDown(ctx, m, &buf, 0), boom)
	assert.ErrorIs(t, migrateStatus(ctx, m, &buf, 0), boom)
}

func TestLedgerLine(t *testing.T) {
	assert.Equal(t, "generation_records: not created yet", ledgerLine(nil))
	assert.Equal(t, "generation_records: empty", ledgerLine(&migration.LedgerInfo{Exists: true}))
}
