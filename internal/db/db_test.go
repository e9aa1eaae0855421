package db_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/db"
)

func openFileDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "portunus.db")

	x, err := db.Open(context.Background(), db.Config{Path: path, Env: "dev"})
	require.NoError(t, err)
	t.Cleanup(func() { x.Close() })
	return x.DB
}

func TestOpen_AppliesMigrations(t *testing.T) {
	conn := openFileDB(t)

	versions, err := db.AppliedVersions(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openFileDB(t)

	require.NoError(t, db.Migrate(context.Background(), conn))
	versions, err := db.AppliedVersions(context.Background(), conn)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestAccessEvents_AppendOnlyTriggers(t *testing.T) {
	conn := openFileDB(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `
INSERT INTO access_events(event_id, outcome, reason, device_id, created_at_ms)
VALUES ('ev-1', 'denied', 'engine_no_match', 'terminal_01', 1);`)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, `UPDATE access_events SET outcome = 'granted' WHERE event_id = 'ev-1';`)
	assert.Error(t, err, "update must be rejected")

	_, err = conn.ExecContext(ctx, `DELETE FROM access_events WHERE event_id = 'ev-1';`)
	assert.Error(t, err, "delete must be rejected")

	var outcome string
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT outcome FROM access_events WHERE event_id = 'ev-1'`).Scan(&outcome))
	assert.Equal(t, "denied", outcome)
}

func TestSeedDev_InsertsPlaceholderSubjectOnce(t *testing.T) {
	conn := openFileDB(t)
	ctx := context.Background()
	opt := db.SeedDevOptions{TemplateDimension: 4, DeviceID: "terminal_01"}

	require.NoError(t, db.SeedDev(ctx, conn, opt))
	require.NoError(t, db.SeedDev(ctx, conn, opt))

	var (
		count int
		kind  string
	)
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(template_kind) FROM subjects WHERE subject_id = ?`, db.SeedDevSubjectID,
	).Scan(&count, &kind))
	assert.Equal(t, 1, count)
	assert.Equal(t, "placeholder", kind)
}

func TestWriter_CommitsAndRollsBack(t *testing.T) {
	conn := openFileDB(t)
	ctx := context.Background()
	w := db.NewWriter(conn)
	defer w.Close()

	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO devices(device_id, first_seen_at_ms, last_seen_at_ms) VALUES ('d1', 1, 1)`)
		return err
	})
	require.NoError(t, err)

	boom := assert.AnError
	err = w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO devices(device_id, first_seen_at_ms, last_seen_at_ms) VALUES ('d2', 1, 1)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n))
	assert.Equal(t, 1, n, "second insert rolled back")
}

func TestWriter_DoAfterClose(t *testing.T) {
	conn := openFileDB(t)
	w := db.NewWriter(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, db.ErrWriterClosed)
}
