package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitestore "github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/sqlite"
)

func TestDeviceStore_MarkSeenAndCount(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDeviceStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, ds.MarkSeen(ctx, "terminal_01", now.Add(-48*time.Hour)))
	require.NoError(t, ds.MarkSeen(ctx, "terminal_02", now))
	require.NoError(t, ds.MarkSeen(ctx, "  ", now), "blank ids ignored")

	n, err := ds.CountSeenSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A late, older timestamp must not move last_seen backwards.
	require.NoError(t, ds.MarkSeen(ctx, "terminal_02", now.Add(-72*time.Hour)))
	n, err = ds.CountSeenSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, ds.MarkSeen(ctx, "terminal_01", now))
	n, err = ds.CountSeenSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
