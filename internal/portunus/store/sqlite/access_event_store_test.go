package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	sqlitestore "github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

func TestAccessEventStore_AppendRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccessEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	conf := 0.97
	at := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, as.AppendAccessEvent(ctx, types.AccessEvent{
		ID:         "ev-1",
		SubjectID:  "EMP-1",
		Outcome:    types.OutcomeGranted,
		Reason:     types.ReasonEngineMatch,
		Confidence: &conf,
		DeviceID:   "terminal_01",
		CreatedAt:  at,
	}))

	page, err := as.ListAccessEvents(ctx, store.AccessEventFilter{}, store.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Len(t, page.Events, 1)

	ev := page.Events[0]
	assert.Equal(t, "ev-1", ev.ID)
	assert.Equal(t, "EMP-1", ev.SubjectID)
	assert.Equal(t, types.OutcomeGranted, ev.Outcome)
	require.NotNil(t, ev.Confidence)
	assert.InDelta(t, 0.97, *ev.Confidence, 1e-9)
	assert.False(t, ev.Degraded)
	assert.True(t, at.Equal(ev.CreatedAt))
}

func TestAccessEventStore_NullableColumns(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccessEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.AppendAccessEvent(ctx, types.AccessEvent{
		ID:       "ev-unavail",
		Outcome:  types.OutcomeEngineUnavailable,
		Reason:   types.ReasonEngineUnavailable,
		DeviceID: "terminal_01",
		Degraded: true,
	}))

	page, err := as.ListAccessEvents(ctx, store.AccessEventFilter{}, store.Page{})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Empty(t, page.Events[0].SubjectID)
	assert.Nil(t, page.Events[0].Confidence)
	assert.True(t, page.Events[0].Degraded)
	assert.False(t, page.Events[0].CreatedAt.IsZero(), "created_at defaulted")
}

func TestAccessEventStore_DuplicateIDRejected(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccessEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	ev := types.AccessEvent{ID: "dup", Outcome: types.OutcomeDenied, Reason: types.ReasonEngineNoMatch, DeviceID: "t"}
	require.NoError(t, as.AppendAccessEvent(ctx, ev))
	assert.Error(t, as.AppendAccessEvent(ctx, ev))
}

func TestAccessEventStore_ListFiltersAndPaginates(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAccessEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		outcome := types.OutcomeDenied
		subject := ""
		if i%5 == 0 {
			outcome = types.OutcomeGranted
			subject = "EMP-1"
		}
		require.NoError(t, as.AppendAccessEvent(ctx, types.AccessEvent{
			ID:        fmt.Sprintf("ev-%02d", i),
			SubjectID: subject,
			Outcome:   outcome,
			Reason:    "r",
			DeviceID:  "terminal_01",
		}))
	}

	page, err := as.ListAccessEvents(ctx, store.AccessEventFilter{}, store.Page{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.Pages)
	require.Len(t, page.Events, 5)
	assert.Equal(t, "ev-04", page.Events[0].ID, "newest first")

	granted, err := as.ListAccessEvents(ctx, store.AccessEventFilter{Outcome: types.OutcomeGranted}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 5, granted.Total)
	for _, ev := range granted.Events {
		assert.Equal(t, "EMP-1", ev.SubjectID)
	}

	counts, err := as.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts[types.OutcomeGranted])
	assert.Equal(t, int64(20), counts[types.OutcomeDenied])
}
