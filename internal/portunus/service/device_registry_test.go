package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/memory"
)

type brokenDevices struct{}

func (brokenDevices) MarkSeen(context.Context, string, time.Time) error {
	return errors.New("locked")
}
func (brokenDevices) CountSeenSince(context.Context, time.Time) (int, error) { return 0, nil }

func TestDeviceRegistry_NoteSeenCounts(t *testing.T) {
	reg := service.NewDeviceRegistry(memory.NewDeviceStore(), nil)
	ctx := context.Background()

	reg.NoteSeen(ctx, "door-1")
	reg.NoteSeen(ctx, " door-1 ")
	reg.NoteSeen(ctx, "door-2")
	reg.NoteSeen(ctx, "")

	n, err := reg.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeviceRegistry_FailureIsSwallowed(t *testing.T) {
	reg := service.NewDeviceRegistry(brokenDevices{}, nil)
	assert.NotPanics(t, func() { reg.NoteSeen(context.Background(), "door-1") })
}
