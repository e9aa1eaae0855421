package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
)

// ActiveDeviceWindow is how recently a terminal must have verified someone to
// count as active in stats.
const ActiveDeviceWindow = 24 * time.Hour

type DeviceRegistry struct {
	store  store.DeviceStore
	logger *zap.Logger
	now    func() time.Time
}

func NewDeviceRegistry(st store.DeviceStore, logger *zap.Logger) *DeviceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceRegistry{store: st, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// NoteSeen records activity for deviceID.  Failures are logged and dropped:
// device bookkeeping never fails a verification.
func (r *DeviceRegistry) NoteSeen(ctx context.Context, deviceID string) {
	if r == nil {
		return
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return
	}
	if err := r.store.MarkSeen(ctx, deviceID, r.now()); err != nil {
		r.logger.Warn("mark device seen failed", zap.String("device_id", deviceID), zap.Error(err))
	}
}

func (r *DeviceRegistry) ActiveCount(ctx context.Context) (int, error) {
	return r.store.CountSeenSince(ctx, r.now().Add(-ActiveDeviceWindow))
}
