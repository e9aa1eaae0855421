package store

import (
	"context"
	"time"
)

type DeviceRecord struct {
	DeviceID string
	LastSeen time.Time
}

type DeviceStore interface {
	MarkSeen(ctx context.Context, deviceID string, t time.Time) error
	CountSeenSince(ctx context.Context, since time.Time) (int, error)
}
