package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

type DeviceStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{
		seen: make(map[string]time.Time),
	}
}

func (s *DeviceStore) MarkSeen(_ context.Context, deviceID string, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[deviceID] = t
	return nil
}

func (s *DeviceStore) CountSeenSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.seen {
		if !t.Before(since) {
			n++
		}
	}
	return n, nil
}
