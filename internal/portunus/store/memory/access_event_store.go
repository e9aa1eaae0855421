package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

// AccessEventStore is an in-memory append-only log of access decisions.
// It is intended for use in tests and dev environments.
type AccessEventStore struct {
	mu     sync.Mutex
	events []types.AccessEvent
}

func NewAccessEventStore() *AccessEventStore {
	return &AccessEventStore{}
}

func (s *AccessEventStore) AppendAccessEvent(_ context.Context, ev types.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *AccessEventStore) ListAccessEvents(_ context.Context, f store.AccessEventFilter, p store.Page) (store.AccessEventPage, error) {
	p = p.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Walk backwards: append order is creation order.
	var matched []types.AccessEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if f.SubjectID != "" && ev.SubjectID != f.SubjectID {
			continue
		}
		if f.DeviceID != "" && ev.DeviceID != f.DeviceID {
			continue
		}
		if f.Outcome != "" && ev.Outcome != f.Outcome {
			continue
		}
		matched = append(matched, ev)
	}

	out := store.AccessEventPage{
		Events: []types.AccessEvent{},
		Total:  len(matched),
		Page:   p.Page,
		Pages:  store.PagesFor(len(matched), p.Limit),
	}
	start := p.Offset()
	if start >= len(matched) {
		return out, nil
	}
	end := start + p.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out.Events = append(out.Events, matched[start:end]...)
	return out, nil
}

func (s *AccessEventStore) CountByOutcome(_ context.Context) (map[types.Outcome]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.Outcome]int64)
	for _, ev := range s.events {
		out[ev.Outcome]++
	}
	return out, nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *AccessEventStore) Events() []types.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AccessEvent, len(s.events))
	copy(out, s.events)
	return out
}
