package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

// SubjectStore is an in-memory identity registry for tests and dev.
type SubjectStore struct {
	mu       sync.RWMutex
	subjects map[string]types.Subject
}

func NewSubjectStore() *SubjectStore {
	return &SubjectStore{subjects: make(map[string]types.Subject)}
}

func (s *SubjectStore) FindBySubjectID(_ context.Context, subjectID string) (types.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[subjectID]
	if !ok {
		return types.Subject{}, store.ErrNotFound
	}
	return cloneSubject(sub), nil
}

func (s *SubjectStore) ListAll(_ context.Context) ([]types.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Subject, 0, len(s.subjects))
	for _, sub := range s.subjects {
		out = append(out, cloneSubject(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (s *SubjectStore) Upsert(_ context.Context, sub types.Subject) error {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.subjects[sub.SubjectID]; ok {
		sub.CreatedAt = prev.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}
	s.subjects[sub.SubjectID] = cloneSubject(sub)
	return nil
}

func (s *SubjectStore) MostRecentlyCreated(_ context.Context) (types.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  types.Subject
		found bool
	)
	for _, sub := range s.subjects {
		// Ties broken by SubjectID so the result is stable.
		if !found || sub.CreatedAt.After(best.CreatedAt) ||
			(sub.CreatedAt.Equal(best.CreatedAt) && sub.SubjectID > best.SubjectID) {
			best = sub
			found = true
		}
	}
	if !found {
		return types.Subject{}, store.ErrNotFound
	}
	return cloneSubject(best), nil
}

func (s *SubjectStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subjects), nil
}

func cloneSubject(s types.Subject) types.Subject {
	if s.Template.Vector != nil {
		v := make([]float64, len(s.Template.Vector))
		copy(v, s.Template.Vector)
		s.Template.Vector = v
	}
	return s
}
