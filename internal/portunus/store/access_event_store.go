package store

import (
	"context"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// AccessEventFilter narrows a listing; zero values match everything.
type AccessEventFilter struct {
	SubjectID string
	DeviceID  string
	Outcome   types.Outcome
}

// Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Normalize applies defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

type AccessEventPage struct {
	Events []types.AccessEvent `json:"events"`
	Total  int                 `json:"total"`
	Page   int                 `json:"page"`
	Pages  int                 `json:"pages"`
}

// PagesFor returns the page count for total rows at the given limit.
func PagesFor(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// AccessEventStore persists access decisions as an append-only audit log.
// Nothing in this interface mutates or deletes an existing event.
type AccessEventStore interface {
	AppendAccessEvent(ctx context.Context, ev types.AccessEvent) error
	// ListAccessEvents returns matching events newest first.
	ListAccessEvents(ctx context.Context, f AccessEventFilter, p Page) (AccessEventPage, error)
	CountByOutcome(ctx context.Context) (map[types.Outcome]int64, error)
}
