package store

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// SubjectStore is the identity registry.  Upsert is keyed by SubjectID and
// preserves CreatedAt of an existing row; last writer wins.
type SubjectStore interface {
	FindBySubjectID(ctx context.Context, subjectID string) (types.Subject, error)
	ListAll(ctx context.Context) ([]types.Subject, error)
	Upsert(ctx context.Context, s types.Subject) error
	// MostRecentlyCreated returns ErrNotFound when the registry is empty.
	MostRecentlyCreated(ctx context.Context) (types.Subject, error)
	Count(ctx context.Context) (int, error)
}
