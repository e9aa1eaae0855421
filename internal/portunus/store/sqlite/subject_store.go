package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	dbpkg "github.com/BrandonDHaskell/Portunus/terminal/internal/db"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

type SubjectStore struct {
	db     *sqlx.DB
	writer *dbpkg.Writer
}

func NewSubjectStore(db *sqlx.DB, writer *dbpkg.Writer) *SubjectStore {
	return &SubjectStore{db: db, writer: writer}
}

type subjectRow struct {
	SubjectID      string         `db:"subject_id"`
	Name           string         `db:"name"`
	Email          sql.NullString `db:"email"`
	Role           string         `db:"role"`
	TemplateKind   string         `db:"template_kind"`
	TemplateJSON   string         `db:"template_json"`
	ImageReference sql.NullString `db:"image_reference"`
	CreatedAtMs    int64          `db:"created_at_ms"`
	UpdatedAtMs    int64          `db:"updated_at_ms"`
}

const subjectColumns = `subject_id, name, email, role, template_kind, template_json,
  image_reference, created_at_ms, updated_at_ms`

func (r subjectRow) toSubject() (types.Subject, error) {
	var vec []float64
	if err := json.Unmarshal([]byte(r.TemplateJSON), &vec); err != nil {
		return types.Subject{}, fmt.Errorf("decode template for %s: %w", r.SubjectID, err)
	}
	return types.Subject{
		SubjectID:      r.SubjectID,
		Name:           r.Name,
		Email:          r.Email.String,
		Role:           types.ParseRole(r.Role),
		Template:       types.Template{Kind: types.TemplateKind(r.TemplateKind), Vector: vec},
		ImageReference: r.ImageReference.String,
		CreatedAt:      time.UnixMilli(r.CreatedAtMs).UTC(),
		UpdatedAt:      time.UnixMilli(r.UpdatedAtMs).UTC(),
	}, nil
}

func (s *SubjectStore) FindBySubjectID(ctx context.Context, subjectID string) (types.Subject, error) {
	var row subjectRow
	err := s.db.GetContext(ctx, &row, `SELECT `+subjectColumns+` FROM subjects WHERE subject_id = ?;`, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Subject{}, store.ErrNotFound
	}
	if err != nil {
		return types.Subject{}, fmt.Errorf("FindBySubjectID: %w", err)
	}
	return row.toSubject()
}

func (s *SubjectStore) ListAll(ctx context.Context) ([]types.Subject, error) {
	var rows []subjectRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+subjectColumns+` FROM subjects ORDER BY subject_id;`); err != nil {
		return nil, fmt.Errorf("ListAll: %w", err)
	}
	out := make([]types.Subject, 0, len(rows))
	for _, r := range rows {
		sub, err := r.toSubject()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *SubjectStore) MostRecentlyCreated(ctx context.Context) (types.Subject, error) {
	var row subjectRow
	err := s.db.GetContext(ctx, &row, `
SELECT `+subjectColumns+`
FROM subjects
ORDER BY created_at_ms DESC, subject_id DESC
LIMIT 1;`)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Subject{}, store.ErrNotFound
	}
	if err != nil {
		return types.Subject{}, fmt.Errorf("MostRecentlyCreated: %w", err)
	}
	return row.toSubject()
}

func (s *SubjectStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM subjects;`); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

// Upsert inserts or overwrites the subject.  created_at_ms of an existing
// row is kept so "most recently created" stays stable across re-enrollment.
func (s *SubjectStore) Upsert(ctx context.Context, sub types.Subject) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}

	vec := sub.Template.Vector
	if vec == nil {
		vec = []float64{}
	}
	tmpl, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("Upsert encode template: %w", err)
	}

	var email, imageRef any
	if sub.Email != "" {
		email = sub.Email
	}
	if sub.ImageReference != "" {
		imageRef = sub.ImageReference
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO subjects(
  subject_id, name, email, role, template_kind, template_json,
  image_reference, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(subject_id) DO UPDATE SET
  name            = excluded.name,
  email           = excluded.email,
  role            = excluded.role,
  template_kind   = excluded.template_kind,
  template_json   = excluded.template_json,
  image_reference = excluded.image_reference,
  updated_at_ms   = excluded.updated_at_ms;
`,
			sub.SubjectID, sub.Name, email, string(types.ParseRole(string(sub.Role))),
			string(sub.Template.Kind), string(tmpl), imageRef,
			sub.CreatedAt.UnixMilli(), sub.UpdatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("Upsert %s: %w", sub.SubjectID, err)
		}
		return nil
	})
}
