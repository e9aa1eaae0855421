package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	dbpkg "github.com/BrandonDHaskell/Portunus/terminal/internal/db"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

type AccessEventStore struct {
	db     *sqlx.DB
	writer *dbpkg.Writer
}

func NewAccessEventStore(db *sqlx.DB, writer *dbpkg.Writer) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

type accessEventRow struct {
	EventID     string          `db:"event_id"`
	SubjectID   sql.NullString  `db:"subject_id"`
	Outcome     string          `db:"outcome"`
	Reason      string          `db:"reason"`
	Confidence  sql.NullFloat64 `db:"confidence"`
	DeviceID    string          `db:"device_id"`
	Degraded    bool            `db:"degraded"`
	CreatedAtMs int64           `db:"created_at_ms"`
}

func (r accessEventRow) toEvent() types.AccessEvent {
	ev := types.AccessEvent{
		ID:        r.EventID,
		SubjectID: r.SubjectID.String,
		Outcome:   types.Outcome(r.Outcome),
		Reason:    r.Reason,
		DeviceID:  r.DeviceID,
		Degraded:  r.Degraded,
		CreatedAt: time.UnixMilli(r.CreatedAtMs).UTC(),
	}
	if r.Confidence.Valid {
		c := r.Confidence.Float64
		ev.Confidence = &c
	}
	return ev
}

func (s *AccessEventStore) AppendAccessEvent(ctx context.Context, ev types.AccessEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var subjectID, confidence any
	if ev.SubjectID != "" {
		subjectID = ev.SubjectID
	}
	if ev.Confidence != nil {
		confidence = *ev.Confidence
	}

	var degraded int
	if ev.Degraded {
		degraded = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  event_id, subject_id, outcome, reason, confidence,
  device_id, degraded, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			ev.ID, subjectID, string(ev.Outcome), ev.Reason, confidence,
			ev.DeviceID, degraded, ev.CreatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("AppendAccessEvent insert: %w", err)
		}
		return nil
	})
}

func (s *AccessEventStore) ListAccessEvents(ctx context.Context, f store.AccessEventFilter, p store.Page) (store.AccessEventPage, error) {
	p = p.Normalize()

	var (
		conds []string
		args  []any
	)
	if f.SubjectID != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, f.SubjectID)
	}
	if f.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM access_events`+where+`;`, args...); err != nil {
		return store.AccessEventPage{}, fmt.Errorf("ListAccessEvents count: %w", err)
	}

	var rows []accessEventRow
	q := `
SELECT event_id, subject_id, outcome, reason, confidence, device_id, degraded, created_at_ms
FROM access_events` + where + `
ORDER BY seq DESC
LIMIT ? OFFSET ?;`
	if err := s.db.SelectContext(ctx, &rows, q, append(args, p.Limit, p.Offset())...); err != nil {
		return store.AccessEventPage{}, fmt.Errorf("ListAccessEvents select: %w", err)
	}

	out := store.AccessEventPage{
		Events: make([]types.AccessEvent, 0, len(rows)),
		Total:  total,
		Page:   p.Page,
		Pages:  store.PagesFor(total, p.Limit),
	}
	for _, r := range rows {
		out.Events = append(out.Events, r.toEvent())
	}
	return out, nil
}

func (s *AccessEventStore) CountByOutcome(ctx context.Context) (map[types.Outcome]int64, error) {
	var rows []struct {
		Outcome string `db:"outcome"`
		N       int64  `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT outcome, COUNT(*) AS n FROM access_events GROUP BY outcome;`); err != nil {
		return nil, fmt.Errorf("CountByOutcome: %w", err)
	}
	out := make(map[types.Outcome]int64, len(rows))
	for _, r := range rows {
		out[types.Outcome(r.Outcome)] = r.N
	}
	return out, nil
}
