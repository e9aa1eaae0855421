package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	dbpkg "github.com/BrandonDHaskell/Portunus/terminal/internal/db"
)

type DeviceStore struct {
	db     *sqlx.DB
	writer *dbpkg.Writer
}

func NewDeviceStore(db *sqlx.DB, writer *dbpkg.Writer) *DeviceStore {
	return &DeviceStore{db: db, writer: writer}
}

// MarkSeen creates the device row on first sight and bumps last_seen.
func (s *DeviceStore) MarkSeen(ctx context.Context, deviceID string, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO devices(device_id, first_seen_at_ms, last_seen_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  last_seen_at_ms = MAX(devices.last_seen_at_ms, excluded.last_seen_at_ms);
`, deviceID, ms, ms); err != nil {
			return fmt.Errorf("MarkSeen %s: %w", deviceID, err)
		}
		return nil
	})
}

func (s *DeviceStore) CountSeenSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM devices WHERE last_seen_at_ms >= ?;`, since.UTC().UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("CountSeenSince: %w", err)
	}
	return n, nil
}
