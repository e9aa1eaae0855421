package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// TemplateDimension sizes the placeholder template of the seeded subject.
	TemplateDimension int
	DeviceID          string
}

// SeedDevSubjectID is the subject created by SeedDev.
const SeedDevSubjectID = "DEV-0001"

// SeedDev gives an empty dev database one subject and one device so the
// terminal is usable offline (sandbox fallback needs a subject to grant).
// The subject carries a placeholder template and is never overwritten.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	dim := opt.TemplateDimension
	if dim <= 0 {
		dim = 128
	}
	tmpl, err := json.Marshal(make([]float64, dim))
	if err != nil {
		return fmt.Errorf("seed template: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO subjects(
  subject_id, name, email, role, template_kind, template_json,
  created_at_ms, updated_at_ms
) VALUES (?, 'Dev Subject', 'dev@localhost', 'standard', 'placeholder', ?, ?, ?);
`, SeedDevSubjectID, string(tmpl), now, now); err != nil {
		return fmt.Errorf("seed subject %s: %w", SeedDevSubjectID, err)
	}

	if opt.DeviceID != "" {
		if _, err := db.ExecContext(ctx, `
INSERT INTO devices(device_id, first_seen_at_ms, last_seen_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(device_id) DO NOTHING;
`, opt.DeviceID, now, now); err != nil {
			return fmt.Errorf("seed device %s: %w", opt.DeviceID, err)
		}
	}

	return nil
}
