package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"replicamgr/logging"
)

// AuditSink persists every dispatched wire record to a SQLite table for
// post-hoc inspection, grounded on hellsoul86-voxelcraft.ai's
// cmd/admin/db.go use of modernc.org/sqlite via database/sql. Pure-Go
// modernc.org/sqlite is used instead of mattn/go-sqlite3 (also present
// in the pack) because the latter requires cgo, which would burden
// every consumer of this module merely to exercise an optional
// debugging flag.
type AuditSink struct {
	db *sql.DB
}

// OpenAuditSink opens (creating if absent) a SQLite database at path
// and ensures its wire_records table exists.
func OpenAuditSink(path string) (*AuditSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS wire_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tag TEXT NOT NULL,
	tick INTEGER NOT NULL,
	actor TEXT NOT NULL,
	participant TEXT NOT NULL,
	reliable INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create wire_records table: %w", err)
	}
	return &AuditSink{db: db}, nil
}

// Write satisfies logging.Sink, recording one dispatch event. Only
// events in logging.CategoryDispatch are persisted; everything else is
// ignored, since the audit table exists for wire-record provenance,
// not general log retention.
func (s *AuditSink) Write(event logging.Event) error {
	if event.Category != logging.CategoryDispatch {
		return nil
	}
	participant := ""
	if len(event.Targets) > 0 {
		participant = event.Targets[0].ID
	}
	_, err := s.db.Exec(
		`INSERT INTO wire_records (tag, tick, actor, participant, reliable, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(event.Type), event.Tick, event.Actor.ID, participant, event.Reliable, event.Time.Format("2006-01-02T15:04:05.000Z07:00"),
	)
	return err
}

// Close satisfies logging.Sink.
func (s *AuditSink) Close(context.Context) error {
	return s.db.Close()
}
