package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	_ "modernc.org/sqlite"
)

// ErrDatabase wraps SQLite failures returned by [Open] and [Sink.Query].
var ErrDatabase = errors.New("audit database error")

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          INTEGER NOT NULL,
	event_type  TEXT NOT NULL,
	identity    TEXT NOT NULL DEFAULT '',
	attempt_id  TEXT NOT NULL DEFAULT '',
	ip          TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL DEFAULT '',
	success     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_audit_identity ON audit_events(identity, ts);
CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(event_type, ts);
`

// Sink appends audit events to SQLite.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
	failed atomic.Uint64
}

var _ goVerify.AuditSink = (*Sink)(nil)

// Filter narrows [Sink.Query]. Zero fields match everything.
type Filter struct {
	Identity  string
	EventType string
	Since     time.Time
	Limit     int
}

// Open creates (or reuses) the database at path. A nil logger discards.
func Open(path string, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrDatabase, pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrDatabase, err)
	}
	return &Sink{db: db, logger: logger}, nil
}

// Emit implements goVerify.AuditSink.
func (s *Sink) Emit(ctx context.Context, event goVerify.AuditEvent) {
	if s == nil || s.db == nil {
		return
	}
	meta := []byte("{}")
	if len(event.Metadata) > 0 {
		if b, err := json.Marshal(event.Metadata); err == nil {
			meta = b
		}
	}
	success := 0
	if event.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (ts, event_type, identity, attempt_id, ip, stage, success, error, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().UnixNano(), event.EventType, event.Identity, event.AttemptID,
		event.IP, event.Stage, success, event.Error, string(meta),
	)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("audit insert failed", "event_type", event.EventType, "error", err)
	}
}

// Failed returns how many events could not be written.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

// Query returns matching events, newest first.
func (s *Sink) Query(ctx context.Context, f Filter) ([]goVerify.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.Identity != "" {
		where = append(where, "identity = ?")
		args = append(args, f.Identity)
	}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UTC().UnixNano())
	}

	q := "SELECT ts, event_type, identity, attempt_id, ip, stage, success, error, metadata FROM audit_events"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []goVerify.AuditEvent
	for rows.Next() {
		var (
			ev      goVerify.AuditEvent
			ts      int64
			success int
			meta    string
		)
		if err := rows.Scan(&ts, &ev.EventType, &ev.Identity, &ev.AttemptID, &ev.IP, &ev.Stage, &success, &ev.Error, &meta); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		ev.Success = success == 1
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrDatabase, err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return out, nil
}

// Count returns the number of stored events.
func (s *Sink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return n, nil
}

// Prune deletes events older than before and reports how many were removed.
func (s *Sink) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE ts < ?", before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
