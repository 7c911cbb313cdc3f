// Package store keeps a SQLite journal of consumer sessions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"imefeed/internal/ipc"
)

// Close reason written for sessions left open by a process that died.
const ReasonAbandoned = "abandoned"

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("store: session not found")

// SessionRecord is the persisted summary of one consumer session.
type SessionRecord struct {
	ID             string
	Endpoint       string
	ConnectedAt    time.Time
	DisconnectedAt time.Time // zero while the session is open
	Messages       int64
	CloseReason    string
	ServerPID      int
}

// Open reports whether the session has not been closed yet.
func (r SessionRecord) Open() bool {
	return r.DisconnectedAt.IsZero()
}

// Duration returns the session length, or zero while it is open.
func (r SessionRecord) Duration() time.Duration {
	if r.Open() {
		return 0
	}
	return r.DisconnectedAt.Sub(r.ConnectedAt)
}

// Stats aggregates the journal.
type Stats struct {
	Sessions int64
	Messages int64
	Open     int64
}

// Store represents the SQLite session journal.
type Store struct {
	db  *sql.DB
	pid int
}

var _ ipc.Journal = (*Store)(nil)

// Open opens or creates the SQLite database at path and runs migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := MigrateDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, pid: os.Getpid()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SessionOpened records a newly attached consumer.
func (s *Store) SessionOpened(ctx context.Context, sess *ipc.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, endpoint, connected_at, messages, server_pid)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.Endpoint, sess.ConnectedAt.UnixNano(), sess.Messages, s.pid,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionClosed records the end of a session.
func (s *Store) SessionClosed(ctx context.Context, sess *ipc.Session, reason string) error {
	disconnected := sess.DisconnectedAt
	if disconnected.IsZero() {
		disconnected = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET disconnected_at = ?, messages = ?, close_reason = ?
		WHERE id = ?`,
		disconnected.UnixNano(), sess.Messages, reason, sess.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	return nil
}

// CloseAbandoned marks sessions that were never closed as abandoned.
// It returns how many were updated.
func (s *Store) CloseAbandoned(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET disconnected_at = ?, close_reason = ?
		WHERE disconnected_at IS NULL`,
		now.UnixNano(), ReasonAbandoned,
	)
	if err != nil {
		return 0, fmt.Errorf("close abandoned sessions: %w", err)
	}
	return res.RowsAffected()
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, endpoint, connected_at, disconnected_at, messages, close_reason, server_pid
		FROM sessions WHERE id = ?`, id)

	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, connected_at, disconnected_at, messages, close_reason, server_pid
		FROM sessions
		ORDER BY connected_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Stats returns totals over the whole journal.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(messages), 0),
		       COALESCE(SUM(CASE WHEN disconnected_at IS NULL THEN 1 ELSE 0 END), 0)
		FROM sessions`).Scan(&st.Sessions, &st.Messages, &st.Open)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*SessionRecord, error) {
	var (
		rec          SessionRecord
		connected    int64
		disconnected sql.NullInt64
		reason       sql.NullString
	)
	if err := sc.Scan(&rec.ID, &rec.Endpoint, &connected, &disconnected, &rec.Messages, &reason, &rec.ServerPID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	rec.ConnectedAt = time.Unix(0, connected)
	if disconnected.Valid {
		rec.DisconnectedAt = time.Unix(0, disconnected.Int64)
	}
	rec.CloseReason = reason.String
	return &rec, nil
}
