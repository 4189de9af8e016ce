// Package store provides the SQLite-backed session history for pdfchat.
// Each session id owns one ordered list of user and assistant turns. The
// default database is in-memory, so history lives exactly as long as the
// process; a file path can be configured for local debugging.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// MemoryDSN selects an in-memory database.
const MemoryDSN = ":memory:"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a question asked by the user.
	RoleUser Role = "user"
	// RoleAssistant is an answer produced by the chat model.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a session.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
	// CreatedAt is when the message was stored.
	CreatedAt time.Time `json:"createdAt"`
}

// Session summarises one known session.
type Session struct {
	ID        string    `json:"id"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore persists conversation history keyed by session id.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// History returns the session's turns oldest-first. An unknown session is
	// registered on the spot and comes back with an empty history.
	History(ctx context.Context, sessionID string) ([]Message, error)
	// AppendExchange stores a question and its answer atomically, in that order.
	AppendExchange(ctx context.Context, sessionID, question, answer string) error
	// Sessions lists every known session, oldest first.
	Sessions(ctx context.Context) ([]Session, error)
	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a SessionStore backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ SessionStore = (*SQLiteStore)(nil)

// ErrEmptySessionID is returned for a blank session id.
var ErrEmptySessionID = errors.New("store: session id must not be empty")

// Open opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use [MemoryDSN] for a process-lifetime database.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		path = MemoryDSN
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != MemoryDSN {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection serialises writers, and an in-memory database only
	// exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT    PRIMARY KEY,
    created_at  INTEGER NOT NULL  -- Unix nanoseconds
);
CREATE TABLE IF NOT EXISTS messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL REFERENCES sessions(id),
    role        TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content     TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureSession(ctx context.Context, e execer, sessionID string) error {
	const q = `INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`
	if _, err := e.ExecContext(ctx, q, sessionID, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("store: register session: %w", err)
	}
	return nil
}

func insertMessage(ctx context.Context, e execer, sessionID string, role Role, content string) error {
	const q = `INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := e.ExecContext(ctx, q, sessionID, string(role), content, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// History returns the session's turns oldest-first, registering the session
// if it is new.
func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if err := ensureSession(ctx, s.db, sessionID); err != nil {
		return nil, err
	}

	const q = `SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var role string
		var ts int64
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: history scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(0, ts).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: history rows: %w", err)
	}
	return msgs, nil
}

// AppendExchange stores question then answer in one transaction.
func (s *SQLiteStore) AppendExchange(ctx context.Context, sessionID, question, answer string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureSession(ctx, tx, sessionID); err != nil {
			return err
		}
		if err := insertMessage(ctx, tx, sessionID, RoleUser, question); err != nil {
			return err
		}
		return insertMessage(ctx, tx, sessionID, RoleAssistant, answer)
	})
}

// Sessions lists all sessions with their message counts.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]Session, error) {
	const q = `
SELECT s.id, s.created_at, COUNT(m.id)
FROM   sessions s
LEFT   JOIN messages m ON m.session_id = s.id
GROUP  BY s.id, s.created_at
ORDER  BY s.created_at ASC, s.id ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: sessions: %w", err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		var sess Session
		var ts int64
		if err := rows.Scan(&sess.ID, &ts, &sess.Messages); err != nil {
			return nil, fmt.Errorf("store: sessions scan: %w", err)
		}
		sess.CreatedAt = time.Unix(0, ts).UTC()
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sessions rows: %w", err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
