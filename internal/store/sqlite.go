package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS call_sessions (
		session_id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		agent_id TEXT,
		started_at INTEGER NOT NULL,
		ended_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_call_sessions_active ON call_sessions(started_at) WHERE ended_at IS NULL;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordStart inserts a row for a newly started session.
func (s *SQLiteStore) RecordStart(ctx context.Context, session CallSession) error {
	query := `
	INSERT INTO call_sessions (session_id, channel_id, mode, agent_id, started_at)
	VALUES (?, ?, ?, ?, ?)`

	var agentID interface{}
	if session.AgentID != "" {
		agentID = session.AgentID
	}

	_, err := s.db.ExecContext(ctx, query,
		session.SessionID, session.ChannelID, session.Mode,
		agentID, session.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record session start: %w", err)
	}
	return nil
}

// SetAgentID attaches the provisioned agent handle to a session.
func (s *SQLiteStore) SetAgentID(ctx context.Context, sessionID, agentID string) error {
	query := `UPDATE call_sessions SET agent_id = ? WHERE session_id = ?`
	result, err := s.db.ExecContext(ctx, query, agentID, sessionID)
	if err != nil {
		return fmt.Errorf("set agent id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("SetAgentID affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// RecordEnd marks a session ended.
func (s *SQLiteStore) RecordEnd(ctx context.Context, sessionID string, endedAt time.Time) error {
	query := `UPDATE call_sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, endedAt.Unix(), sessionID); err != nil {
		return fmt.Errorf("record session end: %w", err)
	}
	return nil
}

// GetSession retrieves one session row.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*CallSession, error) {
	query := `
	SELECT session_id, channel_id, mode, agent_id, started_at, ended_at
	FROM call_sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session CallSession
	var agentID sql.NullString
	var startedAt int64
	var endedAt sql.NullInt64

	err := row.Scan(
		&session.SessionID, &session.ChannelID, &session.Mode,
		&agentID, &startedAt, &endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.AgentID = agentID.String
	session.StartedAt = time.Unix(startedAt, 0)
	if endedAt.Valid {
		t := time.Unix(endedAt.Int64, 0)
		session.EndedAt = &t
	}

	return &session, nil
}

// CountActive returns the number of sessions without an end timestamp.
func (s *SQLiteStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_sessions WHERE ended_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
