// Package store provides the call-session ledger.
//
// The ledger records bookkeeping only: which sessions ran, in which channel
// and mode, and when they started and ended. Transcript text is never
// persisted; conversation history lives in memory for the duration of a
// session.
package store

import (
	"context"
	"time"
)

// CallSession is one bookkeeping row for a call attempt.
type CallSession struct {
	SessionID string
	ChannelID string
	Mode      string
	AgentID   string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Repository defines the interface for call-session bookkeeping.
type Repository interface {
	// RecordStart inserts a row for a newly started session.
	RecordStart(ctx context.Context, session CallSession) error

	// SetAgentID attaches the provisioned agent handle to a session.
	SetAgentID(ctx context.Context, sessionID, agentID string) error

	// RecordEnd marks a session ended. Ending an already-ended or unknown
	// session is a no-op.
	RecordEnd(ctx context.Context, sessionID string, endedAt time.Time) error

	// GetSession retrieves one session row, or nil if not found.
	GetSession(ctx context.Context, sessionID string) (*CallSession, error)

	// CountActive returns the number of sessions without an end timestamp.
	CountActive(ctx context.Context) (int, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
