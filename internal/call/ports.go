package call

import (
	"context"
	"time"

	"github.com/ashureev/anchor-live/internal/history"
	"github.com/ashureev/anchor-live/internal/llm"
	"github.com/ashureev/anchor-live/internal/store"
)

// Track is a local capture capability (microphone or camera). Tracks are
// exclusively owned by the engine: acquired during media acquisition and
// released only on call end or acquisition failure, so a capture device can
// neither leak nor be double-released.
type Track interface {
	SetEnabled(enabled bool) error
	Close() error
}

// Devices acquires local capture capabilities.
type Devices interface {
	AcquireMicrophone(ctx context.Context) (Track, error)
	AcquireCamera(ctx context.Context) (Track, error)
}

// Transport is the opaque realtime media channel: join a named channel,
// publish local tracks into it, leave again. Everything else about the media
// SDK (subscription, rendering, the data channel delivery itself) stays on
// the other side of this port.
type Transport interface {
	Join(ctx context.Context, channelID, uid string) error
	Publish(ctx context.Context, tracks []Track) error
	Leave(ctx context.Context) error
}

// AgentService provisions and releases the remote conversational agent.
// Implemented by agent.Client.
type AgentService interface {
	Start(ctx context.Context, channel, uid, mode string) (string, error)
	Stop(ctx context.Context, agentID string) error
}

// Completer answers text-chat messages. Implemented by llm.Client.
type Completer interface {
	Reply(ctx context.Context, message string, hist []llm.Message) (string, error)
}

// HistoryTarget selects which history pane a caption belongs to.
type HistoryTarget string

const (
	TargetCall HistoryTarget = "call"
	TargetChat HistoryTarget = "chat"
)

// Sink receives UI-facing events. Rendering is a pure projection of these
// events plus Snapshot; the engine never touches presentation state itself.
type Sink interface {
	// StateChanged is called after every state or flag transition.
	StateChanged(snap Snapshot)

	// Caption is called for every entry recorded into a history, including
	// in-place updates of a previously emitted display key.
	Caption(target HistoryTarget, entry history.Entry, updated bool)

	// ErrorMessage surfaces a visible, non-blocking error line.
	ErrorMessage(text string)
}

// Ledger records call bookkeeping. Implemented by store.Repository; a nil
// ledger disables bookkeeping entirely.
type Ledger interface {
	RecordStart(ctx context.Context, session store.CallSession) error
	SetAgentID(ctx context.Context, sessionID, agentID string) error
	RecordEnd(ctx context.Context, sessionID string, endedAt time.Time) error
}
