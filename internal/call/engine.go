package call

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/anchor-live/internal/history"
	"github.com/ashureev/anchor-live/internal/llm"
	"github.com/ashureev/anchor-live/internal/store"
	"github.com/ashureev/anchor-live/internal/transcript"
	"github.com/google/uuid"
)

// Config holds engine parameters.
type Config struct {
	// UID is the local participant id published into the channel and handed
	// to the agent so it knows who to listen to.
	UID string

	// FallbackDelay is how long to wait for remote video after remote audio
	// arrives in video mode before degrading to voice presentation.
	FallbackDelay time.Duration
}

// Deps are the engine's collaborators. Transport and Devices are required;
// the rest are optional and checked for nil before use.
type Deps struct {
	Transport Transport
	Devices   Devices
	Agents    AgentService
	Completer Completer
	Ledger    Ledger
	Sink      Sink
	Logger    *slog.Logger
}

// Engine owns one session's mutable state: the current mode, the active
// call, both history logs and the fragment reassembler. All methods are
// safe for concurrent use; internally a single mutex serializes everything,
// preserving the event-loop semantics the protocol assumes.
type Engine struct {
	cfg  Config
	deps Deps

	mu          sync.Mutex
	reassembler *transcript.Reassembler
	callHistory *history.Log
	textHistory *history.Log

	state    State
	mode     Mode
	micMuted bool

	channelID      string
	sessionID      string
	agentID        string
	micTrack       Track
	camTrack       Track
	remoteAudio    bool
	remoteVideo    bool
	voiceFallback  bool
	cameraDegraded bool
	fallback       *time.Timer
}

// NewEngine creates an idle engine in video mode.
func NewEngine(cfg Config, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = 8 * time.Second
	}
	return &Engine{
		cfg:         cfg,
		deps:        deps,
		reassembler: transcript.NewReassembler(deps.Logger),
		callHistory: history.NewLog(),
		textHistory: history.NewLog(),
		state:       StateIdle,
		mode:        ModeVideo,
	}
}

// Snapshot returns the current UI projection.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// CallHistory returns the call-overlay history log.
func (e *Engine) CallHistory() *history.Log {
	return e.callHistory
}

// TextHistory returns the text-chat history log.
func (e *Engine) TextHistory() *history.Log {
	return e.textHistory
}

// SetMode switches the interaction mode. Switching while a call is active
// runs the full end transition first so no transport or UI state can bleed
// across modes.
func (e *Engine) SetMode(ctx context.Context, mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		e.stopLocked(ctx)
	}
	e.mode = mode
	e.pushStateLocked()
}

// SetMuted toggles the microphone. The flag is orthogonal to call lifecycle:
// with a live microphone it applies immediately, otherwise it is remembered
// and applied at the next media acquisition.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.micMuted = muted
	if e.micTrack != nil {
		if err := e.micTrack.SetEnabled(!muted); err != nil {
			e.deps.Logger.Warn("Failed to toggle microphone", "error", err)
		}
	}
	e.pushStateLocked()
}

// Muted reports the current mute flag.
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.micMuted
}

// StartCall runs a full call start. Starting while a call is active runs the
// end transition first (implicit stop-then-start), so start/end system
// entries always pair up in strict order.
func (e *Engine) StartCall(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == ModeText {
		return fmt.Errorf("no call to start in text mode")
	}
	if e.state != StateIdle {
		e.stopLocked(ctx)
	}

	e.channelID = "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	e.sessionID = uuid.NewString()
	e.reassembler.Reset()
	e.remoteAudio = false
	e.remoteVideo = false
	e.voiceFallback = false
	e.cameraDegraded = false
	e.setStateLocked(StateConnecting)

	e.recordSystemLocked(fmt.Sprintf("--- %s SESSION STARTED ---", strings.ToUpper(string(e.mode))))

	if e.deps.Ledger != nil {
		if err := e.deps.Ledger.RecordStart(ctx, store.CallSession{
			SessionID: e.sessionID,
			ChannelID: e.channelID,
			Mode:      string(e.mode),
			StartedAt: time.Now(),
		}); err != nil {
			e.deps.Logger.Warn("Failed to record session start", "session_id", e.sessionID, "error", err)
		}
	}

	if err := e.deps.Transport.Join(ctx, e.channelID, e.cfg.UID); err != nil {
		return e.failLocked(ctx, fmt.Errorf("join channel: %w", err))
	}

	e.setStateLocked(StateMediaAcquiring)

	mic, err := e.deps.Devices.AcquireMicrophone(ctx)
	if err != nil {
		return e.failLocked(ctx, fmt.Errorf("acquire microphone: %w", err))
	}
	e.micTrack = mic

	// A user who muted before starting the call must stay muted after join.
	if e.micMuted {
		if err := mic.SetEnabled(false); err != nil {
			e.deps.Logger.Warn("Failed to apply mute state", "error", err)
		}
	}

	tracks := []Track{mic}
	if e.mode == ModeVideo {
		cam, camErr := e.deps.Devices.AcquireCamera(ctx)
		if camErr != nil {
			// Camera denial degrades the call to audio-only; it never
			// aborts the attempt.
			e.deps.Logger.Warn("Camera acquisition failed, continuing audio-only", "error", camErr)
			e.cameraDegraded = true
			if e.deps.Sink != nil {
				e.deps.Sink.ErrorMessage("Camera access denied.")
			}
		} else {
			e.camTrack = cam
			tracks = append(tracks, cam)
		}
	}

	if err := e.deps.Transport.Publish(ctx, tracks); err != nil {
		return e.failLocked(ctx, fmt.Errorf("publish tracks: %w", err))
	}

	e.setStateLocked(StateAwaitingRemote)

	agentID, err := e.deps.Agents.Start(ctx, e.channelID, e.cfg.UID, string(e.mode))
	if err != nil {
		return e.failLocked(ctx, fmt.Errorf("start agent: %w", err))
	}
	e.agentID = agentID

	if e.deps.Ledger != nil {
		if err := e.deps.Ledger.SetAgentID(ctx, e.sessionID, agentID); err != nil {
			e.deps.Logger.Warn("Failed to record agent id", "session_id", e.sessionID, "error", err)
		}
	}

	e.setStateLocked(StateLive)
	e.deps.Logger.Info("Call live", "session_id", e.sessionID, "channel_id", e.channelID, "mode", e.mode, "agent_id", agentID)
	return nil
}

// Hangup ends the active call. A hangup with no call in progress is a no-op.
func (e *Engine) Hangup(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return
	}
	e.stopLocked(ctx)
}

// RemoteMediaArrived handles asynchronous, order-independent arrival of the
// agent's media. Audio in voice mode reveals the voice UI. Video in video
// mode reveals the video surface and cancels any pending fallback. Audio in
// video mode before video arms the fallback timer.
func (e *Engine) RemoteMediaArrived(kind MediaKind) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Events from an already-ended session are stale.
	if e.sessionID == "" || (e.state != StateLive && e.state != StateAwaitingRemote) {
		return
	}

	switch kind {
	case MediaVideo:
		if e.mode != ModeVideo {
			return
		}
		e.deps.Logger.Info("Remote video arrived", "session_id", e.sessionID)
		e.remoteVideo = true
		e.clearFallbackLocked()
	case MediaAudio:
		e.deps.Logger.Info("Remote audio arrived", "session_id", e.sessionID)
		e.remoteAudio = true
		if e.mode == ModeVideo && !e.remoteVideo {
			e.armFallbackLocked()
		}
	default:
		return
	}
	e.pushStateLocked()
}

// IngestFrame feeds one raw data-channel frame through the reassembler and,
// when a transcription event completes, into the call history.
func (e *Engine) IngestFrame(raw []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessionID == "" {
		return
	}

	ev := e.reassembler.Ingest(raw)
	if ev == nil {
		return
	}

	routed, ok := transcript.Route(ev, e.sessionID)
	if !ok {
		return
	}

	entry, updated := e.callHistory.Upsert(routed.Role, routed.Text, routed.DisplayKey)
	if entry == nil {
		return
	}
	if e.deps.Sink != nil {
		e.deps.Sink.Caption(TargetCall, *entry, updated)
	}
}

// SendChat handles one text-mode message: it records the user entry, asks
// the completion backend with the prior conversation as context, and records
// the reply. A completion failure becomes a system line in the chat history;
// the session itself is unaffected.
func (e *Engine) SendChat(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	e.mu.Lock()
	prior := e.textHistory.Context()
	entry, _ := e.textHistory.Upsert(history.RoleUser, text, fmt.Sprintf("user-%d", time.Now().UnixNano()))
	if entry != nil && e.deps.Sink != nil {
		e.deps.Sink.Caption(TargetChat, *entry, false)
	}
	completer := e.deps.Completer
	e.mu.Unlock()

	if completer == nil {
		return fmt.Errorf("no completion backend configured")
	}

	hist := make([]llm.Message, 0, len(prior))
	for _, h := range prior {
		hist = append(hist, llm.Message{Role: string(h.Role), Content: h.Text})
	}

	reply, err := completer.Reply(ctx, text, hist)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.deps.Logger.Warn("Completion request failed", "error", err)
		if sys := e.textHistory.Append(history.RoleSystem, "Error connecting to AI"); sys != nil && e.deps.Sink != nil {
			e.deps.Sink.Caption(TargetChat, *sys, false)
		}
		return err
	}

	if replyEntry, _ := e.textHistory.Upsert(history.RoleAssistant, reply, fmt.Sprintf("ai-%d", time.Now().UnixNano())); replyEntry != nil && e.deps.Sink != nil {
		e.deps.Sink.Caption(TargetChat, *replyEntry, false)
	}
	return nil
}

// Close ends any active call and stops timers.
func (e *Engine) Close(ctx context.Context) {
	e.Hangup(ctx)
}

// stopLocked runs the full end transition: cancel the fallback timer,
// release the agent (best effort, not awaited), release local media, leave
// the channel and return every affordance to the disconnected baseline.
func (e *Engine) stopLocked(ctx context.Context) {
	e.clearFallbackLocked()

	if e.agentID != "" {
		agentID := e.agentID
		e.agentID = ""
		agents := e.deps.Agents
		logger := e.deps.Logger
		go func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := agents.Stop(stopCtx, agentID); err != nil {
				logger.Warn("Failed to stop agent", "agent_id", agentID, "error", err)
			}
		}()
	}

	e.releaseMediaLocked()

	if err := e.deps.Transport.Leave(ctx); err != nil {
		e.deps.Logger.Warn("Failed to leave channel", "error", err)
	}

	if e.deps.Ledger != nil && e.sessionID != "" {
		if err := e.deps.Ledger.RecordEnd(ctx, e.sessionID, time.Now()); err != nil {
			e.deps.Logger.Warn("Failed to record session end", "session_id", e.sessionID, "error", err)
		}
	}

	e.setStateLocked(StateEnded)
	e.recordSystemLocked("--- SESSION ENDED ---")
	e.deps.Logger.Info("Call ended", "session_id", e.sessionID)
	e.resetSessionLocked()
	e.setStateLocked(StateIdle)
}

// failLocked aborts the current call attempt: release whatever was acquired,
// surface the error, and return to idle.
func (e *Engine) failLocked(ctx context.Context, err error) error {
	e.deps.Logger.Error("Call attempt failed", "session_id", e.sessionID, "error", err)

	e.clearFallbackLocked()
	e.releaseMediaLocked()

	if leaveErr := e.deps.Transport.Leave(ctx); leaveErr != nil {
		e.deps.Logger.Debug("Failed to leave channel during cleanup", "error", leaveErr)
	}

	if e.deps.Ledger != nil && e.sessionID != "" {
		if ledgerErr := e.deps.Ledger.RecordEnd(ctx, e.sessionID, time.Now()); ledgerErr != nil {
			e.deps.Logger.Warn("Failed to record session end", "session_id", e.sessionID, "error", ledgerErr)
		}
	}

	e.setStateLocked(StateError)
	if e.deps.Sink != nil {
		e.deps.Sink.ErrorMessage(err.Error())
	}

	e.resetSessionLocked()
	e.setStateLocked(StateIdle)
	return err
}

func (e *Engine) resetSessionLocked() {
	e.channelID = ""
	e.sessionID = ""
	e.agentID = ""
	e.remoteAudio = false
	e.remoteVideo = false
	e.voiceFallback = false
	e.cameraDegraded = false
}

func (e *Engine) releaseMediaLocked() {
	if e.micTrack != nil {
		if err := e.micTrack.Close(); err != nil {
			e.deps.Logger.Debug("Failed to close microphone track", "error", err)
		}
		e.micTrack = nil
	}
	if e.camTrack != nil {
		if err := e.camTrack.Close(); err != nil {
			e.deps.Logger.Debug("Failed to close camera track", "error", err)
		}
		e.camTrack = nil
	}
}

// armFallbackLocked starts the bounded wait for remote video. The timer's
// effect is keyed to the session id it was armed for, so a timer that
// outlives its call can never mutate a later session.
func (e *Engine) armFallbackLocked() {
	e.clearFallbackLocked()
	sid := e.sessionID
	e.fallback = time.AfterFunc(e.cfg.FallbackDelay, func() {
		e.fallbackFired(sid)
	})
}

func (e *Engine) clearFallbackLocked() {
	if e.fallback != nil {
		e.fallback.Stop()
		e.fallback = nil
	}
}

func (e *Engine) fallbackFired(sid string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Cancellation and call teardown can race the firing timer; check
	// session identity and current state before touching anything.
	if sid != e.sessionID || e.state != StateLive || e.remoteVideo {
		return
	}

	e.deps.Logger.Info("Video fallback fired", "session_id", sid)
	e.voiceFallback = true
	e.recordSystemLocked("Video unavailable. Switched to Voice.")
	e.pushStateLocked()
}

func (e *Engine) recordSystemLocked(text string) {
	if entry := e.callHistory.Append(history.RoleSystem, text); entry != nil && e.deps.Sink != nil {
		e.deps.Sink.Caption(TargetCall, *entry, false)
	}
}

func (e *Engine) setStateLocked(s State) {
	e.state = s
	e.pushStateLocked()
}

func (e *Engine) pushStateLocked() {
	if e.deps.Sink != nil {
		e.deps.Sink.StateChanged(e.snapshotLocked())
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		State:          e.state,
		StateName:      e.state.String(),
		Mode:           e.mode,
		SessionID:      e.sessionID,
		ChannelID:      e.channelID,
		AgentID:        e.agentID,
		MicMuted:       e.micMuted,
		CameraDegraded: e.cameraDegraded,
		RemoteAudio:    e.remoteAudio,
		RemoteVideo:    e.remoteVideo,
		VoiceFallback:  e.voiceFallback,
	}
}
