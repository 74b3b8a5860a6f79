// Package call implements the call-session state machine that mediates
// between the realtime transport and the three interaction modes.
package call

// Mode is one of the three mutually exclusive interaction modes.
type Mode string

const (
	ModeVideo Mode = "video"
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
)

// ParseMode validates a wire-level mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeVideo, ModeVoice, ModeText:
		return Mode(s), true
	default:
		return "", false
	}
}

// State is the call lifecycle state. Every call attempt walks
// idle → connecting → media-acquiring → awaiting-remote → live → ended,
// with error reachable from any state and always returning to idle after
// cleanup.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateMediaAcquiring
	StateAwaitingRemote
	StateLive
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateMediaAcquiring:
		return "media-acquiring"
	case StateAwaitingRemote:
		return "awaiting-remote"
	case StateLive:
		return "live"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaKind identifies a remote media arrival.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Snapshot is an immutable view of the session for UI projection.
type Snapshot struct {
	State          State  `json:"-"`
	StateName      string `json:"state"`
	Mode           Mode   `json:"mode"`
	SessionID      string `json:"session_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`
	AgentID        string `json:"agent_id,omitempty"`
	MicMuted       bool   `json:"mic_muted"`
	CameraDegraded bool   `json:"camera_degraded"`
	RemoteAudio    bool   `json:"remote_audio"`
	RemoteVideo    bool   `json:"remote_video"`
	VoiceFallback  bool   `json:"voice_fallback"`
}

// ShowVideoSurface reports whether the avatar video surface should be
// visible: video mode, live, video arrived, and no fallback in effect.
func (s Snapshot) ShowVideoSurface() bool {
	return s.Mode == ModeVideo && s.State == StateLive && s.RemoteVideo && !s.VoiceFallback
}

// ShowVoiceUI reports whether the audio-only call presentation should be
// visible: voice mode with remote audio, or video mode after fallback.
func (s Snapshot) ShowVoiceUI() bool {
	if s.State != StateLive || !s.RemoteAudio {
		return false
	}
	return s.Mode == ModeVoice || (s.Mode == ModeVideo && s.VoiceFallback)
}
