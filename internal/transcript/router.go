package transcript

import (
	"fmt"

	"github.com/ashureev/anchor-live/internal/history"
)

// RoutedTranscript is a transcription event classified and keyed for the
// history sink.
type RoutedTranscript struct {
	Role       history.Role
	Text       string
	DisplayKey string
}

// Route classifies a decoded event and derives its display key. It returns
// false for events that should not be rendered: unknown object kinds (the
// agent emits more than we display) and events without usable text.
//
// The display key binds to the session id at routing time, so a transcript
// from an earlier call can never overwrite a key that looks identical in a
// new one: session ids differ, therefore keys differ.
func Route(ev *Event, sessionID string) (*RoutedTranscript, bool) {
	if ev == nil {
		return nil, false
	}

	text := ev.Transcript()
	if text == "" {
		return nil, false
	}

	var role history.Role
	var prefix string
	switch ev.Object {
	case ObjectAssistantTranscription:
		role = history.RoleAssistant
		prefix = "ai"
	case ObjectUserTranscription:
		role = history.RoleUser
		prefix = "user"
	default:
		return nil, false
	}

	// Turn id is preferred over message id when both are present; partial
	// updates of the same utterance share a turn id and must collapse into
	// one history line.
	var base string
	switch {
	case ev.TurnID != nil && ev.TurnID.String() != "":
		base = "turn-" + ev.TurnID.String()
	case ev.MessageID != nil && ev.MessageID.String() != "":
		base = "msg-" + ev.MessageID.String()
	default:
		return nil, false
	}

	return &RoutedTranscript{
		Role:       role,
		Text:       text,
		DisplayKey: fmt.Sprintf("%s-%s-%s", prefix, base, sessionID),
	}, true
}
