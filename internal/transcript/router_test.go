package transcript

import (
	"encoding/json"
	"testing"

	"github.com/ashureev/anchor-live/internal/history"
)

func flexID(s string) *FlexID {
	id := FlexID(s)
	return &id
}

func TestRouteDisplayKeys(t *testing.T) {
	tests := []struct {
		name      string
		ev        Event
		sessionID string
		wantRole  history.Role
		wantKey   string
	}{
		{
			name:      "assistant by turn",
			ev:        Event{Object: ObjectAssistantTranscription, Text: "hello", TurnID: flexID("3")},
			sessionID: "S1",
			wantRole:  history.RoleAssistant,
			wantKey:   "ai-turn-3-S1",
		},
		{
			name:      "user by turn",
			ev:        Event{Object: ObjectUserTranscription, Text: "hi", TurnID: flexID("7")},
			sessionID: "S1",
			wantRole:  history.RoleUser,
			wantKey:   "user-turn-7-S1",
		},
		{
			name:      "message id fallback",
			ev:        Event{Object: ObjectAssistantTranscription, Text: "hey", MessageID: flexID("m42")},
			sessionID: "S2",
			wantRole:  history.RoleAssistant,
			wantKey:   "ai-msg-m42-S2",
		},
		{
			name:      "turn id wins over message id",
			ev:        Event{Object: ObjectUserTranscription, Text: "x", TurnID: flexID("1"), MessageID: flexID("m9")},
			sessionID: "S3",
			wantRole:  history.RoleUser,
			wantKey:   "user-turn-1-S3",
		},
		{
			name:      "content used when text empty",
			ev:        Event{Object: ObjectUserTranscription, Content: "via content", TurnID: flexID("2")},
			sessionID: "S1",
			wantRole:  history.RoleUser,
			wantKey:   "user-turn-2-S1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Route(&tt.ev, tt.sessionID)
			if !ok {
				t.Fatal("Route returned ok=false")
			}
			if got.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", got.Role, tt.wantRole)
			}
			if got.DisplayKey != tt.wantKey {
				t.Errorf("display key = %q, want %q", got.DisplayKey, tt.wantKey)
			}
		})
	}
}

func TestRouteSameTurnDifferentSessions(t *testing.T) {
	ev := Event{Object: ObjectAssistantTranscription, Text: "hello", TurnID: flexID("5")}

	a, ok := Route(&ev, "session_aaa")
	if !ok {
		t.Fatal("first route failed")
	}
	b, ok := Route(&ev, "session_bbb")
	if !ok {
		t.Fatal("second route failed")
	}
	if a.DisplayKey == b.DisplayKey {
		t.Errorf("same display key %q across sessions", a.DisplayKey)
	}
}

func TestRouteDrops(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"empty text", Event{Object: ObjectUserTranscription, TurnID: flexID("1")}},
		{"unknown object", Event{Object: "session.status", Text: "x", TurnID: flexID("1")}},
		{"no ids", Event{Object: ObjectAssistantTranscription, Text: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := Route(&tt.ev, "S1"); ok {
				t.Errorf("Route = %+v, want drop", got)
			}
		})
	}
}

func TestRouteNumericFlexID(t *testing.T) {
	// turn_id arrives as a JSON number; the derived key must still be stable.
	var ev Event
	raw := []byte(`{"text":"hi","object":"user.transcription","turn_id":12}`)
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := Route(&ev, "S1")
	if !ok {
		t.Fatal("Route returned ok=false")
	}
	if got.DisplayKey != "user-turn-12-S1" {
		t.Errorf("display key = %q, want user-turn-12-S1", got.DisplayKey)
	}
}
