package transcript

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event object kinds emitted by the remote conversational agent.
const (
	ObjectAssistantTranscription = "assistant.transcription"
	ObjectUserTranscription      = "user.transcription"
)

// Event is a decoded transcription event. The agent emits more kinds than
// the two transcription objects; anything else is ignored by the router.
type Event struct {
	Object    string  `json:"object"`
	Text      string  `json:"text"`
	Content   string  `json:"content"`
	TurnID    *FlexID `json:"turn_id,omitempty"`
	MessageID *FlexID `json:"message_id,omitempty"`
}

// Transcript returns the usable text of the event: `text` when present,
// falling back to `content`.
func (e *Event) Transcript() string {
	if e.Text != "" {
		return e.Text
	}
	return e.Content
}

// FlexID is an identifier that arrives either as a JSON number or a string,
// depending on the agent version.
type FlexID string

// UnmarshalJSON accepts both string and numeric encodings.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// MarshalJSON encodes numeric-looking ids as numbers, matching the wire form.
func (f FlexID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(f), 10, 64); err == nil {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

func (f FlexID) String() string {
	return string(f)
}
