// Package history maintains ordered conversation transcripts with
// append-or-update semantics keyed by display key.
//
// Two independent logs exist at runtime: the call-overlay history (ephemeral,
// backing the live call UI) and the text-chat history (held for the duration
// of chat mode and supplied back to the completion backend as context).
package history

import (
	"regexp"
	"strings"
	"sync"
)

// Role identifies the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// OverlayCap is the maximum number of entries mirrored into the in-call
// caption overlay. Oldest entries are evicted first.
const OverlayCap = 50

// FollowThreshold is the distance from the bottom of the view, in scroll
// units, within which the view keeps following new entries. A user who has
// scrolled further up keeps their position.
const FollowThreshold = 100

// spacingRepair inserts a space after sentence punctuation that runs
// directly into the next word. Concatenated ASR/TTS fragments often lack
// natural spacing ("Hello.How are you").
var spacingRepair = regexp.MustCompile(`([.,;?!])([a-zA-Z0-9])`)

// CleanText normalizes transcript text for display.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	return spacingRepair.ReplaceAllString(text, "$1 $2")
}

// Entry is one line of conversation history. Entries with a display key are
// mutable in place: a later upsert with the same key replaces the text while
// preserving position. Entries without a key are append-only status lines.
type Entry struct {
	Role       Role   `json:"role"`
	Text       string `json:"text"`
	DisplayKey string `json:"display_key,omitempty"`
}

// Log is an ordered transcript with append-or-update semantics.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	overlay []Entry
}

// NewLog creates an empty history log.
func NewLog() *Log {
	return &Log{index: make(map[string]int)}
}

// Upsert records text for the given role. If displayKey is non-empty and an
// entry with that key already exists, its text is replaced in place; this is
// how a streaming partial transcript is refined into its final form without
// duplicating lines. Empty or whitespace-only text is a no-op returning nil.
// The second result reports whether an existing entry was updated rather
// than a new one appended.
func (l *Log) Upsert(role Role, text, displayKey string) (*Entry, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{Role: role, Text: CleanText(text), DisplayKey: displayKey}

	updated := false
	if displayKey != "" {
		if pos, ok := l.index[displayKey]; ok {
			l.entries[pos].Text = entry.Text
			updated = true
		}
	}
	if !updated {
		if displayKey != "" {
			l.index[displayKey] = len(l.entries)
		}
		l.entries = append(l.entries, entry)
	}

	// System status lines are rendered in the history panes only, never in
	// the caption overlay.
	if role != RoleSystem {
		l.upsertOverlay(entry)
	}

	return &entry, updated
}

// Append records an append-only entry without a display key.
func (l *Log) Append(role Role, text string) *Entry {
	entry, _ := l.Upsert(role, text, "")
	return entry
}

func (l *Log) upsertOverlay(entry Entry) {
	if entry.DisplayKey != "" {
		for i := range l.overlay {
			if l.overlay[i].DisplayKey == entry.DisplayKey {
				l.overlay[i].Text = entry.Text
				return
			}
		}
	}
	l.overlay = append(l.overlay, entry)
	if len(l.overlay) > OverlayCap {
		l.overlay = l.overlay[len(l.overlay)-OverlayCap:]
	}
}

// Entries returns a copy of the full ordered history.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Overlay returns a copy of the capped caption overlay.
func (l *Log) Overlay() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.overlay))
	copy(out, l.overlay)
	return out
}

// Context returns the ordered user/assistant entries usable as conversation
// context for the completion backend. System lines are excluded.
func (l *Log) Context() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Role == RoleSystem {
			continue
		}
		out = append(out, Entry{Role: e.Role, Text: e.Text})
	}
	return out
}

// Len returns the number of entries in the full history.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset clears the log.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.overlay = nil
	l.index = make(map[string]int)
}

// ShouldFollow reports whether a view with the given scroll geometry was
// close enough to the bottom that it should track newly appended entries.
func ShouldFollow(scrollHeight, scrollTop, clientHeight int) bool {
	return scrollHeight-scrollTop-clientHeight < FollowThreshold
}
