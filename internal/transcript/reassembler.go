// Package transcript reassembles fragmented transcription events delivered
// over the realtime data channel and routes them into conversation history.
//
// The remote agent streams base64-encoded JSON events as pipe-delimited
// fragments: `messageId|index|total|base64Slice`. Fragments of different
// messages interleave arbitrarily and carry no ordering guarantee, so each
// in-flight message gets a fixed slot array that is filled as fragments
// arrive and consumed once complete.
package transcript

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// Reassembler accumulates fragments keyed by message id until a complete
// payload can be decoded. It is not safe for concurrent use; each session
// owns exactly one reassembler and feeds it from a single event loop.
type Reassembler struct {
	pending map[string][]string
	logger  *slog.Logger
}

// NewReassembler creates an empty reassembler.
func NewReassembler(logger *slog.Logger) *Reassembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reassembler{
		pending: make(map[string][]string),
		logger:  logger,
	}
}

// Ingest processes one raw data-channel frame. It returns a decoded event
// when the frame completes a message, and nil otherwise. Malformed frames
// are dropped without mutating state: the channel may carry frames this
// component does not own, and a bad frame must never stall the pipeline.
func (r *Reassembler) Ingest(raw []byte) *Event {
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return nil
	}

	msgID := parts[0]
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		r.logger.Debug("[Transcript] Dropping frame with non-numeric index", "message_id", msgID, "index", parts[1])
		return nil
	}
	total, err := strconv.Atoi(parts[2])
	if err != nil {
		r.logger.Debug("[Transcript] Dropping frame with non-numeric total", "message_id", msgID, "total", parts[2])
		return nil
	}
	if total <= 0 || index < 1 || index > total {
		r.logger.Debug("[Transcript] Dropping frame with out-of-range index", "message_id", msgID, "index", index, "total", total)
		return nil
	}

	slots, ok := r.pending[msgID]
	if !ok {
		// Total is fixed by the first fragment seen for this id.
		slots = make([]string, total)
		r.pending[msgID] = slots
	}
	if index > len(slots) {
		// A later fragment disagrees with the established total.
		r.logger.Debug("[Transcript] Dropping frame beyond established total", "message_id", msgID, "index", index, "slots", len(slots))
		return nil
	}
	slots[index-1] = parts[3]

	for _, slot := range slots {
		if slot == "" {
			return nil
		}
	}

	// All fragments present. Clear the pending entry before decoding so a
	// corrupted message cannot accumulate forever.
	delete(r.pending, msgID)

	payload, err := base64.StdEncoding.DecodeString(strings.Join(slots, ""))
	if err != nil {
		r.logger.Warn("[Transcript] Failed to base64-decode message", "message_id", msgID, "error", err)
		return nil
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.Warn("[Transcript] Failed to parse message JSON", "message_id", msgID, "error", err)
		return nil
	}

	return &ev
}

// PendingCount reports how many messages are awaiting further fragments.
func (r *Reassembler) PendingCount() int {
	return len(r.pending)
}

// Reset discards all partially assembled messages. Called at call start so
// fragments from a previous session cannot complete into the new one.
func (r *Reassembler) Reset() {
	r.pending = make(map[string][]string)
}
