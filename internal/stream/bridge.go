package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ashureev/anchor-live/internal/call"
	"github.com/ashureev/anchor-live/internal/history"
	"github.com/coder/websocket"
)

// bridge adapts one WebSocket connection to the call engine's ports. The
// browser owns the actual media SDK; the bridge forwards transport and track
// commands to it and pushes captions and state snapshots back.
type bridge struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	micOK    bool
	cameraOK bool
}

func newBridge(conn *websocket.Conn, logger *slog.Logger) *bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &bridge{conn: conn, logger: logger}
}

// setDevices records which capture devices the browser reported as granted
// for the upcoming call attempt.
func (b *bridge) setDevices(micOK, cameraOK bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.micOK = micOK
	b.cameraOK = cameraOK
}

func (b *bridge) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.Write(context.Background(), websocket.MessageText, data)
}

func (b *bridge) send(v interface{}) {
	if err := b.writeJSON(v); err != nil {
		b.logger.Debug("WebSocket write failed", "error", err)
	}
}

// call.Transport

func (b *bridge) Join(ctx context.Context, channelID, uid string) error {
	return b.writeJSON(map[string]string{"type": "join", "channel": channelID, "uid": uid})
}

func (b *bridge) Publish(ctx context.Context, tracks []call.Track) error {
	kinds := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if bt, ok := t.(*browserTrack); ok {
			kinds = append(kinds, bt.kind)
		}
	}
	return b.writeJSON(map[string]interface{}{"type": "publish", "tracks": kinds})
}

func (b *bridge) Leave(ctx context.Context) error {
	return b.writeJSON(map[string]string{"type": "leave"})
}

// call.Devices

func (b *bridge) AcquireMicrophone(ctx context.Context) (call.Track, error) {
	b.mu.Lock()
	ok := b.micOK
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("microphone access denied")
	}
	return &browserTrack{bridge: b, kind: "mic"}, nil
}

func (b *bridge) AcquireCamera(ctx context.Context) (call.Track, error) {
	b.mu.Lock()
	ok := b.cameraOK
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("camera access denied")
	}
	return &browserTrack{bridge: b, kind: "camera"}, nil
}

// call.Sink

func (b *bridge) StateChanged(snap call.Snapshot) {
	b.send(map[string]interface{}{"type": "state", "state": snap})
}

func (b *bridge) Caption(target call.HistoryTarget, entry history.Entry, updated bool) {
	b.send(map[string]interface{}{
		"type":    "caption",
		"target":  string(target),
		"role":    string(entry.Role),
		"text":    entry.Text,
		"key":     entry.DisplayKey,
		"updated": updated,
	})
}

func (b *bridge) ErrorMessage(text string) {
	b.send(map[string]string{"type": "error", "text": text})
}

// Overlay replays the capped in-call caption overlay, typically after the
// client re-renders its call view. follow tells the client whether its view
// was close enough to the bottom to pin to the newest entry.
func (b *bridge) Overlay(entries []history.Entry, follow bool) {
	type overlayEntry struct {
		Role string `json:"role"`
		Text string `json:"text"`
		Key  string `json:"key,omitempty"`
	}
	out := make([]overlayEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, overlayEntry{Role: string(e.Role), Text: e.Text, Key: e.DisplayKey})
	}
	b.send(map[string]interface{}{"type": "overlay", "entries": out, "follow": follow})
}

// browserTrack is a proxy for a capture track held by the browser.
type browserTrack struct {
	bridge *bridge
	kind   string
}

func (t *browserTrack) SetEnabled(enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}
	return t.bridge.writeJSON(map[string]string{"type": "track", "kind": t.kind, "action": action})
}

func (t *browserTrack) Close() error {
	return t.bridge.writeJSON(map[string]string{"type": "track", "kind": t.kind, "action": "close"})
}
