// Package stream serves the WebSocket session endpoint: the browser relays
// raw data-channel frames and media signals up, and receives captions,
// state snapshots and transport commands back.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/anchor-live/internal/call"
	"github.com/ashureev/anchor-live/internal/config"
	"github.com/ashureev/anchor-live/internal/history"
	"github.com/coder/websocket"
)

// Handler upgrades connections and runs one call engine per session.
type Handler struct {
	cfg       *config.Config
	agents    call.AgentService
	completer call.Completer
	ledger    call.Ledger
	logger    *slog.Logger
}

// NewHandler creates a new WebSocket session handler.
func NewHandler(cfg *config.Config, agents call.AgentService, completer call.Completer, ledger call.Ledger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cfg: cfg, agents: agents, completer: completer, ledger: ledger, logger: logger}
}

// clientMessage is the envelope for JSON control messages from the browser.
// Raw fragment frames arrive as binary messages instead.
type clientMessage struct {
	Type   string `json:"type"`
	Mode   string `json:"mode,omitempty"`
	Mic    bool   `json:"mic,omitempty"`
	Camera bool   `json:"camera,omitempty"`
	Muted  bool   `json:"muted,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Text   string `json:"text,omitempty"`

	// Viewport geometry reported with sync requests.
	ScrollHeight int `json:"scroll_height,omitempty"`
	ScrollTop    int `json:"scroll_top,omitempty"`
	ClientHeight int `json:"client_height,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.logger.Info("Session connected", "ip", r.RemoteAddr)

	br := newBridge(ws, h.logger)
	engine := call.NewEngine(call.Config{
		UID:           r.RemoteAddr,
		FallbackDelay: h.cfg.FallbackDelay,
	}, call.Deps{
		Transport: br,
		Devices:   br,
		Agents:    h.agents,
		Completer: h.completer,
		Ledger:    h.ledger,
		Sink:      br,
		Logger:    h.logger,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer engine.Close(context.Background())

	h.readLoop(ctx, ws, br, engine)
	h.logger.Info("Session disconnected", "ip", r.RemoteAddr)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDevelopment() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.FrontendURL == "" || origin == h.cfg.FrontendURL {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.FrontendURL)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, br *bridge, engine *call.Engine) {
	for {
		msgType, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client")
			} else {
				h.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		// Binary messages are raw data-channel frames for the reassembler.
		if msgType == websocket.MessageBinary {
			engine.IngestFrame(message)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Debug("Dropping malformed control message", "error", err)
			continue
		}

		switch msg.Type {
		case "start":
			br.setDevices(msg.Mic, msg.Camera)
			// Starting a call includes a provisioning round trip; run it off
			// the read loop so media signals keep flowing.
			go func() {
				if err := engine.StartCall(ctx); err != nil {
					h.logger.Warn("Call start failed", "error", err)
				}
			}()
		case "hangup":
			engine.Hangup(ctx)
		case "mode":
			mode, ok := call.ParseMode(msg.Mode)
			if !ok {
				h.logger.Debug("Dropping unknown mode", "mode", msg.Mode)
				continue
			}
			engine.SetMode(ctx, mode)
		case "mute":
			engine.SetMuted(msg.Muted)
		case "media":
			switch call.MediaKind(msg.Kind) {
			case call.MediaAudio:
				engine.RemoteMediaArrived(call.MediaAudio)
			case call.MediaVideo:
				engine.RemoteMediaArrived(call.MediaVideo)
			default:
				h.logger.Debug("Dropping unknown media kind", "kind", msg.Kind)
			}
		case "sync":
			// The client re-rendered its call view and wants the caption
			// overlay replayed, with a hint whether to pin to the bottom.
			follow := history.ShouldFollow(msg.ScrollHeight, msg.ScrollTop, msg.ClientHeight)
			br.Overlay(engine.CallHistory().Overlay(), follow)
		case "chat":
			text := msg.Text
			go func() {
				if err := engine.SendChat(ctx, text); err != nil {
					h.logger.Debug("Chat message failed", "error", err)
				}
			}()
		default:
			h.logger.Debug("Dropping unknown message type", "type", msg.Type)
		}
	}
}
