package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/anchor-live/internal/config"
	"github.com/ashureev/anchor-live/internal/llm"
	"github.com/ashureev/anchor-live/internal/store"
	"github.com/ashureev/anchor-live/internal/transcript"
	"github.com/go-chi/chi/v5"
)

// AgentService provisions and releases the remote conversational agent.
type AgentService interface {
	Start(ctx context.Context, channel, uid, mode string) (string, error)
	Stop(ctx context.Context, agentID string) error
}

// Completer answers text-chat messages.
type Completer interface {
	Reply(ctx context.Context, message string, hist []llm.Message) (string, error)
}

// RelayHandler exposes the thin relay the browser calls directly: transport
// configuration, agent start/stop, and the synchronous text-chat path.
type RelayHandler struct {
	cfg       *config.Config
	agents    AgentService
	completer Completer
}

// NewRelayHandler creates the relay handler.
func NewRelayHandler(cfg *config.Config, agents AgentService, completer Completer) *RelayHandler {
	return &RelayHandler{cfg: cfg, agents: agents, completer: completer}
}

// RegisterRoutes registers the relay routes.
func (h *RelayHandler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.GetConfig)
	r.Route("/api", func(r chi.Router) {
		r.Post("/start-ai", h.StartAgent)
		r.Post("/stop-ai", h.StopAgent)
		r.Post("/text-chat", h.TextChat)
	})
}

// GetConfig returns the transport application identifier. The token is
// forced null: the deployment runs in app-id-only mode.
func (h *RelayHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"appId": h.cfg.RTC.AppID,
		"token": nil,
	})
}

type startAgentRequest struct {
	Channel string `json:"channel"`
	// The browser generates its uid as a number; older clients sent strings.
	UID  transcript.FlexID `json:"uid"`
	Mode string            `json:"mode"`
}

// StartAgent provisions the conversational agent into the given channel.
func (h *RelayHandler) StartAgent(w http.ResponseWriter, r *http.Request) {
	var req startAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Channel == "" || req.UID.String() == "" {
		Error(w, http.StatusBadRequest, "channel and uid are required")
		return
	}

	slog.Info("Starting agent via relay", "channel", req.Channel, "mode", req.Mode)

	agentID, err := h.agents.Start(r.Context(), req.Channel, req.UID.String(), req.Mode)
	if err != nil {
		slog.Error("Agent start failed", "channel", req.Channel, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]string{"agent_id": agentID})
}

type stopAgentRequest struct {
	AgentID string `json:"agentId"`
}

// StopAgent releases the agent. Fire-and-forget from the browser's
// perspective: failures are logged, never surfaced.
func (h *RelayHandler) StopAgent(w http.ResponseWriter, r *http.Request) {
	var req stopAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		Error(w, http.StatusBadRequest, "agentId is required")
		return
	}

	if err := h.agents.Stop(r.Context(), req.AgentID); err != nil {
		slog.Warn("Agent stop failed", "agent_id", req.AgentID, "error", err)
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

type textChatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

// TextChat relays one text-mode message to the completion backend.
func (h *RelayHandler) TextChat(w http.ResponseWriter, r *http.Request) {
	var req textChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.completer.Reply(r.Context(), req.Message, req.History)
	if err != nil {
		slog.Error("Text chat completion failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo store.Repository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.Health)
}

// Health returns the health status of the relay and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
		"checks": map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if h.repo != nil {
		if err := h.repo.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			status["checks"].(map[string]string)["database"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			status["checks"].(map[string]string)["database"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}
