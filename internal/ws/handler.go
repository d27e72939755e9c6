package ws

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/transport"
)

// SessionRunner drives one admitted connection until its session ends.
type SessionRunner interface {
	Run(ctx context.Context, connID string, t transport.Transport)
}

// Handler is the streaming endpoint.
type Handler struct {
	registry *Registry
	runner   SessionRunner
	logger   *zap.Logger
}

// NewHandler creates a new websocket Handler.
func NewHandler(registry *Registry, runner SessionRunner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, runner: runner, logger: logger}
}

// Registry returns the registry the handler admits into.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// HandleConnection admits the websocket request on w/r, runs its session
// and releases the slot on every exit path.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.Serve(r.Context(), transport.NewWebSocket(w, r))
}

// Serve admits t, runs its session and releases the slot on every exit path.
func (h *Handler) Serve(ctx context.Context, t transport.Transport) {
	id, accepted, err := h.registry.Admit(t)
	if err != nil {
		h.logger.Warn("websocket handshake failed", zap.Error(err))
		return
	}
	if !accepted {
		return
	}
	defer h.registry.Release(id)

	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("session panicked", zap.String("conn_id", id), zap.Any("panic", p))
		}
	}()

	h.runner.Run(ctx, id, t)
}
