package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/logger"
	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

// SessionStore is the read and delete side of the research session journal.
type SessionStore interface {
	List(ctx context.Context, status model.SessionStatus, limit int) ([]*model.ResearchSession, error)
	GetByID(ctx context.Context, id string) (*model.ResearchSession, error)
	Delete(ctx context.Context, id string) error
}

// SessionHandler handles HTTP requests for the research session journal.
type SessionHandler struct {
	store  SessionStore
	logDir string
	logger *zap.Logger
}

// NewSessionHandler creates a new SessionHandler. An empty logDir means no
// transcripts are recorded.
func NewSessionHandler(store SessionStore, logDir string, log *zap.Logger) *SessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandler{store: store, logDir: logDir, logger: log}
}

// SessionResponse represents a research session in API responses.
type SessionResponse struct {
	ID            string `json:"id"`
	Query         string `json:"query"`
	Source        string `json:"source"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	ErrorType     string `json:"errorType,omitempty"`
	FrameCount    int    `json:"frameCount"`
	ResultPreview string `json:"resultPreview,omitempty"`
	Duration      string `json:"duration"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func toSessionResponse(s *model.ResearchSession) *SessionResponse {
	return &SessionResponse{
		ID:            s.ID,
		Query:         s.Query,
		Source:        s.Source,
		Status:        string(s.Status),
		ErrorMessage:  s.ErrorMessage,
		ErrorType:     s.ErrorType,
		FrameCount:    s.FrameCount,
		ResultPreview: s.ResultPreview,
		Duration:      formatDuration(s.Duration()),
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     s.UpdatedAt.Format(time.RFC3339),
	}
}

func validStatus(s model.SessionStatus) bool {
	switch s {
	case model.SessionStatusRunning, model.SessionStatusCompleted,
		model.SessionStatusFailed, model.SessionStatusDisconnected:
		return true
	}
	return false
}

// List handles GET /api/sessions?status=&limit= - lists recent sessions.
func (h *SessionHandler) List(c *gin.Context) {
	status := model.SessionStatus(c.Query("status"))
	if status != "" && !validStatus(status) {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status "+string(status))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.List(c.Request.Context(), status, limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sessions: "+err.Error())
		return
	}

	response := make([]*SessionResponse, len(sessions))
	for i, sess := range sessions {
		response[i] = toSessionResponse(sess)
	}
	c.JSON(http.StatusOK, response)
}

// lookup loads the session named by the :id parameter, writing the error
// response itself when it fails.
func (h *SessionHandler) lookup(c *gin.Context) (*model.ResearchSession, bool) {
	sessionID := c.Param("id")
	if sessionID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Session ID is required")
		return nil, false
	}

	sess, err := h.store.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return nil, false
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return nil, false
	}
	return sess, true
}

// Get handles GET /api/sessions/:id - gets a specific session.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// Delete handles DELETE /api/sessions/:id - deletes a finished session and
// its transcript.
func (h *SessionHandler) Delete(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	if sess.Status == model.SessionStatusRunning {
		sendError(c, http.StatusConflict, "INVALID_STATE", "Session is still running")
		return
	}

	if err := h.store.Delete(c.Request.Context(), sess.ID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sess.ID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete session: "+err.Error())
		return
	}

	if h.logDir != "" {
		if err := os.Remove(logger.Path(h.logDir, sess.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("failed to remove transcript", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	c.Status(http.StatusNoContent)
}

// Transcript handles GET /api/sessions/:id/transcript - downloads the
// session's frame transcript.
func (h *SessionHandler) Transcript(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	if h.logDir == "" {
		sendError(c, http.StatusNotFound, "TRANSCRIPT_NOT_FOUND", "Transcripts are disabled")
		return
	}
	path := logger.Path(h.logDir, sess.ID)
	if _, err := os.Stat(path); err != nil {
		sendError(c, http.StatusNotFound, "TRANSCRIPT_NOT_FOUND", "Transcript not found for session "+sess.ID)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", "attachment; filename="+sess.ID+".jsonl")
	c.File(path)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.GET("/:id/transcript", h.Transcript)
	}
}
