package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/model"
	"github.com/nwthomas/deep-learning-research-agent/internal/session"
)

// Researcher runs one research query to completion.
type Researcher interface {
	Research(ctx context.Context, query string) (*model.ResearchResponse, error)
}

// ResearchHandler serves the non-streaming research endpoint for clients
// that cannot hold a websocket open.
type ResearchHandler struct {
	researcher Researcher
	logger     *zap.Logger
}

// NewResearchHandler creates a new ResearchHandler.
func NewResearchHandler(researcher Researcher, logger *zap.Logger) *ResearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchHandler{researcher: researcher, logger: logger}
}

// Research handles POST /api/research.
func (h *ResearchHandler) Research(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read request body: "+err.Error())
		return
	}
	// same parser as the websocket request, unknown fields included
	req, err := model.ParseResearchRequest(body)
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.researcher.Research(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, model.ErrMalformedInput) {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		h.logger.Warn("research failed", zap.Error(err))
		sendErrorDetails(c, http.StatusInternalServerError, "RESEARCH_FAILED", "Research failed: "+err.Error(),
			map[string]any{"error_type": session.ErrorType(err)})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the research route on a Gin router group.
func (h *ResearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/research", h.Research)
}
