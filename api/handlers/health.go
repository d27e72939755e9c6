package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nwthomas/deep-learning-research-agent/internal/ws"
)

// StatsProvider reports the connection registry occupancy.
type StatsProvider interface {
	Stats() ws.ConnectionStats
}

// HealthHandler serves liveness and connection statistics.
type HealthHandler struct {
	stats   StatsProvider
	service string
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(stats StatsProvider, service, version string) *HealthHandler {
	return &HealthHandler{stats: stats, service: service, version: version}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string             `json:"status"`
	Service         string             `json:"service"`
	Version         string             `json:"version"`
	ConnectionStats ws.ConnectionStats `json:"connection_stats"`
}

// Root handles GET / .
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Deep Learning Research Agent API is running"})
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:          "healthy",
		Service:         h.service,
		Version:         h.version,
		ConnectionStats: h.stats.Stats(),
	})
}

// RegisterRoutes registers the health routes on a Gin router group.
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.Root)
	rg.GET("/health", h.Health)
}
