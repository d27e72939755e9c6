package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ConnectionHandler runs one streaming research session per websocket request.
type ConnectionHandler interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
}

// WebSocketHandler exposes the streaming research endpoint.
type WebSocketHandler struct {
	conns ConnectionHandler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(conns ConnectionHandler) *WebSocketHandler {
	return &WebSocketHandler{conns: conns}
}

// Research handles WS /ws/research. Admission, the session itself and the
// release of the slot all happen inside the connection handler.
func (h *WebSocketHandler) Research(c *gin.Context) {
	h.conns.HandleConnection(c.Writer, c.Request)
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws/research", h.Research)
}
