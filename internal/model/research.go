package model

import "time"

// SessionStatus represents the outcome of a research session in the journal.
type SessionStatus string

const (
	SessionStatusRunning      SessionStatus = "running"
	SessionStatusCompleted    SessionStatus = "completed"
	SessionStatusFailed       SessionStatus = "failed"
	SessionStatusDisconnected SessionStatus = "disconnected"
)

// Session sources.
const (
	SourceWebSocket = "websocket"
	SourceHTTP      = "http"
)

// ResearchSession is the journal record of one research run.
type ResearchSession struct {
	ID            string        `json:"id"`
	Query         string        `json:"query"`
	Source        string        `json:"source"`
	Status        SessionStatus `json:"status"`
	ErrorMessage  string        `json:"errorMessage,omitempty"`
	ErrorType     string        `json:"errorType,omitempty"`
	FrameCount    int           `json:"frameCount"`
	ResultPreview string        `json:"resultPreview,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Duration returns how long the session ran, or has been running.
func (s *ResearchSession) Duration() time.Duration {
	if s.Status == SessionStatusRunning {
		return time.Since(s.CreatedAt)
	}
	return s.UpdatedAt.Sub(s.CreatedAt)
}

// ResearchResponse is the result of the synchronous research variant.
type ResearchResponse struct {
	Query  string `json:"query"`
	Result string `json:"result"`
	Status string `json:"status"`
}
