package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to write a close frame before giving up on the peer.
	closeWait = time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS middleware.
		return true
	},
}

var errNotAccepted = errors.New("websocket not accepted")

// WebSocket is a Transport over a gorilla websocket connection. The
// handshake is deferred until Accept or Reject.
type WebSocket struct {
	w http.ResponseWriter
	r *http.Request

	conn *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// NewWebSocket wraps an HTTP request that asks for a websocket upgrade.
func NewWebSocket(w http.ResponseWriter, r *http.Request) *WebSocket {
	return &WebSocket{w: w, r: r, done: make(chan struct{})}
}

// Accept upgrades the connection and starts keep-alive pings.
func (t *WebSocket) Accept() error {
	if err := t.upgrade(); err != nil {
		return err
	}
	t.conn.SetReadLimit(maxMessageSize)
	go t.pingLoop()
	return nil
}

// Reject upgrades the connection, sends a close frame and closes it.
func (t *WebSocket) Reject(code int, reason string) error {
	if err := t.upgrade(); err != nil {
		return err
	}
	msg := websocket.FormatCloseMessage(code, reason)
	err := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	t.shutdown()
	if err != nil {
		return fmt.Errorf("failed to send close frame: %w", err)
	}
	return nil
}

func (t *WebSocket) upgrade() error {
	if t.conn != nil {
		return errors.New("websocket already upgraded")
	}
	conn, err := upgrader.Upgrade(t.w, t.r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}
	t.conn = conn
	return nil
}

// Receive reads the next data frame. Binary frames are malformed input.
func (t *WebSocket) Receive() ([]byte, error) {
	if t.conn == nil {
		return nil, errNotAccepted
	}
	mt, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransportDisconnect, err)
	}
	if mt != websocket.TextMessage {
		return nil, fmt.Errorf("%w: expected a text frame", model.ErrMalformedInput)
	}
	return data, nil
}

// Send writes data as one text frame.
func (t *WebSocket) Send(data []byte) error {
	if t.conn == nil {
		return errNotAccepted
	}
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransportDisconnect, err)
	}
	return nil
}

// Close sends a normal close frame if the peer is still there and closes the
// underlying connection.
func (t *WebSocket) Close() error {
	if t.conn == nil {
		return nil
	}
	var err error
	t.closeOnce.Do(func() {
		// best effort, the peer may already be gone
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *WebSocket) shutdown() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.Close()
	})
}

// pingLoop keeps idle connections alive while the agent works.
func (t *WebSocket) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
