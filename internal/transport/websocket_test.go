package transport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_AcceptReceiveSend(t *testing.T) {
	serverErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws := NewWebSocket(w, r)
		defer ws.Close()
		if err := ws.Accept(); err != nil {
			serverErr <- err
			return
		}
		data, err := ws.Receive()
		if err != nil {
			serverErr <- err
			return
		}
		serverErr <- ws.Send(append([]byte("echo:"), data...))
	}))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", string(data))
	require.NoError(t, <-serverErr)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebSocket_Reject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws := NewWebSocket(w, r)
		_ = ws.Reject(CloseTryAgainLater, OverloadReason)
		assert.NoError(t, ws.Close())
	}))
	defer srv.Close()

	conn := dial(t, srv)
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, CloseTryAgainLater, closeErr.Code)
	assert.Equal(t, OverloadReason, closeErr.Text)
}

func TestWebSocket_ReceiveAfterPeerLeaves(t *testing.T) {
	serverErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws := NewWebSocket(w, r)
		defer ws.Close()
		if err := ws.Accept(); err != nil {
			serverErr <- err
			return
		}
		_, err := ws.Receive()
		serverErr <- err
	}))
	defer srv.Close()

	conn := dial(t, srv)
	conn.Close()

	assert.ErrorIs(t, <-serverErr, model.ErrTransportDisconnect)
}

func TestWebSocket_NotAccepted(t *testing.T) {
	ws := NewWebSocket(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := ws.Receive()
	assert.Error(t, err)
	assert.Error(t, ws.Send([]byte("x")))
	assert.NoError(t, ws.Close())
	assert.Error(t, ws.Accept(), "plain HTTP request cannot be upgraded")
}

func TestWebSocket_ReceiveBinaryFrame(t *testing.T) {
	serverErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws := NewWebSocket(w, r)
		defer ws.Close()
		if err := ws.Accept(); err != nil {
			serverErr <- err
			return
		}
		_, err := ws.Receive()
		serverErr <- err
	}))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"query":"bin"}`)))

	err := <-serverErr
	assert.ErrorIs(t, err, model.ErrMalformedInput)
	assert.NotErrorIs(t, err, model.ErrTransportDisconnect)
}
