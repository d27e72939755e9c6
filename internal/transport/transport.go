// Package transport abstracts the bidirectional streaming connection a
// research session runs on.
package transport

// CloseTryAgainLater is the close code sent when the server is at its
// connection ceiling.
const CloseTryAgainLater = 1013

// OverloadReason is the close reason sent with CloseTryAgainLater.
const OverloadReason = "Server overloaded - too many connections"

// Transport is one client connection. Receive and Send report a vanished
// peer with an error wrapping model.ErrTransportDisconnect.
type Transport interface {
	// Accept completes the handshake.
	Accept() error
	// Reject completes the handshake only to close immediately with code
	// and reason. No data frames are sent.
	Reject(code int, reason string) error
	// Receive blocks until the next text frame arrives.
	Receive() ([]byte, error)
	// Send writes one text frame.
	Send(data []byte) error
	// Close closes the connection. Closing twice is not an error.
	Close() error
}
