package model

import "errors"

var (
	// ErrMalformedInput is returned when a research request frame is not valid JSON or does not match the request schema.
	ErrMalformedInput = errors.New("malformed input")

	// ErrQueryRequired is returned when a research request is missing the query.
	ErrQueryRequired = errors.New("query is required")

	// ErrTransportDisconnect is returned when the peer has gone away during a receive or send.
	ErrTransportDisconnect = errors.New("transport disconnected")

	// ErrSessionNotFound is returned when a research session is not found in the journal.
	ErrSessionNotFound = errors.New("session not found")
)
