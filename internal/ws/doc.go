// Package ws admits streaming research connections under a global
// concurrency ceiling and hands each admitted connection to a session.
//
// The package implements:
//   - Registry: tracks live connection slots; admission checks the ceiling,
//     performs the handshake and stores the slot as one atomic step
//   - Handler: the websocket endpoint that admits, runs and always releases
//
// A connection over the ceiling is closed right after the handshake with
// code 1013 and no frames.
package ws
