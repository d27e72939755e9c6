// Package logger records the frames of a research session as a JSON-lines
// transcript that can be replayed later.
package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

// TranscriptVersion is the transcript format version.
const TranscriptVersion = 1

// TranscriptHeader is the first line of a transcript.
type TranscriptHeader struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Timestamp int64  `json:"timestamp"`
}

// TranscriptEvent is one recorded frame.
// Format: [time_offset, event_type, data]
type TranscriptEvent struct {
	TimeOffset float64
	EventType  model.EventType
	Data       json.RawMessage
}

// MarshalJSON implements custom JSON marshaling for TranscriptEvent.
func (e TranscriptEvent) MarshalJSON() ([]byte, error) {
	data := e.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return json.Marshal([]any{e.TimeOffset, e.EventType, data})
}

// UnmarshalJSON implements custom JSON unmarshaling for TranscriptEvent.
func (e *TranscriptEvent) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event format: expected 3 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &e.TimeOffset); err != nil {
		return fmt.Errorf("invalid time offset: %w", err)
	}
	if err := json.Unmarshal(arr[1], &e.EventType); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	if !e.EventType.Valid() {
		return fmt.Errorf("unknown event type %q", e.EventType)
	}
	e.Data = arr[2]
	return nil
}

// Transcript writes a session's frames in order.
type Transcript struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
}

// Path returns the transcript file of a session under dir.
func Path(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".jsonl")
}

// NewTranscript creates the transcript file for sessionID under dir.
func NewTranscript(dir, sessionID string) (*Transcript, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript dir: %w", err)
	}
	file, err := os.Create(Path(dir, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript: %w", err)
	}
	return &Transcript{writer: file, file: file, startTime: time.Now()}, nil
}

// newTranscriptWithWriter creates a Transcript that writes to w.
func newTranscriptWithWriter(w io.Writer) *Transcript {
	return &Transcript{writer: w, startTime: time.Now()}
}

// WriteHeader writes the header line. Call it once, before any frame.
func (t *Transcript) WriteHeader(sessionID, query string) error {
	return t.writeLine(TranscriptHeader{
		Version:   TranscriptVersion,
		SessionID: sessionID,
		Query:     query,
		Timestamp: t.startTime.Unix(),
	})
}

// Record appends one frame.
func (t *Transcript) Record(frame model.EventFrame) error {
	data, err := json.Marshal(frame.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal frame data: %w", err)
	}
	return t.writeLine(TranscriptEvent{
		TimeOffset: time.Since(t.startTime).Seconds(),
		EventType:  frame.EventType,
		Data:       data,
	})
}

func (t *Transcript) writeLine(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript line: %w", err)
	}
	if _, err := t.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Close closes the transcript file.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

// ReadTranscript parses a transcript.
func ReadTranscript(r io.Reader) (*TranscriptHeader, []TranscriptEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, nil, errors.New("empty transcript")
	}
	var header TranscriptHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, nil, fmt.Errorf("invalid header: %w", err)
	}

	var events []TranscriptEvent
	for scanner.Scan() {
		var ev TranscriptEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, nil, fmt.Errorf("invalid event %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read events: %w", err)
	}
	return &header, events, nil
}
