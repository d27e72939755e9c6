package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the closed set of outbound frame kinds.
type EventType string

const (
	EventTypeStatusUpdate EventType = "status_update"
	EventTypeToolCall     EventType = "tool_call"
	EventTypeResultChunk  EventType = "result_chunk"
	EventTypeCompleted    EventType = "completed"
	EventTypeError        EventType = "error"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeStatusUpdate, EventTypeToolCall, EventTypeResultChunk, EventTypeCompleted, EventTypeError:
		return true
	}
	return false
}

// StatusUpdate is the payload of a status_update frame.
type StatusUpdate struct {
	Graph   string `json:"graph"`
	Node    string `json:"node"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ToolCall is the payload of a tool_call frame.
type ToolCall struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
	ToolID   string         `json:"tool_id"`
}

// ResultChunk is the payload of a result_chunk frame.
type ResultChunk struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	Node        string `json:"node"`
	Graph       string `json:"graph"`
}

// Completed is the payload of the completed frame.
type Completed struct {
	Message    string `json:"message"`
	FinalState string `json:"final_state"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}

// EventFrame is one outbound message sent to a connected client.
// Data holds the payload type that matches EventType.
type EventFrame struct {
	EventType EventType  `json:"event_type"`
	Data      any        `json:"data"`
	Timestamp *time.Time `json:"timestamp"`
}

// Frame status values used by the session and the translator.
const (
	StatusConnected  = "connected"
	StatusProcessing = "processing"
)

// NewStatusUpdate creates a status_update frame.
func NewStatusUpdate(data StatusUpdate, ts *time.Time) EventFrame {
	return EventFrame{EventType: EventTypeStatusUpdate, Data: data, Timestamp: ts}
}

// NewToolCall creates a tool_call frame. A nil args map is sent as an empty object.
func NewToolCall(data ToolCall, ts *time.Time) EventFrame {
	if data.Args == nil {
		data.Args = map[string]any{}
	}
	return EventFrame{EventType: EventTypeToolCall, Data: data, Timestamp: ts}
}

// NewResultChunk creates a result_chunk frame.
func NewResultChunk(data ResultChunk, ts *time.Time) EventFrame {
	return EventFrame{EventType: EventTypeResultChunk, Data: data, Timestamp: ts}
}

// NewCompleted creates the terminal completed frame.
func NewCompleted(data Completed, ts *time.Time) EventFrame {
	return EventFrame{EventType: EventTypeCompleted, Data: data, Timestamp: ts}
}

// NewError creates the terminal error frame.
func NewError(data ErrorData, ts *time.Time) EventFrame {
	return EventFrame{EventType: EventTypeError, Data: data, Timestamp: ts}
}

// Now returns the current UTC time as a frame timestamp.
func Now() *time.Time {
	t := time.Now().UTC()
	return &t
}

// UnmarshalJSON decodes a frame and its payload into the struct that matches event_type.
func (f *EventFrame) UnmarshalJSON(b []byte) error {
	var raw struct {
		EventType EventType       `json:"event_type"`
		Data      json.RawMessage `json:"data"`
		Timestamp *time.Time      `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var data any
	var err error
	switch raw.EventType {
	case EventTypeStatusUpdate:
		data, err = decodePayload[StatusUpdate](raw.Data)
	case EventTypeToolCall:
		data, err = decodePayload[ToolCall](raw.Data)
	case EventTypeResultChunk:
		data, err = decodePayload[ResultChunk](raw.Data)
	case EventTypeCompleted:
		data, err = decodePayload[Completed](raw.Data)
	case EventTypeError:
		data, err = decodePayload[ErrorData](raw.Data)
	default:
		return fmt.Errorf("unknown event type %q", raw.EventType)
	}
	if err != nil {
		return fmt.Errorf("invalid %s payload: %w", raw.EventType, err)
	}

	f.EventType = raw.EventType
	f.Data = data
	f.Timestamp = raw.Timestamp
	return nil
}

func decodePayload[T any](b json.RawMessage) (T, error) {
	var v T
	if len(b) == 0 {
		return v, nil
	}
	err := json.Unmarshal(b, &v)
	return v, err
}
