package agent

import "context"

// StreamMode discriminates raw events.
type StreamMode string

const (
	// ModeUpdates carries what one node changed.
	ModeUpdates StreamMode = "updates"
	// ModeValues carries the full current state.
	ModeValues StreamMode = "values"
)

// State keys used in node updates.
const (
	KeyMessages = "messages"
	KeyTodos    = "todos"
	KeyFiles    = "files"
)

// Node names of the ReAct graph.
const (
	NodeAgent = "agent"
	NodeTools = "tools"
)

// StateEntry is one key of a partial state. Entries keep the order in which
// the node wrote them.
type StateEntry struct {
	Key   string
	Value any
}

// NodeUpdate is the payload of an updates event: a node name and the
// partial state it wrote.
type NodeUpdate struct {
	Node  string
	State []StateEntry
}

// Event is one raw event produced by an engine. Path is empty for the root
// graph and names the nested graph otherwise.
type Event struct {
	Path   []string
	Mode   StreamMode
	Update NodeUpdate // set when Mode is ModeUpdates
	Values State      // set when Mode is ModeValues
}

// Yield receives events in production order. Returning an error stops the
// engine, which returns that error.
type Yield func(Event) error

// Engine runs an agent from an initial state and streams raw events.
type Engine interface {
	Stream(ctx context.Context, input State, yield Yield) error
}
