package agent

import (
	"maps"
	"slices"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// TodoStatus is the progress state of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is a task item tracked by the agent.
type Todo struct {
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
}

// State is the agent graph state: the conversation plus a todo list and a
// virtual file system.
type State struct {
	Messages []llm.Message
	Todos    []Todo
	Files    map[string]string
}

// Clone returns a copy of s that shares no slices or maps with it.
func (s State) Clone() State {
	return State{
		Messages: slices.Clone(s.Messages),
		Todos:    slices.Clone(s.Todos),
		Files:    maps.Clone(s.Files),
	}
}

// MergeFiles merges right into left; right wins on conflicts. Nil on either
// side returns the other.
func MergeFiles(left, right map[string]string) map[string]string {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	merged := maps.Clone(left)
	maps.Copy(merged, right)
	return merged
}

// MergeTodos replaces left with right unless right is nil.
func MergeTodos(left, right []Todo) []Todo {
	if right == nil {
		return left
	}
	return right
}
