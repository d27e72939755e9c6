package agent

import (
	"context"
	"fmt"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// Invocation is one tool call together with the state it runs against.
type Invocation struct {
	Call  llm.ToolCall
	State State    // snapshot taken before the tool round
	Path  []string // graph path of the calling agent
	Yield Yield    // stream of the calling agent, used by nested graphs
}

// ToolResult is what a tool returns: the text answer and optional state writes.
type ToolResult struct {
	Output string
	Files  map[string]string
	Todos  []Todo
}

// Tool is a capability the model can call.
type Tool interface {
	Spec() llm.ToolSpec
	Invoke(ctx context.Context, inv Invocation) (ToolResult, error)
}

// InputError is a tool failure the model can recover from, such as bad
// arguments or a missing file. It is reported back to the model as the tool
// output instead of failing the run.
type InputError struct {
	Tool string
	Msg  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("Error: %s", e.Msg)
}

func inputErrorf(tool, format string, args ...any) *InputError {
	return &InputError{Tool: tool, Msg: fmt.Sprintf(format, args...)}
}

type funcTool struct {
	spec llm.ToolSpec
	fn   func(ctx context.Context, inv Invocation) (ToolResult, error)
}

func (t *funcTool) Spec() llm.ToolSpec { return t.spec }

func (t *funcTool) Invoke(ctx context.Context, inv Invocation) (ToolResult, error) {
	return t.fn(ctx, inv)
}

// NewFuncTool creates a Tool from a spec and a function.
func NewFuncTool(spec llm.ToolSpec, fn func(ctx context.Context, inv Invocation) (ToolResult, error)) Tool {
	return &funcTool{spec: spec, fn: fn}
}

func stringArg(tool string, args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", inputErrorf(tool, "missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", inputErrorf(tool, "argument %q must be a string", key)
	}
	return s, nil
}

func intArg(tool string, args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	}
	return 0, inputErrorf(tool, "argument %q must be a number", key)
}

func objectSchema(required []string, props map[string]*llm.Schema) *llm.Schema {
	return &llm.Schema{Type: "object", Properties: props, Required: required}
}

func stringProp(desc string) *llm.Schema {
	return &llm.Schema{Type: "string", Description: desc}
}
