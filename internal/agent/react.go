package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// ErrIterationLimit is returned when an agent keeps requesting tools after
// its last allowed tool round.
var ErrIterationLimit = errors.New("agent iteration limit exceeded")

var tracer = otel.Tracer("github.com/nwthomas/deep-learning-research-agent/internal/agent")

// ReactAgent alternates model calls ("agent" node) and tool rounds ("tools"
// node) until the model answers without tool calls.
type ReactAgent struct {
	Name         string
	Model        llm.ChatModel
	Tools        []Tool
	Instructions string

	// MaxIterations bounds the number of tool rounds. Once reached, the model
	// is called one last time without tools. Zero means 25.
	MaxIterations int

	// Parallelism bounds how many tool calls of one round run at once. Zero means 1.
	Parallelism int

	Logger *zap.Logger
}

// Stream runs the agent as the root graph.
func (a *ReactAgent) Stream(ctx context.Context, input State, yield Yield) error {
	_, err := a.run(ctx, nil, input, yield)
	return err
}

func (a *ReactAgent) maxIterations() int {
	if a.MaxIterations <= 0 {
		return 25
	}
	return a.MaxIterations
}

func (a *ReactAgent) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *ReactAgent) specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(a.Tools))
	for _, t := range a.Tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

func (a *ReactAgent) tool(name string) (Tool, bool) {
	for _, t := range a.Tools {
		if t.Spec().Name == name {
			return t, true
		}
	}
	return nil, false
}

// run executes the loop under graph path and returns the final state.
func (a *ReactAgent) run(ctx context.Context, path []string, input State, yield Yield) (State, error) {
	ctx, span := tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.name", a.Name),
		attribute.Int("agent.depth", len(path)),
	))
	defer span.End()

	state, err := a.loop(ctx, path, input, yield)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return state, err
}

func (a *ReactAgent) loop(ctx context.Context, path []string, input State, yield Yield) (State, error) {
	state := input.Clone()
	if err := yield(Event{Path: path, Mode: ModeValues, Values: state.Clone()}); err != nil {
		return state, err
	}

	specs := a.specs()
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		req := llm.Request{Instructions: a.Instructions, Messages: state.Messages, Tools: specs}
		final := round >= a.maxIterations()
		if final {
			req.Tools = nil
		}

		reply, err := a.Model.Generate(ctx, req)
		if err != nil {
			return state, fmt.Errorf("%s model call failed: %w", a.Name, err)
		}
		reply.Role = llm.RoleAI
		state.Messages = append(state.Messages, reply)

		if err := a.emitStep(path, NodeAgent, []StateEntry{{Key: KeyMessages, Value: []llm.Message{reply}}}, state, yield); err != nil {
			return state, err
		}

		if len(reply.ToolCalls) == 0 {
			return state, nil
		}
		if final {
			return state, fmt.Errorf("%w: %s requested tools after %d rounds", ErrIterationLimit, a.Name, round)
		}

		entries, err := a.runTools(ctx, path, &state, reply.ToolCalls, yield)
		if err != nil {
			return state, err
		}
		if err := a.emitStep(path, NodeTools, entries, state, yield); err != nil {
			return state, err
		}
	}
}

func (a *ReactAgent) emitStep(path []string, node string, entries []StateEntry, state State, yield Yield) error {
	if err := yield(Event{Path: path, Mode: ModeUpdates, Update: NodeUpdate{Node: node, State: entries}}); err != nil {
		return err
	}
	return yield(Event{Path: path, Mode: ModeValues, Values: state.Clone()})
}

// runTools executes one round of tool calls, applies their writes to state
// and returns the partial state written by the tools node. Results keep the
// order of calls regardless of completion order.
func (a *ReactAgent) runTools(ctx context.Context, path []string, state *State, calls []llm.ToolCall, yield Yield) ([]StateEntry, error) {
	snapshot := state.Clone()
	results := make([]ToolResult, len(calls))
	shared := newSerialYield(yield)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.Parallelism, 1))
	for i, call := range calls {
		g.Go(func() error {
			res, err := a.invoke(gctx, Invocation{Call: call, State: snapshot, Path: slices.Clone(path), Yield: shared.yield})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	msgs := make([]llm.Message, len(calls))
	var files map[string]string
	var todos []Todo
	for i, call := range calls {
		msgs[i] = llm.ToolMessage(call.ID, call.Name, results[i].Output)
		if results[i].Files != nil {
			files = MergeFiles(files, results[i].Files)
		}
		todos = MergeTodos(todos, results[i].Todos)
	}

	state.Messages = append(state.Messages, msgs...)
	entries := []StateEntry{{Key: KeyMessages, Value: msgs}}
	if todos != nil {
		state.Todos = MergeTodos(state.Todos, todos)
		entries = append(entries, StateEntry{Key: KeyTodos, Value: todos})
	}
	if files != nil {
		state.Files = MergeFiles(state.Files, files)
		entries = append(entries, StateEntry{Key: KeyFiles, Value: files})
	}
	return entries, nil
}

// invoke runs one tool call. Input errors become the tool output; any other
// error fails the run.
func (a *ReactAgent) invoke(ctx context.Context, inv Invocation) (ToolResult, error) {
	t, ok := a.tool(inv.Call.Name)
	if !ok {
		return ToolResult{Output: fmt.Sprintf("Error: %s is not a valid tool", inv.Call.Name)}, nil
	}

	res, err := t.Invoke(ctx, inv)
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		a.logger().Debug("tool input error",
			zap.String("agent", a.Name),
			zap.String("tool", inv.Call.Name),
			zap.Error(err))
		return ToolResult{Output: inputErr.Error()}, nil
	}
	if err != nil {
		return ToolResult{}, fmt.Errorf("tool %s failed: %w", inv.Call.Name, err)
	}
	return res, nil
}

// serialYield lets concurrent tool calls share one ordered stream.
type serialYield struct {
	mu   sync.Mutex
	next Yield
	err  error
}

func newSerialYield(next Yield) *serialYield {
	return &serialYield{next: next}
}

func (s *serialYield) yield(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.err = s.next(e)
	return s.err
}
