package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// scriptedModel answers each request with the next function of its script.
type scriptedModel struct {
	mu       sync.Mutex
	script   []func(req llm.Request) (llm.Message, error)
	requests []llm.Request
}

func (m *scriptedModel) Generate(_ context.Context, req llm.Request) (llm.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		return llm.AIMessage("done"), nil
	}
	next := m.script[0]
	m.script = m.script[1:]
	return next(req)
}

func reply(msg llm.Message) func(llm.Request) (llm.Message, error) {
	return func(llm.Request) (llm.Message, error) { return msg, nil }
}

// byInstructions routes requests to a model per agent prompt.
type byInstructions map[string]llm.ChatModel

func (r byInstructions) Generate(ctx context.Context, req llm.Request) (llm.Message, error) {
	for prefix, m := range r {
		if strings.HasPrefix(req.Instructions, prefix) {
			return m.Generate(ctx, req)
		}
	}
	return llm.Message{}, errors.New("no model for instructions")
}

func collect(events *[]Event) Yield {
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func modes(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		if e.Mode == ModeUpdates {
			out = append(out, "updates:"+e.Update.Node)
		} else {
			out = append(out, "values")
		}
	}
	return out
}

func TestReactAgent_AnswerWithoutTools(t *testing.T) {
	model := &scriptedModel{script: []func(llm.Request) (llm.Message, error){reply(llm.AIMessage("42"))}}
	a := &ReactAgent{Name: "supervisor", Model: model, Tools: BuiltinTools()}

	var events []Event
	err := a.Stream(context.Background(), State{Messages: []llm.Message{llm.HumanMessage("q")}}, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, []string{"values", "updates:agent", "values"}, modes(events))
	last := events[len(events)-1].Values
	require.Len(t, last.Messages, 2)
	assert.Equal(t, "42", llm.TextOf(last.Messages[1]))
	for _, e := range events {
		assert.Empty(t, e.Path)
	}
	assert.Len(t, model.requests[0].Tools, 5)
}

func TestReactAgent_ToolRoundWritesState(t *testing.T) {
	model := &scriptedModel{script: []func(llm.Request) (llm.Message, error){
		reply(llm.AIMessage("", llm.ToolCall{ID: "c1", Name: ToolWriteFile, Args: map[string]any{"file_path": "notes.md", "content": "a\nb"}})),
		reply(llm.AIMessage("", llm.ToolCall{ID: "c2", Name: ToolReadFile, Args: map[string]any{"file_path": "notes.md"}})),
		reply(llm.AIMessage("final")),
	}}
	a := &ReactAgent{Name: "supervisor", Model: model, Tools: BuiltinTools()}

	var events []Event
	require.NoError(t, a.Stream(context.Background(), State{}, collect(&events)))

	assert.Equal(t, []string{
		"values",
		"updates:agent", "values", "updates:tools", "values",
		"updates:agent", "values", "updates:tools", "values",
		"updates:agent", "values",
	}, modes(events))

	firstTools := events[3].Update
	require.Len(t, firstTools.State, 2)
	assert.Equal(t, KeyMessages, firstTools.State[0].Key)
	assert.Equal(t, KeyFiles, firstTools.State[1].Key)

	readResult := events[7].Update.State[0].Value.([]llm.Message)[0]
	assert.Equal(t, "c2", readResult.ToolCallID)
	assert.Equal(t, "     1\ta\n     2\tb", llm.TextOf(readResult))

	final := events[len(events)-1].Values
	assert.Equal(t, map[string]string{"notes.md": "a\nb"}, final.Files)
}

func TestReactAgent_ToolErrorsBecomeOutput(t *testing.T) {
	model := &scriptedModel{script: []func(llm.Request) (llm.Message, error){
		reply(llm.AIMessage("",
			llm.ToolCall{ID: "c1", Name: "nope"},
			llm.ToolCall{ID: "c2", Name: ToolReadFile, Args: map[string]any{"file_path": "missing.md"}},
		)),
		reply(llm.AIMessage("ok")),
	}}
	a := &ReactAgent{Name: "supervisor", Model: model, Tools: BuiltinTools(), Parallelism: 2}

	var events []Event
	require.NoError(t, a.Stream(context.Background(), State{}, collect(&events)))

	msgs := events[3].Update.State[0].Value.([]llm.Message)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Error: nope is not a valid tool", llm.TextOf(msgs[0]))
	assert.Equal(t, "Error: File 'missing.md' not found", llm.TextOf(msgs[1]))
}

func TestReactAgent_IterationLimit(t *testing.T) {
	think := func(llm.Request) (llm.Message, error) {
		return llm.AIMessage("", llm.ToolCall{ID: "t", Name: ToolThink, Args: map[string]any{"reflection": "hmm"}}), nil
	}
	model := &scriptedModel{script: []func(llm.Request) (llm.Message, error){think, think, think}}
	a := &ReactAgent{Name: "researcher", Model: model, Tools: BuiltinTools(), MaxIterations: 1}

	err := a.Stream(context.Background(), State{}, func(Event) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIterationLimit))

	require.Len(t, model.requests, 2)
	assert.NotEmpty(t, model.requests[0].Tools)
	assert.Empty(t, model.requests[1].Tools)
}

func TestReactAgent_YieldErrorStops(t *testing.T) {
	model := &scriptedModel{}
	a := &ReactAgent{Name: "supervisor", Model: model}
	stop := errors.New("peer gone")

	err := a.Stream(context.Background(), State{}, func(Event) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Empty(t, model.requests)
}

func TestReactAgent_ModelError(t *testing.T) {
	boom := errors.New("rate limited")
	model := &scriptedModel{script: []func(llm.Request) (llm.Message, error){
		func(llm.Request) (llm.Message, error) { return llm.Message{}, boom },
	}}
	a := &ReactAgent{Name: "supervisor", Model: model}

	err := a.Stream(context.Background(), State{}, func(Event) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestTaskTool_RunsNestedGraph(t *testing.T) {
	researcher := &scriptedModel{script: []func(llm.Request) (llm.Message, error){
		reply(llm.AIMessage("transformers use attention")),
	}}
	supervisor := &scriptedModel{script: []func(llm.Request) (llm.Message, error){
		reply(llm.AIMessage("", llm.ToolCall{ID: "c1", Name: ToolTask, Args: map[string]any{
			"description":   "summarize attention",
			"subagent_type": "research-agent",
		}})),
		reply(llm.AIMessage("summary")),
	}}

	task, err := NewTaskTool(BuiltinTools(), []SubAgent{{
		Name: "research-agent", Description: "researcher", Prompt: "research", Tools: []string{ToolThink},
	}}, researcher, TaskOptions{MaxIterations: 1})
	require.NoError(t, err)

	a := &ReactAgent{Name: "supervisor", Model: supervisor, Tools: append(BuiltinTools(), task)}

	var events []Event
	require.NoError(t, a.Stream(context.Background(), State{}, collect(&events)))

	var nested []Event
	for _, e := range events {
		if len(e.Path) > 0 {
			nested = append(nested, e)
		}
	}
	require.NotEmpty(t, nested)
	for _, e := range nested {
		assert.Equal(t, []string{"tools:c1"}, e.Path)
	}
	assert.Equal(t, []string{"values", "updates:agent", "values"}, modes(nested))

	require.Len(t, researcher.requests, 1)
	assert.Equal(t, "summarize attention", llm.TextOf(researcher.requests[0].Messages[0]))
	require.Len(t, researcher.requests[0].Tools, 1)
	assert.Equal(t, ToolThink, researcher.requests[0].Tools[0].Name)

	var toolMsg llm.Message
	for _, e := range events {
		if len(e.Path) == 0 && e.Mode == ModeUpdates && e.Update.Node == NodeTools {
			toolMsg = e.Update.State[0].Value.([]llm.Message)[0]
		}
	}
	assert.Equal(t, "transformers use attention", llm.TextOf(toolMsg))
}

func TestTaskTool_ParallelResultsKeepCallOrder(t *testing.T) {
	slow := func(req llm.Request) (llm.Message, error) {
		if llm.TextOf(req.Messages[0]) == "first" {
			time.Sleep(20 * time.Millisecond)
		}
		return llm.AIMessage("answer to " + llm.TextOf(req.Messages[0])), nil
	}
	researcher := &scriptedModel{script: []func(llm.Request) (llm.Message, error){slow, slow}}
	supervisor := &scriptedModel{script: []func(llm.Request) (llm.Message, error){
		reply(llm.AIMessage("",
			llm.ToolCall{ID: "a", Name: ToolTask, Args: map[string]any{"description": "first", "subagent_type": "r"}},
			llm.ToolCall{ID: "b", Name: ToolTask, Args: map[string]any{"description": "second", "subagent_type": "r"}},
		)),
	}}
	task, err := NewTaskTool(nil, []SubAgent{{Name: "r", Prompt: "research"}}, researcher, TaskOptions{})
	require.NoError(t, err)

	a := &ReactAgent{Name: "supervisor", Model: byInstructions{"sup": supervisor, "research": researcher}, Instructions: "sup", Tools: []Tool{task}, Parallelism: 2}

	var events []Event
	require.NoError(t, a.Stream(context.Background(), State{}, collect(&events)))

	var msgs []llm.Message
	for _, e := range events {
		if len(e.Path) == 0 && e.Mode == ModeUpdates && e.Update.Node == NodeTools {
			msgs = e.Update.State[0].Value.([]llm.Message)
		}
	}
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ToolCallID)
	assert.Equal(t, "answer to first", llm.TextOf(msgs[0]))
	assert.Equal(t, "answer to second", llm.TextOf(msgs[1]))
}

func TestTaskTool_UnknownSubAgent(t *testing.T) {
	task, err := NewTaskTool(nil, []SubAgent{{Name: "r"}}, &scriptedModel{}, TaskOptions{})
	require.NoError(t, err)

	_, err = task.Invoke(context.Background(), Invocation{Call: llm.ToolCall{ID: "x", Name: ToolTask, Args: map[string]any{
		"description": "d", "subagent_type": "writer",
	}}})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Contains(t, err.Error(), "only allowed types are [r]")
}

func TestNewTaskTool_Validation(t *testing.T) {
	_, err := NewTaskTool(nil, nil, &scriptedModel{}, TaskOptions{})
	assert.Error(t, err)

	_, err = NewTaskTool(BuiltinTools(), []SubAgent{{Name: "r", Tools: []string{"tavily_search"}}}, &scriptedModel{}, TaskOptions{})
	assert.ErrorContains(t, err, "unknown tool")

	_, err = NewTaskTool(nil, []SubAgent{{Name: "r"}, {Name: "r"}}, &scriptedModel{}, TaskOptions{})
	assert.ErrorContains(t, err, "duplicate")
}

func TestBuilder_Build(t *testing.T) {
	var resolved []string
	b := NewBuilder(BuilderConfig{
		Supervisor: llm.ModelConfig{Name: "sup"},
		Researcher: llm.ModelConfig{Name: "res"},
		Resolve: func(_ context.Context, cfg llm.ModelConfig) (llm.ChatModel, error) {
			resolved = append(resolved, cfg.Name)
			return &scriptedModel{}, nil
		},
		Now: func() time.Time { return time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) },
	})

	engine, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sup", "res"}, resolved)

	a := engine.(*ReactAgent)
	names := make([]string, 0, len(a.Tools))
	for _, tool := range a.Tools {
		names = append(names, tool.Spec().Name)
	}
	assert.Equal(t, []string{ToolLs, ToolReadFile, ToolWriteFile, ToolWriteTodos, ToolThink, ToolTask}, names)
	assert.Contains(t, a.Instructions, "Mon Jan 6, 2025")

	other, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, a, other.(*ReactAgent))
}

func TestBuilder_EmptyModelName(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, llm.ErrModelNameRequired)
	assert.ErrorContains(t, err, "supervisor model")
}

func TestWriteTodos(t *testing.T) {
	tool := writeTodosTool()
	res, err := tool.Invoke(context.Background(), Invocation{Call: llm.ToolCall{Args: map[string]any{
		"todos": []any{
			map[string]any{"content": "search", "status": "in_progress"},
			map[string]any{"content": "write", "status": "pending"},
		},
	}}})
	require.NoError(t, err)
	assert.Equal(t, []Todo{{"search", TodoInProgress}, {"write", TodoPending}}, res.Todos)

	_, err = tool.Invoke(context.Background(), Invocation{Call: llm.ToolCall{Args: map[string]any{
		"todos": []any{map[string]any{"content": "x", "status": "done"}},
	}}})
	var inputErr *InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestReducers(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1"}, MergeFiles(nil, map[string]string{"a": "1"}))
	assert.Equal(t, map[string]string{"a": "1"}, MergeFiles(map[string]string{"a": "1"}, nil))
	assert.Equal(t, map[string]string{"a": "2", "b": "1"}, MergeFiles(map[string]string{"a": "1", "b": "1"}, map[string]string{"a": "2"}))

	left := []Todo{{"a", TodoPending}}
	assert.Equal(t, left, MergeTodos(left, nil))
	assert.Equal(t, []Todo{}, MergeTodos(left, []Todo{}))
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "research-agent", c.Researcher.Name)
	assert.Equal(t, []string{ToolThink, ToolReadFile}, c.Researcher.Tools)

	day := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	assert.NotContains(t, c.SupervisorInstructions(day), "{date}")
	assert.Contains(t, c.ResearcherAgent(day).Prompt, "Mon Feb 3, 2025")

	_, err := LoadCatalog([]byte("supervisor: {}\n"))
	assert.Error(t, err)
}
