package translator

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwthomas/deep-learning-research-agent/internal/agent"
	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

var fixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTranslator() *Translator {
	return NewWithClock(func() time.Time { return fixed })
}

func update(path []string, node string, entries ...agent.StateEntry) agent.Event {
	return agent.Event{Path: path, Mode: agent.ModeUpdates, Update: agent.NodeUpdate{Node: node, State: entries}}
}

func messages(msgs ...llm.Message) agent.StateEntry {
	return agent.StateEntry{Key: agent.KeyMessages, Value: msgs}
}

func types(frames []model.EventFrame) []model.EventType {
	out := make([]model.EventType, len(frames))
	for i, f := range frames {
		out[i] = f.EventType
	}
	return out
}

func TestTranslate_StatusUpdateFirst(t *testing.T) {
	frames := newTestTranslator().Translate(update(nil, agent.NodeAgent))

	require.Len(t, frames, 1)
	assert.Equal(t, model.StatusUpdate{Graph: "root", Node: "agent", Status: "processing"}, frames[0].Data)
	require.NotNil(t, frames[0].Timestamp)
	assert.Equal(t, fixed, *frames[0].Timestamp)
}

func TestTranslate_SubGraphLabel(t *testing.T) {
	frames := newTestTranslator().Translate(update([]string{"tools:c1"}, agent.NodeTools,
		messages(llm.ToolMessage("c1", "think_tool", "Reflection recorded: ok"))))

	require.Len(t, frames, 2)
	assert.Equal(t, "tools:c1", frames[0].Data.(model.StatusUpdate).Graph)
	assert.Equal(t, model.ResultChunk{
		Content:     "Reflection recorded: ok",
		MessageType: "Tool",
		Node:        "tools",
		Graph:       "tools:c1",
	}, frames[1].Data)

	assert.Equal(t, "a|b", GraphLabel([]string{"a", "b"}))
}

func TestTranslate_TwoToolCallsNoText(t *testing.T) {
	msg := llm.AIMessage("  ",
		llm.ToolCall{ID: "1", Name: "write_todos", Args: map[string]any{"todos": []any{}}},
		llm.ToolCall{ID: "2", Name: "task"},
	)
	frames := newTestTranslator().Translate(update(nil, "node_a", messages(msg)))

	assert.Equal(t, []model.EventType{
		model.EventTypeStatusUpdate, model.EventTypeToolCall, model.EventTypeToolCall,
	}, types(frames))
	assert.Equal(t, model.ToolCall{ToolName: "write_todos", Args: map[string]any{"todos": []any{}}, ToolID: "1"}, frames[1].Data)
	assert.Equal(t, model.ToolCall{ToolName: "task", Args: map[string]any{}, ToolID: "2"}, frames[2].Data)
}

func TestTranslate_ToolCallsBeforeResultChunk(t *testing.T) {
	frames := newTestTranslator().Translate(update(nil, agent.NodeAgent, messages(
		llm.AIMessage("first"),
		llm.AIMessage("let me check", llm.ToolCall{ID: "x", Name: "ls"}),
	)))

	assert.Equal(t, []model.EventType{
		model.EventTypeStatusUpdate,
		model.EventTypeResultChunk,
		model.EventTypeToolCall,
		model.EventTypeResultChunk,
	}, types(frames))
	assert.Equal(t, "first", frames[1].Data.(model.ResultChunk).Content)
	assert.Equal(t, "let me check", frames[3].Data.(model.ResultChunk).Content)
}

func TestTranslate_InlineToolUse(t *testing.T) {
	msg := llm.Message{Role: llm.RoleAI, Content: llm.Blocks{
		{Type: llm.BlockTypeText, Text: "searching"},
		{Type: llm.BlockTypeToolUse, ID: "tu1", Name: "read_file", Input: map[string]any{"file_path": "a.md"}},
	}}
	frames := newTestTranslator().Translate(update(nil, agent.NodeAgent, messages(msg)))

	require.Equal(t, []model.EventType{
		model.EventTypeStatusUpdate, model.EventTypeToolCall, model.EventTypeResultChunk,
	}, types(frames))
	assert.Equal(t, model.ToolCall{ToolName: "read_file", Args: map[string]any{"file_path": "a.md"}, ToolID: "tu1"}, frames[1].Data)
	assert.Equal(t, "searching\n[tool_use] read_file {\"file_path\":\"a.md\"}", frames[2].Data.(model.ResultChunk).Content)
}

func TestTranslate_FlatCallsSuppressInlineDuplicates(t *testing.T) {
	msg := llm.Message{
		Role:      llm.RoleAI,
		Content:   llm.Blocks{{Type: llm.BlockTypeToolUse, ID: "c1", Name: "ls"}},
		ToolCalls: []llm.ToolCall{{ID: "c1", Name: "ls"}},
	}
	frames := newTestTranslator().Translate(update(nil, agent.NodeAgent, messages(msg)))

	toolCalls := 0
	for _, f := range frames {
		if f.EventType == model.EventTypeToolCall {
			toolCalls++
		}
	}
	assert.Equal(t, 1, toolCalls)
}

func TestTranslate_OnlyFirstMessagesKey(t *testing.T) {
	frames := newTestTranslator().Translate(update(nil, agent.NodeTools,
		agent.StateEntry{Key: agent.KeyTodos, Value: []agent.Todo{{Content: "x", Status: agent.TodoPending}}},
		agent.StateEntry{Key: "supervisor_messages", Value: []llm.Message{llm.AIMessage("one")}},
		messages(llm.AIMessage("two")),
	))

	require.Len(t, frames, 2)
	assert.Equal(t, "one", frames[1].Data.(model.ResultChunk).Content)
}

func TestTranslate_NonMessageValueIsIgnored(t *testing.T) {
	frames := newTestTranslator().Translate(update(nil, agent.NodeAgent,
		agent.StateEntry{Key: agent.KeyMessages, Value: "not a list"},
		messages(llm.AIMessage("skipped")),
	))
	assert.Len(t, frames, 1)
}

func TestExtractText(t *testing.T) {
	testCases := []struct {
		name    string
		content llm.Content
		want    string
	}{
		{name: "nil", content: nil, want: ""},
		{name: "text", content: llm.Text("  hello "), want: "  hello "},
		{name: "blocks", content: llm.Blocks{
			{Type: llm.BlockTypeText, Text: "a"},
			{Type: llm.BlockTypeText, Text: "b"},
		}, want: "a\nb"},
		{name: "tool use without input", content: llm.Blocks{
			{Type: llm.BlockTypeToolUse, Name: "ls"},
		}, want: "[tool_use] ls {}"},
		{name: "unknown block", content: llm.Blocks{{Type: "image"}}, want: ""},
		{name: "opaque", content: llm.Opaque{Value: 42}, want: "42"},
		{name: "opaque nil", content: llm.Opaque{}, want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractText(tc.content))
		})
	}
}

// Property: values snapshots never produce frames.
func TestSnapshotProducesNoFramesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	tr := newTestTranslator()

	properties.Property("values events translate to zero frames", prop.ForAll(
		func(path []string, texts []string) bool {
			msgs := make([]llm.Message, len(texts))
			for i, text := range texts {
				msgs[i] = llm.AIMessage(text)
			}
			ev := agent.Event{Path: path, Mode: agent.ModeValues, Values: agent.State{Messages: msgs}}
			return len(tr.Translate(ev)) == 0
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}

// Property: a message yields one tool_call per call, then at most one
// result_chunk carrying its trimmed text.
func TestMessageFramesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	tr := newTestTranslator()

	properties.Property("tool calls precede the result chunk", prop.ForAll(
		func(numCalls int, text string) bool {
			calls := make([]llm.ToolCall, numCalls)
			for i := range calls {
				calls[i] = llm.ToolCall{ID: string(rune('a' + i)), Name: "think_tool"}
			}
			frames := tr.Translate(update(nil, agent.NodeAgent, messages(llm.AIMessage(text, calls...))))

			trimmed := strings.TrimSpace(text)
			wantChunks := 0
			if trimmed != "" {
				wantChunks = 1
			}
			if len(frames) != 1+numCalls+wantChunks {
				return false
			}
			for i := 1; i <= numCalls; i++ {
				if frames[i].EventType != model.EventTypeToolCall {
					return false
				}
			}
			if wantChunks == 1 {
				chunk, ok := frames[len(frames)-1].Data.(model.ResultChunk)
				return ok && chunk.Content == trimmed && chunk.MessageType == "AI"
			}
			return true
		},
		gen.IntRange(0, 5),
		gen.OneGenOf(gen.AnyString(), gen.Const("   "), gen.Const("")),
	))

	properties.TestingRun(t)
}
