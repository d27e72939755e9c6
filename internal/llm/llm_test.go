package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestResolve_EmptyModelName(t *testing.T) {
	_, err := Resolve(context.Background(), ModelConfig{Provider: ProviderGoogleGenAI})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNameRequired))

	_, err = Resolve(context.Background(), ModelConfig{Name: "   "})
	assert.True(t, errors.Is(err, ErrModelNameRequired))
}

func TestResolve_UnsupportedProvider(t *testing.T) {
	_, err := Resolve(context.Background(), ModelConfig{Name: "llama3", Provider: "ollama"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedProvider))
}

func TestRole_MessageType(t *testing.T) {
	assert.Equal(t, "AI", RoleAI.MessageType())
	assert.Equal(t, "Human", RoleHuman.MessageType())
	assert.Equal(t, "Tool", RoleTool.MessageType())
	assert.Equal(t, "System", RoleSystem.MessageType())
	assert.Equal(t, "custom", Role("custom").MessageType())
}

func TestTextOf(t *testing.T) {
	assert.Equal(t, "hello", TextOf(HumanMessage("hello")))
	assert.Equal(t, "ab", TextOf(Message{Content: Blocks{
		{Type: BlockTypeText, Text: "a"},
		{Type: BlockTypeToolUse, Name: "ls"},
		{Type: BlockTypeText, Text: "b"},
	}}))
	assert.Equal(t, "", TextOf(Message{Content: Opaque{Value: 3}}))
	assert.Equal(t, "", TextOf(Message{}))
}

func TestToContents(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: Text("ignored")},
		HumanMessage("find papers"),
		AIMessage("", ToolCall{ID: "c1", Name: "task", Args: map[string]any{"description": "x"}}),
		ToolMessage("c1", "task", "found 3"),
	}

	contents := toContents(msgs)
	require.Len(t, contents, 3)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "find papers", contents[0].Parts[0].Text)

	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 1)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "task", contents[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, "c1", contents[1].Parts[0].FunctionCall.ID)

	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "found 3", contents[2].Parts[0].FunctionResponse.Response["output"])
}

func TestFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{Text: "thinking...", Thought: true},
					{Text: "Let me delegate."},
					{FunctionCall: &genai.FunctionCall{Name: "task", Args: map[string]any{"description": "x"}}},
				},
			},
		}},
	}

	msg, err := fromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, RoleAI, msg.Role)
	assert.Equal(t, Text("Let me delegate."), msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "task", msg.ToolCalls[0].Name)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
}

func TestFromResponse_NoCandidates(t *testing.T) {
	_, err := fromResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestToSchema(t *testing.T) {
	s := toSchema(&Schema{
		Type:     "object",
		Required: []string{"file_path"},
		Properties: map[string]*Schema{
			"file_path": {Type: "string", Description: "path"},
			"todos":     {Type: "array", Items: &Schema{Type: "object"}},
		},
	})

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, genai.TypeString, s.Properties["file_path"].Type)
	assert.Equal(t, genai.TypeArray, s.Properties["todos"].Type)
	assert.Equal(t, genai.TypeObject, s.Properties["todos"].Items.Type)
	assert.Nil(t, toSchema(nil))
}
