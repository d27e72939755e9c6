package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GenAIModel is a ChatModel backed by the Google Gen AI SDK.
type GenAIModel struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenAIModel creates a Gemini chat model for cfg.
func NewGenAIModel(ctx context.Context, cfg ModelConfig) (*GenAIModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIModel{
		client:      client,
		model:       cfg.Name,
		temperature: cfg.Temperature,
	}, nil
}

// Generate sends the conversation to the model and returns its reply.
func (m *GenAIModel) Generate(ctx context.Context, req Request) (Message, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(m.temperature),
	}
	if req.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, toContents(req.Messages), config)
	if err != nil {
		return Message{}, fmt.Errorf("GenAI generate failed: %w", err)
	}
	return fromResponse(resp)
}

// toContents converts a conversation into GenAI contents. System messages
// are dropped; instructions travel in the request config.
func toContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleHuman:
			contents = append(contents, genai.NewContentFromText(renderText(m.Content), genai.RoleUser))
		case RoleAI:
			contents = append(contents, aiContent(m))
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     m.Name,
						Response: map[string]any{"output": renderText(m.Content)},
					},
				}},
			})
		}
	}
	return contents
}

func aiContent(m Message) *genai.Content {
	c := &genai.Content{Role: string(genai.RoleModel)}

	if blocks, ok := m.Content.(Blocks); ok {
		for _, b := range blocks {
			switch b.Type {
			case BlockTypeText:
				c.Parts = append(c.Parts, genai.NewPartFromText(b.Text))
			case BlockTypeToolUse:
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: b.ID, Name: b.Name, Args: b.Input}})
			}
		}
	} else if text := renderText(m.Content); text != "" {
		c.Parts = append(c.Parts, genai.NewPartFromText(text))
	}

	for _, call := range m.ToolCalls {
		c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args}})
	}
	return c
}

func renderText(c Content) string {
	switch v := c.(type) {
	case Text:
		return string(v)
	case Blocks:
		return TextOf(Message{Content: v})
	case Opaque:
		return fmt.Sprint(v.Value)
	}
	return ""
}

// fromResponse turns the first candidate into an AI message. Function calls
// without an ID get a generated one so tool results can be correlated.
func fromResponse(resp *genai.GenerateContentResponse) (Message, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Message{}, fmt.Errorf("GenAI returned no candidates")
	}

	var text strings.Builder
	var calls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.New().String()
			}
			calls = append(calls, ToolCall{ID: id, Name: part.FunctionCall.Name, Args: part.FunctionCall.Args})
			continue
		}
		if part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}

	return AIMessage(text.String(), calls...), nil
}

func toFunctionDeclarations(specs []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  toSchema(spec.Parameters),
		})
	}
	return decls
}

func toSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Required:    s.Required,
		Items:       toSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}
