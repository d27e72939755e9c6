package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelNameRequired is returned when a model configuration has no model name.
	ErrModelNameRequired = errors.New("model name cannot be empty")

	// ErrUnsupportedProvider is returned for a provider this build cannot resolve.
	ErrUnsupportedProvider = errors.New("unsupported model provider")
)

// Providers understood by Resolve.
const (
	ProviderGoogleGenAI = "google_genai"
	ProviderGemini      = "gemini"
)

// ModelConfig names a chat model and how to reach it.
type ModelConfig struct {
	APIKey      string
	BaseURL     string
	Name        string
	Provider    string
	Temperature float32
}

// Validate validates the model configuration.
func (c ModelConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrModelNameRequired
	}
	return nil
}

// Schema is a JSON-schema subset used to describe tool parameters.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// ToolSpec describes a tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *Schema
}

// Request is one model invocation.
type Request struct {
	Instructions string
	Messages     []Message
	Tools        []ToolSpec
}

// ChatModel is an invocable chat model handle.
type ChatModel interface {
	Generate(ctx context.Context, req Request) (Message, error)
}

// Resolver turns a model configuration into a chat model handle.
type Resolver func(ctx context.Context, cfg ModelConfig) (ChatModel, error)

// Resolve builds a chat model handle for cfg. An empty model name is a
// construction-time failure.
func Resolve(ctx context.Context, cfg ModelConfig) (ChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGoogleGenAI, ProviderGemini:
		return NewGenAIModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
