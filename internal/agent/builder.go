package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// BuilderConfig is everything needed to compose a supervisor for one session.
type BuilderConfig struct {
	Supervisor llm.ModelConfig
	Researcher llm.ModelConfig

	MaxSupervisorIterations    int
	MaxResearcherIterations    int
	MaxConcurrentResearchUnits int

	// Resolve builds model handles. Defaults to llm.Resolve.
	Resolve llm.Resolver
	// Catalog supplies prompts. Defaults to DefaultCatalog().
	Catalog *Catalog
	// Now stamps prompts with the current date. Defaults to time.Now.
	Now func() time.Time

	Logger *zap.Logger
}

// Builder composes a fresh supervisor agent per session. Nothing built here
// is shared between sessions.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder creates a new Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Resolve == nil {
		cfg.Resolve = llm.Resolve
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Builder{cfg: cfg}
}

// Build resolves both models and composes the built-in tools, the researcher
// delegation tool and the supervisor instructions into one agent.
func (b *Builder) Build(ctx context.Context) (Engine, error) {
	supervisorModel, err := b.cfg.Resolve(ctx, b.cfg.Supervisor)
	if err != nil {
		return nil, fmt.Errorf("supervisor model: %w", err)
	}
	researcherModel, err := b.cfg.Resolve(ctx, b.cfg.Researcher)
	if err != nil {
		return nil, fmt.Errorf("researcher model: %w", err)
	}

	now := b.cfg.Now()
	builtins := BuiltinTools()
	researcher := b.cfg.Catalog.ResearcherAgent(now)

	task, err := NewTaskTool(builtins, []SubAgent{researcher}, researcherModel, TaskOptions{
		MaxIterations: b.cfg.MaxResearcherIterations,
		Parallelism:   b.cfg.MaxConcurrentResearchUnits,
		Logger:        b.cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("delegation tool: %w", err)
	}

	return &ReactAgent{
		Name:          "supervisor",
		Model:         supervisorModel,
		Tools:         append(builtins, task),
		Instructions:  b.cfg.Catalog.SupervisorInstructions(now),
		MaxIterations: b.cfg.MaxSupervisorIterations,
		Parallelism:   b.cfg.MaxConcurrentResearchUnits,
		Logger:        b.cfg.Logger,
	}, nil
}
