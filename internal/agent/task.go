package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// SubAgent describes an agent the supervisor can delegate to.
type SubAgent struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Prompt      string   `yaml:"prompt"`
	Tools       []string `yaml:"tools"`
}

// TaskOptions tunes the sub-agents created by NewTaskTool.
type TaskOptions struct {
	MaxIterations int
	Parallelism   int
	Logger        *zap.Logger
}

type taskTool struct {
	spec   llm.ToolSpec
	agents map[string]*ReactAgent
	names  []string
}

// NewTaskTool creates the delegation tool. Each sub-agent gets the subset of
// tools named by its descriptor (all of tools when the descriptor names
// none) and runs on model. A sub-agent run is a nested graph whose events
// are streamed under the path segment "tools:<call id>".
func NewTaskTool(tools []Tool, subagents []SubAgent, model llm.ChatModel, opts TaskOptions) (Tool, error) {
	if len(subagents) == 0 {
		return nil, fmt.Errorf("task tool needs at least one sub-agent")
	}
	if model == nil {
		return nil, fmt.Errorf("task tool needs a model")
	}

	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Spec().Name] = t
	}

	t := &taskTool{agents: make(map[string]*ReactAgent, len(subagents))}
	var catalog strings.Builder
	for _, sa := range subagents {
		if sa.Name == "" {
			return nil, fmt.Errorf("sub-agent name is required")
		}
		if _, dup := t.agents[sa.Name]; dup {
			return nil, fmt.Errorf("duplicate sub-agent %q", sa.Name)
		}

		agentTools := tools
		if len(sa.Tools) > 0 {
			agentTools = make([]Tool, 0, len(sa.Tools))
			for _, name := range sa.Tools {
				tool, ok := byName[name]
				if !ok {
					return nil, fmt.Errorf("sub-agent %q references unknown tool %q", sa.Name, name)
				}
				agentTools = append(agentTools, tool)
			}
		}

		t.agents[sa.Name] = &ReactAgent{
			Name:          sa.Name,
			Model:         model,
			Tools:         agentTools,
			Instructions:  sa.Prompt,
			MaxIterations: opts.MaxIterations,
			Parallelism:   opts.Parallelism,
			Logger:        opts.Logger,
		}
		t.names = append(t.names, sa.Name)
		fmt.Fprintf(&catalog, "\n- %s: %s", sa.Name, sa.Description)
	}

	t.spec = llm.ToolSpec{
		Name: ToolTask,
		Description: "Launch a sub-agent to handle one focused task in an isolated context. " +
			"Available agent types:" + catalog.String(),
		Parameters: objectSchema([]string{"description", "subagent_type"}, map[string]*llm.Schema{
			"description":   stringProp("The task for the sub-agent, with all context it needs."),
			"subagent_type": stringProp("Which sub-agent to use."),
		}),
	}
	return t, nil
}

func (t *taskTool) Spec() llm.ToolSpec { return t.spec }

// Invoke runs the chosen sub-agent on a fresh conversation that shares the
// caller's files and todos, and returns its final answer and file writes.
func (t *taskTool) Invoke(ctx context.Context, inv Invocation) (ToolResult, error) {
	description, err := stringArg(ToolTask, inv.Call.Args, "description")
	if err != nil {
		return ToolResult{}, err
	}
	kind, err := stringArg(ToolTask, inv.Call.Args, "subagent_type")
	if err != nil {
		return ToolResult{}, err
	}

	sub, ok := t.agents[kind]
	if !ok {
		return ToolResult{}, inputErrorf(ToolTask, "invoked agent of type %s, the only allowed types are %v", kind, t.names)
	}

	input := State{
		Messages: []llm.Message{llm.HumanMessage(description)},
		Todos:    inv.State.Todos,
		Files:    inv.State.Files,
	}
	path := append(slices.Clone(inv.Path), "tools:"+inv.Call.ID)

	final, err := sub.run(ctx, path, input, inv.Yield)
	if err != nil {
		return ToolResult{}, fmt.Errorf("sub-agent %s: %w", kind, err)
	}

	var output string
	if n := len(final.Messages); n > 0 {
		output = llm.TextOf(final.Messages[n-1])
	}
	return ToolResult{Output: output, Files: final.Files}, nil
}
