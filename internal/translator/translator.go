// Package translator converts raw agent events into outbound event frames.
package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nwthomas/deep-learning-research-agent/internal/agent"
	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
	"github.com/nwthomas/deep-learning-research-agent/internal/model"
)

// RootGraph labels events produced by the top-level agent.
const RootGraph = "root"

const unknown = "unknown"

// Translator turns agent events into EventFrames. It is stateless apart from
// its clock and safe for concurrent use.
type Translator struct {
	now func() time.Time
}

// New creates a Translator stamping frames with the current UTC time.
func New() *Translator {
	return &Translator{now: time.Now}
}

// NewWithClock creates a Translator with a custom clock.
func NewWithClock(now func() time.Time) *Translator {
	return &Translator{now: now}
}

// GraphLabel names the sub-graph identified by path.
func GraphLabel(path []string) string {
	if len(path) == 0 {
		return RootGraph
	}
	return strings.Join(path, "|")
}

// Translate returns the frames derived from one event, in emission order.
// Values snapshots produce no frames. All frames of one event share a
// timestamp.
func (t *Translator) Translate(ev agent.Event) []model.EventFrame {
	if ev.Mode != agent.ModeUpdates {
		return nil
	}

	ts := t.now().UTC()
	graph := GraphLabel(ev.Path)
	node := ev.Update.Node

	frames := []model.EventFrame{
		model.NewStatusUpdate(model.StatusUpdate{
			Graph:  graph,
			Node:   node,
			Status: model.StatusProcessing,
		}, &ts),
	}

	for _, entry := range ev.Update.State {
		if !strings.Contains(entry.Key, agent.KeyMessages) {
			continue
		}
		msgs, _ := entry.Value.([]llm.Message)
		for _, msg := range msgs {
			frames = appendMessage(frames, msg, graph, node, &ts)
		}
		// only the first messages-like key is consumed
		break
	}
	return frames
}

func appendMessage(frames []model.EventFrame, msg llm.Message, graph, node string, ts *time.Time) []model.EventFrame {
	if len(msg.ToolCalls) > 0 {
		for _, call := range msg.ToolCalls {
			frames = append(frames, model.NewToolCall(model.ToolCall{
				ToolName: orUnknown(call.Name),
				Args:     call.Args,
				ToolID:   orUnknown(call.ID),
			}, ts))
		}
	} else if blocks, ok := msg.Content.(llm.Blocks); ok {
		for _, b := range blocks {
			if b.Type != llm.BlockTypeToolUse {
				continue
			}
			frames = append(frames, model.NewToolCall(model.ToolCall{
				ToolName: orUnknown(b.Name),
				Args:     b.Input,
				ToolID:   orUnknown(b.ID),
			}, ts))
		}
	}

	if text := strings.TrimSpace(ExtractText(msg.Content)); text != "" {
		frames = append(frames, model.NewResultChunk(model.ResultChunk{
			Content:     text,
			MessageType: msg.Role.MessageType(),
			Node:        node,
			Graph:       graph,
		}, ts))
	}
	return frames
}

// ExtractText renders message content as display text. Text is returned
// verbatim. Blocks join the text of text blocks and a one-line rendering of
// each tool_use block with newlines. Anything else is formatted with fmt.
func ExtractText(c llm.Content) string {
	switch c := c.(type) {
	case nil:
		return ""
	case llm.Text:
		return string(c)
	case llm.Blocks:
		parts := make([]string, 0, len(c))
		for _, b := range c {
			switch b.Type {
			case llm.BlockTypeText:
				parts = append(parts, b.Text)
			case llm.BlockTypeToolUse:
				parts = append(parts, renderToolUse(b))
			}
		}
		return strings.Join(parts, "\n")
	case llm.Opaque:
		if c.Value == nil {
			return ""
		}
		return fmt.Sprint(c.Value)
	}
	return fmt.Sprint(c)
}

func renderToolUse(b llm.Block) string {
	input := b.Input
	if input == nil {
		input = map[string]any{}
	}
	args, err := json.Marshal(input)
	if err != nil {
		args = []byte(fmt.Sprint(input))
	}
	return fmt.Sprintf("[tool_use] %s %s", orUnknown(b.Name), args)
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
