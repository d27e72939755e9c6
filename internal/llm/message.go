// Package llm defines chat messages, the ChatModel interface and the model
// handle provider that turns a named configuration into an invocable model.
package llm

// Role identifies who produced a message.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
	RoleSystem Role = "system"
)

// MessageType returns the display name of the role, e.g. "AI" or "Tool".
func (r Role) MessageType() string {
	switch r {
	case RoleHuman:
		return "Human"
	case RoleAI:
		return "AI"
	case RoleTool:
		return "Tool"
	case RoleSystem:
		return "System"
	}
	return string(r)
}

// Content is the body of a message. It is one of Text, Blocks or Opaque.
type Content interface {
	isContent()
}

// Text is plain string content.
type Text string

// Blocks is structured content made of typed blocks.
type Blocks []Block

// Opaque wraps content of any other shape. It is rendered with fmt.
type Opaque struct {
	Value any
}

func (Text) isContent()   {}
func (Blocks) isContent() {}
func (Opaque) isContent() {}

// BlockType discriminates content blocks.
type BlockType string

const (
	BlockTypeText    BlockType = "text"
	BlockTypeToolUse BlockType = "tool_use"
)

// Block is a single content block. Text is set for text blocks; ID, Name and
// Input are set for tool_use blocks.
type Block struct {
	Type  BlockType
	Text  string
	ID    string
	Name  string
	Input map[string]any
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Message is one entry of a conversation.
type Message struct {
	Role       Role
	Content    Content
	ToolCalls  []ToolCall
	ToolCallID string // set on tool results
	Name       string // tool name on tool results
}

// HumanMessage creates a human text message.
func HumanMessage(text string) Message {
	return Message{Role: RoleHuman, Content: Text(text)}
}

// AIMessage creates an AI text message with optional tool calls.
func AIMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: Text(text), ToolCalls: calls}
}

// ToolMessage creates a tool result message answering callID.
func ToolMessage(callID, name, text string) Message {
	return Message{Role: RoleTool, Content: Text(text), ToolCallID: callID, Name: name}
}

// TextOf returns the plain text of the message: Text content verbatim, or
// the concatenated text blocks of Blocks content. Tool-use blocks and
// Opaque content contribute nothing.
func TextOf(m Message) string {
	switch c := m.Content.(type) {
	case Text:
		return string(c)
	case Blocks:
		var out string
		for _, b := range c {
			if b.Type == BlockTypeText {
				out += b.Text
			}
		}
		return out
	}
	return ""
}
