package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ChatMessage is one provider-neutral conversation message. Assistant
// messages carry the tool calls they issued so the transcript can be
// replayed to the provider; tool messages carry the id of the call they
// answer.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolSchema describes one tool offered to the model. JSONSchema is the
// raw JSON Schema of the tool's input object.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string
}

// Request is one generation call. Leaving Tools empty forces a text-only
// answer.
type Request struct {
	System      string
	Messages    []ChatMessage
	Tools       []ToolSchema
	Temperature float32
	MaxTokens   int
}

// Response is the model's reply: text, any requested tool calls, and the
// provider's stop reason normalized to "stop", "tool_calls" or "length".
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// ToolUse reports whether the model asked for tools instead of (or in
// addition to) answering.
func (r Response) ToolUse() bool {
	return len(r.ToolCalls) > 0
}

// Client generates one model response per call. Implementations are
// stateless; conversation state lives in Request.Messages.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
