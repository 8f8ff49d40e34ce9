package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Normalized stop reasons across providers.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
	StopLength  = "max_tokens"
)

// Client defines the interface for LLM providers.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Config holds configuration for LLM providers.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// ToolDef describes a callable tool advertised to the model. Schema is a
// JSON Schema object constraining the arguments.
type ToolDef struct {
	Schema      map[string]any
	Name        string
	Description string
}

// ToolCall is a model request to invoke one tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult carries a tool's output back to the model. IsError marks
// failed invocations so the model can correct itself.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Message is a single conversation turn. Assistant turns may carry tool
// calls; tool turns carry results.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ChatRequest is one model invocation over an accumulated conversation.
type ChatRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDef
}

// ChatResponse is the model's reply. When StopReason is StopToolUse the
// caller is expected to execute ToolCalls and continue the conversation.
type ChatResponse struct {
	Content    string
	StopReason string
	ToolCalls  []ToolCall
}

// UserMessage builds a plain user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn, preserving any tool calls so
// providers can replay the exchange faithfully.
func AssistantMessage(resp ChatResponse) Message {
	return Message{Role: RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
}

// ToolMessage builds a tool turn from executed results.
func ToolMessage(results []ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: results}
}
