package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgerlens/ledgerlens/internal/llm"
)

// Error kinds carried in failed tool envelopes.
const (
	errKindUnknownTool      = "unknown_tool"
	errKindInvalidArguments = "invalid_arguments"
	errKindTimeout          = "timeout"
	errKindExecutionFailed  = "execution_failed"
)

// Handler executes one tool call scoped to a user. Arguments arrive
// schema-validated; the returned value is marshaled as the result payload.
type Handler func(ctx context.Context, userID string, args json.RawMessage) (any, error)

// Tool binds a callable name to its argument schema and handler.
type Tool struct {
	Schema      map[string]any
	Handler     Handler
	Name        string
	Description string
}

// Registry maps tool names to their implementations. It is safe for
// concurrent use once built.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s is already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defs returns the tool definitions advertised to the model, sorted by
// name so prompts are stable across runs.
func (r *Registry) Defs() []llm.ToolDef {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      tool.Schema,
		})
	}
	return defs
}

// Execute runs one requested tool call and wraps the outcome in the result
// envelope. Every failure mode becomes a structured tool error the model
// can react to; Execute itself never fails.
func (r *Registry) Execute(ctx context.Context, userID string, call llm.ToolCall) llm.ToolResult {
	tool, ok := r.Get(call.Name)
	if !ok {
		return errorResult(call, errKindUnknownTool, fmt.Sprintf("no tool named %q", call.Name))
	}

	if err := validateArgs(tool.Schema, call.Arguments); err != nil {
		return errorResult(call, errKindInvalidArguments, err.Error())
	}

	payload, err := tool.Handler(ctx, userID, call.Arguments)
	if err != nil {
		kind := errKindExecutionFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = errKindTimeout
		}
		return errorResult(call, kind, err.Error())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errorResult(call, errKindExecutionFailed, fmt.Sprintf("failed to encode result: %v", err))
	}
	content, err := json.Marshal(toolEnvelope{OK: true, Data: data})
	if err != nil {
		return errorResult(call, errKindExecutionFailed, fmt.Sprintf("failed to encode envelope: %v", err))
	}

	return llm.ToolResult{CallID: call.ID, Name: call.Name, Content: string(content)}
}

// toolEnvelope is the wire format of every tool result: ok plus data on
// success, ok false plus an error kind and message on failure.
type toolEnvelope struct {
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Message   string          `json:"message,omitempty"`
	OK        bool            `json:"ok"`
}

func errorResult(call llm.ToolCall, kind, message string) llm.ToolResult {
	content, err := json.Marshal(toolEnvelope{ErrorKind: kind, Message: message})
	if err != nil {
		content = []byte(fmt.Sprintf(`{"ok":false,"error_kind":%q,"message":"tool error"}`, kind))
	}
	return llm.ToolResult{CallID: call.ID, Name: call.Name, Content: string(content), IsError: true}
}

func parseEnvelope(content string) (toolEnvelope, error) {
	var envelope toolEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return toolEnvelope{}, fmt.Errorf("failed to decode tool envelope: %w", err)
	}
	return envelope, nil
}
