// Package assistant implements the conversational layer: a registry of
// read-only finance tools and the bounded orchestration loop that lets a
// language model call them to answer questions about the user's money.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

const systemPrompt = `You are a personal finance assistant with read access to the user's transaction history, subscriptions, savings goals, and insights through tools. Pull real numbers with the tools before answering. Keep answers short, concrete, and in plain language, with dollar amounts rounded to cents. If a tool returns an error, correct the call or explain what you could not retrieve.`

// fallbackPayloadLimit bounds how much of each tool payload a degraded
// answer repeats verbatim.
const fallbackPayloadLimit = 600

// Deps contains all dependencies required by the orchestrator.
type Deps struct {
	// Client is the language model the loop converses with.
	Client llm.Client
	// Registry holds the tools advertised to the model.
	Registry *Registry
	// Conversations persists conversation turns.
	Conversations ConversationStore
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Client == nil {
		return fmt.Errorf("llm client dependency is required")
	}
	if d.Registry == nil {
		return fmt.Errorf("tool registry dependency is required")
	}
	if d.Conversations == nil {
		return fmt.Errorf("conversation store dependency is required")
	}
	return nil
}

// Config holds tuning options for the orchestrator.
type Config struct {
	// MaxToolRounds caps how many times the model is called in one turn.
	MaxToolRounds int
	// ToolTimeout bounds each individual tool execution.
	ToolTimeout time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		MaxToolRounds: 5,
		ToolTimeout:   5 * time.Second,
	}
}

// Orchestrator runs conversational turns: it relays the user's question to
// the model, executes requested tool calls, and loops until the model
// produces an answer or the round cap is reached.
type Orchestrator struct {
	deps   Deps
	config Config
}

// NewOrchestrator creates an orchestrator with the provided dependencies.
func NewOrchestrator(deps Deps, config Config) (*Orchestrator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	defaults := DefaultConfig()
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = defaults.MaxToolRounds
	}
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = defaults.ToolTimeout
	}
	return &Orchestrator{
		deps:   deps,
		config: config,
	}, nil
}

// Response is the outcome of one conversational turn. Fallback marks
// answers synthesized locally instead of by the model, so consumers can
// present them as lower confidence.
type Response struct {
	StructuredData map[string]json.RawMessage
	Text           string
	ConversationID string
	ToolsUsed      []string
	Fallback       bool
}

// Ask runs one conversational turn for a user. An empty conversationID
// starts a new conversation; otherwise prior turns are loaded as context.
func (o *Orchestrator) Ask(ctx context.Context, userID, conversationID, message string) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	now := time.Now()
	conversation, history, err := o.loadConversation(ctx, userID, conversationID, now)
	if err != nil {
		return nil, err
	}

	messages := historyMessages(history)
	messages = append(messages, llm.UserMessage(message))
	userTurn := &model.ConversationMessage{Role: model.RoleUser, Content: message, CreatedAt: now}
	if err := o.deps.Conversations.SaveConversationMessage(ctx, conversation.ID, userTurn); err != nil {
		return nil, fmt.Errorf("failed to save user turn: %w", err)
	}

	answer, collected, fallback := o.run(ctx, userID, conversation.ID, messages)

	assistantTurn := &model.ConversationMessage{Role: model.RoleAssistant, Content: answer}
	if err := o.deps.Conversations.SaveConversationMessage(ctx, conversation.ID, assistantTurn); err != nil {
		return nil, fmt.Errorf("failed to save assistant turn: %w", err)
	}

	slog.Info("Assistant turn complete",
		"user_id", userID,
		"conversation_id", conversation.ID,
		"tools_used", len(collected.used),
		"fallback", fallback)

	return &Response{
		Text:           answer,
		ConversationID: conversation.ID,
		ToolsUsed:      collected.used,
		StructuredData: collected.data,
		Fallback:       fallback,
	}, nil
}

// turnState tracks where the orchestration loop is within one turn.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateExecuting
	stateFinal
)

// run drives the tool-calling loop. It always terminates: each model
// round-trip increments the counter, and reaching the cap degrades to a
// locally synthesized answer instead of another model call.
func (o *Orchestrator) run(ctx context.Context, userID, conversationID string, messages []llm.Message) (string, *gathered, bool) {
	collected := newGathered()
	request := llm.ChatRequest{
		System:   systemPrompt,
		Messages: messages,
		Tools:    o.deps.Registry.Defs(),
	}

	state := stateAwaitingModel
	rounds := 0
	fallback := false
	var answer string
	var resp llm.ChatResponse

	for state != stateFinal {
		switch state {
		case stateAwaitingModel:
			if rounds >= o.config.MaxToolRounds {
				slog.Warn("Tool round cap reached",
					"conversation_id", conversationID,
					"rounds", rounds)
				answer = fallbackAnswer(collected)
				fallback = true
				state = stateFinal
				continue
			}

			var err error
			resp, err = o.deps.Client.Chat(ctx, request)
			if err != nil {
				slog.Warn("Model call failed, degrading to local answer",
					"conversation_id", conversationID,
					"error", err)
				answer = fallbackAnswer(collected)
				fallback = true
				state = stateFinal
				continue
			}
			rounds++

			if resp.StopReason == llm.StopToolUse && len(resp.ToolCalls) > 0 {
				request.Messages = append(request.Messages, llm.AssistantMessage(resp))
				state = stateExecuting
				continue
			}
			answer = strings.TrimSpace(resp.Content)
			if answer == "" {
				answer = fallbackAnswer(collected)
				fallback = true
			}
			state = stateFinal

		case stateExecuting:
			results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
			for _, call := range resp.ToolCalls {
				result := o.executeCall(ctx, userID, conversationID, call)
				collected.record(call.Name, result)
				results = append(results, result)
			}
			request.Messages = append(request.Messages, llm.ToolMessage(results))
			state = stateAwaitingModel
		}
	}

	return answer, collected, fallback
}

// executeCall runs one tool call under the per-call timeout and persists
// the result turn. A failed persist is logged, not fatal.
func (o *Orchestrator) executeCall(ctx context.Context, userID, conversationID string, call llm.ToolCall) llm.ToolResult {
	callCtx, cancel := context.WithTimeout(ctx, o.config.ToolTimeout)
	defer cancel()

	result := o.deps.Registry.Execute(callCtx, userID, call)
	slog.Debug("Executed tool call",
		"conversation_id", conversationID,
		"tool", call.Name,
		"is_error", result.IsError)

	toolTurn := &model.ConversationMessage{Role: model.RoleTool, ToolName: call.Name, Content: result.Content}
	if err := o.deps.Conversations.SaveConversationMessage(ctx, conversationID, toolTurn); err != nil {
		slog.Warn("Failed to persist tool turn",
			"conversation_id", conversationID,
			"tool", call.Name,
			"error", err)
	}
	return result
}

func (o *Orchestrator) loadConversation(ctx context.Context, userID, id string, now time.Time) (*model.Conversation, []model.ConversationMessage, error) {
	if id == "" {
		conversation := &model.Conversation{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := o.deps.Conversations.CreateConversation(ctx, conversation); err != nil {
			return nil, nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conversation, nil, nil
	}

	conversation, err := o.deps.Conversations.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	history, err := o.deps.Conversations.GetConversationMessages(ctx, conversation.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	return conversation, history, nil
}

// historyMessages converts persisted turns for provider replay. Tool turns
// are kept for audit only; providers pair tool results with call IDs that
// do not survive across turns.
func historyMessages(history []model.ConversationMessage) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case model.RoleUser:
			messages = append(messages, llm.UserMessage(turn.Content))
		case model.RoleAssistant:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: turn.Content})
		}
	}
	return messages
}

// gathered accumulates successful tool payloads across rounds, both for
// the structured response and for degraded answers.
type gathered struct {
	data map[string]json.RawMessage
	used []string
}

func newGathered() *gathered {
	return &gathered{data: make(map[string]json.RawMessage)}
}

func (g *gathered) record(name string, result llm.ToolResult) {
	seen := false
	for _, existing := range g.used {
		if existing == name {
			seen = true
			break
		}
	}
	if !seen {
		g.used = append(g.used, name)
	}

	if result.IsError {
		return
	}
	envelope, err := parseEnvelope(result.Content)
	if err != nil || !envelope.OK {
		return
	}
	g.data[name] = envelope.Data
}

// fallbackAnswer builds a best-effort reply from whatever tool data was
// collected before the loop gave up.
func fallbackAnswer(collected *gathered) string {
	var sections []string
	for _, name := range collected.used {
		data, ok := collected.data[name]
		if !ok {
			continue
		}
		sections = append(sections, name+":\n"+truncatePayload(string(data), fallbackPayloadLimit))
	}

	if len(sections) == 0 {
		return "Sorry, I couldn't work that out. Try asking about recent spending, subscriptions, unusual charges, or savings goals."
	}
	return "Sorry, I couldn't put together a full answer. Here is the data I gathered:\n\n" + strings.Join(sections, "\n\n")
}

func truncatePayload(payload string, limit int) string {
	if len(payload) <= limit {
		return payload
	}
	return payload[:limit] + "..."
}
