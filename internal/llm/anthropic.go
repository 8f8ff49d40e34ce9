package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
)

const anthropicDefaultBaseURL = "https://api.anthropic.com"

// anthropicClient implements the Client interface for the Anthropic
// Messages API.
type anthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newAnthropicClient creates a new Anthropic API client.
func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}

	return &anthropicClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Chat sends a conversation to Anthropic and normalizes the reply.
func (c *anthropicClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"messages":    anthropicMessages(req.Messages),
	}
	if req.System != "" {
		requestBody["system"] = req.System
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]any{
				"name":         tool.Name,
				"description":  tool.Description,
				"input_schema": tool.Schema,
			})
		}
		requestBody["tools"] = tools
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", strings.NewReader(string(jsonBody)))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return ChatResponse{}, fmt.Errorf("anthropic API: %w", common.ErrRateLimit)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return ChatResponse{}, &common.RetryableError{
			Err:       fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, &common.RetryableError{
			Err:       fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: false,
		}
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ChatResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return response.normalize(), nil
}

// anthropicMessages converts conversation turns into Anthropic's block
// format. Tool results ride in user-role messages per the Messages API.
func anthropicMessages(messages []Message) []map[string]any {
	converted := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.Role == RoleTool:
			blocks := make([]map[string]any, 0, len(msg.ToolResults))
			for _, result := range msg.ToolResults {
				block := map[string]any{
					"type":        "tool_result",
					"tool_use_id": result.CallID,
					"content":     result.Content,
				}
				if result.IsError {
					block["is_error"] = true
				}
				blocks = append(blocks, block)
			}
			converted = append(converted, map[string]any{"role": "user", "content": blocks})

		case msg.Role == RoleAssistant && len(msg.ToolCalls) > 0:
			blocks := make([]map[string]any, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": msg.Content})
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    call.ID,
					"name":  call.Name,
					"input": call.Arguments,
				})
			}
			converted = append(converted, map[string]any{"role": "assistant", "content": blocks})

		default:
			converted = append(converted, map[string]any{"role": msg.Role, "content": msg.Content})
		}
	}
	return converted
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r *anthropicResponse) normalize() ChatResponse {
	var out ChatResponse
	var text strings.Builder
	for _, block := range r.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	out.Content = text.String()

	switch r.StopReason {
	case "tool_use":
		out.StopReason = StopToolUse
	case "max_tokens":
		out.StopReason = StopLength
	default:
		out.StopReason = StopEndTurn
	}
	return out
}
