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

const openAIDefaultBaseURL = "https://api.openai.com"

// openAIClient implements the Client interface for the OpenAI chat
// completions API.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
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
		baseURL = openAIDefaultBaseURL
	}

	return &openAIClient{
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

// Chat sends a conversation to OpenAI and normalizes the reply.
func (c *openAIClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"messages":    openAIMessages(req.System, req.Messages),
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Schema,
				},
			})
		}
		requestBody["tools"] = tools
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		return ChatResponse{}, fmt.Errorf("openai API: %w", common.ErrRateLimit)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return ChatResponse{}, &common.RetryableError{
			Err:       fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, &common.RetryableError{
			Err:       fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: false,
		}
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ChatResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("no choices in response")
	}

	return response.normalize(), nil
}

// openAIMessages converts conversation turns into OpenAI's message format.
// The system prompt becomes the leading message; tool results become
// role "tool" messages keyed by call ID.
func openAIMessages(system string, messages []Message) []map[string]any {
	converted := make([]map[string]any, 0, len(messages)+1)
	if system != "" {
		converted = append(converted, map[string]any{"role": "system", "content": system})
	}

	for _, msg := range messages {
		switch {
		case msg.Role == RoleTool:
			for _, result := range msg.ToolResults {
				converted = append(converted, map[string]any{
					"role":         "tool",
					"tool_call_id": result.CallID,
					"content":      result.Content,
				})
			}

		case msg.Role == RoleAssistant && len(msg.ToolCalls) > 0:
			calls := make([]map[string]any, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				calls = append(calls, map[string]any{
					"id":   call.ID,
					"type": "function",
					"function": map[string]any{
						"name":      call.Name,
						"arguments": string(call.Arguments),
					},
				})
			}
			entry := map[string]any{"role": "assistant", "tool_calls": calls}
			if msg.Content != "" {
				entry["content"] = msg.Content
			}
			converted = append(converted, entry)

		default:
			converted = append(converted, map[string]any{"role": msg.Role, "content": msg.Content})
		}
	}
	return converted
}

// openAIResponse represents the OpenAI API response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (r *openAIResponse) normalize() ChatResponse {
	choice := r.Choices[0]
	out := ChatResponse{Content: choice.Message.Content}

	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	switch choice.FinishReason {
	case "tool_calls":
		out.StopReason = StopToolUse
	case "length":
		out.StopReason = StopLength
	default:
		out.StopReason = StopEndTurn
	}
	return out
}
