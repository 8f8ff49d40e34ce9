package llm

import (
	"context"
	"strings"
)

// templateClient is the offline provider used when no API key is
// configured. It never requests tools and answers from canned text so the
// surrounding product keeps working in degraded form.
type templateClient struct{}

// newTemplateClient creates the offline fallback client.
func newTemplateClient(_ Config) (Client, error) {
	return &templateClient{}, nil
}

// Chat returns canned guidance. When the conversation already carries tool
// results it relays them verbatim so gathered data is not lost.
func (c *templateClient) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != RoleTool || len(msg.ToolResults) == 0 {
			continue
		}
		var sb strings.Builder
		sb.WriteString("Here is the data I could pull together:\n")
		for _, result := range msg.ToolResults {
			if result.IsError {
				continue
			}
			sb.WriteString(result.Content)
			sb.WriteString("\n")
		}
		return ChatResponse{Content: strings.TrimSpace(sb.String()), StopReason: StopEndTurn}, nil
	}

	return ChatResponse{
		Content: "No language model is configured, so I can only answer directly. " +
			"Try the subscriptions, anomalies, goals, or insights commands for current numbers.",
		StopReason: StopEndTurn,
	}, nil
}
