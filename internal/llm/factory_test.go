package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantErr  bool
		wantType string
	}{
		{name: "anthropic", config: Config{Provider: "anthropic", APIKey: "k"}, wantType: "*llm.anthropicClient"},
		{name: "openai", config: Config{Provider: "OpenAI", APIKey: "k"}, wantType: "*llm.openAIClient"},
		{name: "template", config: Config{Provider: "template"}, wantType: "*llm.templateClient"},
		{name: "empty falls back to template", config: Config{}, wantType: "*llm.templateClient"},
		{name: "unknown provider", config: Config{Provider: "palm"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", client))
		})
	}
}

func TestTemplateClient_CannedGuidance(t *testing.T) {
	client, err := newTemplateClient(Config{})
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{UserMessage("What am I spending on subscriptions?")},
	})
	require.NoError(t, err)
	assert.Equal(t, StopEndTurn, resp.StopReason)
	assert.Contains(t, resp.Content, "No language model is configured")
	assert.Empty(t, resp.ToolCalls, "the template client never requests tools")
}

func TestTemplateClient_RelaysToolResults(t *testing.T) {
	client, err := newTemplateClient(Config{})
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			UserMessage("What subscriptions do I have?"),
			ToolMessage([]ToolResult{
				{CallID: "c1", Name: "detect_subscriptions", Content: "streamflix: $15.85 monthly"},
				{CallID: "c2", Name: "detect_subscriptions", Content: "bad call", IsError: true},
			}),
		},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "streamflix: $15.85 monthly")
	assert.NotContains(t, resp.Content, "bad call", "errored results are not relayed")
}
