package llm

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	err       error
	failures  int
	callCount int
}

func (f *flakyClient) Chat(_ context.Context, _ ChatRequest) (ChatResponse, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return ChatResponse{}, f.err
	}
	return ChatResponse{Content: "recovered", StopReason: StopEndTurn}, nil
}

func testChatter(client Client) *Chatter {
	return &Chatter{
		client:      client,
		rateLimiter: newRateLimiter(600),
		logger:      slog.Default(),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
}

func TestChatter_RetriesTransientFailures(t *testing.T) {
	flaky := &flakyClient{
		failures: 2,
		err:      &common.RetryableError{Err: fmt.Errorf("temporarily unavailable"), Retryable: true},
	}
	chatter := testChatter(flaky)

	resp, err := chatter.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, flaky.callCount)
}

func TestChatter_DoesNotRetryPermanentFailures(t *testing.T) {
	flaky := &flakyClient{
		failures: 5,
		err:      &common.RetryableError{Err: fmt.Errorf("invalid request"), Retryable: false},
	}
	chatter := testChatter(flaky)

	_, err := chatter.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hi")}})
	require.Error(t, err)
	assert.Equal(t, 1, flaky.callCount, "permanent failures short-circuit the retry loop")
}

func TestChatter_GivesUpAfterMaxAttempts(t *testing.T) {
	flaky := &flakyClient{
		failures: 10,
		err:      &common.RetryableError{Err: fmt.Errorf("still down"), Retryable: true},
	}
	chatter := testChatter(flaky)

	_, err := chatter.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hi")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Equal(t, 3, flaky.callCount)
}

func TestNewChatter_DefaultsAndLogger(t *testing.T) {
	chatter, err := NewChatter(Config{Provider: "template"}, nil)
	require.NoError(t, err)
	require.NotNil(t, chatter.logger)
	assert.Equal(t, 3, chatter.retryOpts.MaxAttempts)
	assert.Equal(t, time.Second, chatter.retryOpts.InitialDelay)

	resp, err := chatter.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hello")}})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Content)
}
