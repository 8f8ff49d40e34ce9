package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader_ReadLine(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedValue string
	}{
		{
			name:          "successful read",
			input:         "test input\n",
			expectedValue: "test input",
		},
		{
			name:          "read with extra whitespace",
			input:         "  test input  \n",
			expectedValue: "test input",
		},
		{
			name:          "empty line",
			input:         "\n",
			expectedValue: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewLineReader(strings.NewReader(tt.input))

			result, err := reader.ReadLine(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, result)
		})
	}
}

func TestLineReader_ContextCancellation(t *testing.T) {
	t.Run("already canceled context", func(t *testing.T) {
		// A pipe with no data keeps the underlying read blocked so the
		// cancellation path is the only way out.
		pr, pw := io.Pipe()
		defer func() { _ = pr.Close() }()
		defer func() { _ = pw.Close() }()

		reader := NewLineReader(pr)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := reader.ReadLine(ctx)
		assert.Equal(t, ErrInputCancelled, err)
	})

	t.Run("cancellation during read", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pr.Close() }()
		defer func() { _ = pw.Close() }()

		reader := NewLineReader(pr)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := reader.ReadLine(ctx)
		assert.Equal(t, ErrInputCancelled, err)
	})
}

func TestLineReader_MultipleReads(t *testing.T) {
	reader := NewLineReader(strings.NewReader("line1\nline2\nline3\n"))

	ctx := context.Background()

	for _, expected := range []string{"line1", "line2", "line3"} {
		line, err := reader.ReadLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, expected, line)
	}
}

func TestLineReader_EOF(t *testing.T) {
	reader := NewLineReader(strings.NewReader(""))

	_, err := reader.ReadLine(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
