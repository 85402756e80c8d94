package mock

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStream_OneInOneOut(t *testing.T) {
	svc := New()
	in := make(chan string, 2)
	in <- "Hello world"
	close(in)

	out, err := svc.ChatStream(context.Background(), in)
	require.NoError(t, err)

	var b strings.Builder
	for tok := range out {
		b.WriteString(tok)
	}
	assert.Equal(t, "I heard you say Hello world. That is interesting.", strings.TrimSpace(strings.Join(strings.Fields(b.String()), " ")))
}

func TestChatStream_StreamsTokenByToken(t *testing.T) {
	svc := New()
	in := make(chan string, 1)
	in <- "hi"
	close(in)

	out, err := svc.ChatStream(context.Background(), in)
	require.NoError(t, err)

	var tokens []string
	for tok := range out {
		tokens = append(tokens, tok)
	}
	assert.Greater(t, len(tokens), 1, "response must be streamed in multiple tokens")
}

func TestChatStream_EndOfInputEndsOutput(t *testing.T) {
	svc := New()
	in := make(chan string)
	close(in)

	out, err := svc.ChatStream(context.Background(), in)
	require.NoError(t, err)

	_, ok := <-out
	assert.False(t, ok)
}
