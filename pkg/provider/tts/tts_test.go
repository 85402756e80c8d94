package tts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, s)
		case <-timeout:
			t.Fatal("timed out collecting sentences")
		}
	}
}

func feed(fragments ...string) <-chan string {
	in := make(chan string, len(fragments))
	for _, f := range fragments {
		in <- f
	}
	close(in)
	return in
}

func TestBufferSentences_SplitsOnPunctuation(t *testing.T) {
	out := BufferSentences(context.Background(), feed("Hello ", "world. How", " are you? Fine"))
	got := collect(t, out)
	assert.Equal(t, []string{"Hello world.", "How are you?", "Fine"}, got)
}

func TestBufferSentences_NewlineTerminates(t *testing.T) {
	out := BufferSentences(context.Background(), feed("line one\nline two"))
	got := collect(t, out)
	assert.Equal(t, []string{"line one", "line two"}, got)
}

func TestBufferSentences_FlushesRemainderOnClose(t *testing.T) {
	out := BufferSentences(context.Background(), feed("no punctuation at all"))
	got := collect(t, out)
	assert.Equal(t, []string{"no punctuation at all"}, got)
}

func TestBufferSentences_DiscardsWhitespaceOnly(t *testing.T) {
	out := BufferSentences(context.Background(), feed("  .  ", " \n "))
	got := collect(t, out)
	assert.Empty(t, got)
}

func TestBufferSentences_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan string)
	out := BufferSentences(ctx, in)

	cancel()

	select {
	case _, ok := <-out:
		require.False(t, ok, "output must close on cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("output did not close after cancel")
	}
}
