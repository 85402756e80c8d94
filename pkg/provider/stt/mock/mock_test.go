package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/v1/audio"
)

func TestTranscribe_TriggersAtThreshold(t *testing.T) {
	svc := New()
	in := make(chan audio.Frame, 64)

	out, err := svc.Transcribe(context.Background(), in)
	require.NoError(t, err)

	// 20 frames of 1000 bytes crosses the 16 kB threshold once.
	for i := 0; i < 20; i++ {
		in <- audio.Frame{Data: make([]byte, 1000)}
	}
	close(in)

	var got []string
	for s := range out {
		got = append(got, s)
	}
	assert.Equal(t, []string{Transcript}, got)
}

func TestTranscribe_NoTriggerBelowThreshold(t *testing.T) {
	svc := New()
	in := make(chan audio.Frame, 8)

	out, err := svc.Transcribe(context.Background(), in)
	require.NoError(t, err)

	in <- audio.Frame{Data: make([]byte, 100)}
	close(in)

	var got []string
	for s := range out {
		got = append(got, s)
	}
	assert.Empty(t, got)
}

func TestTranscribe_EndOfInputEndsOutput(t *testing.T) {
	svc := New()
	in := make(chan audio.Frame)
	out, err := svc.Transcribe(context.Background(), in)
	require.NoError(t, err)

	close(in)

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("output did not close after input end")
	}
}

func TestTranscribe_Cancellation(t *testing.T) {
	svc := New()
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan audio.Frame)

	out, err := svc.Transcribe(ctx, in)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("output did not close after cancel")
	}
}
