package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/internal/v1/config"
)

func TestEchoAgent_Passthrough(t *testing.T) {
	a := NewEchoAgent()
	in := make(chan audio.Frame, 3)
	in <- audio.Frame{Data: []byte("1")}
	in <- audio.Frame{Data: []byte("2")}
	in <- audio.Frame{Data: []byte("3")}
	close(in)

	out, err := a.ProcessAudioStream(context.Background(), in)
	require.NoError(t, err)

	var got []string
	for f := range out {
		got = append(got, string(f.Data))
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestConversationalAgent_MockChain(t *testing.T) {
	reg := NewRegistry(testConfig())
	a, err := reg.Get("mock")
	require.NoError(t, err)

	in := make(chan audio.Frame, 32)
	out, err := a.ProcessAudioStream(context.Background(), in)
	require.NoError(t, err)

	// Push > 16 kB so the mock STT detects one utterance.
	for i := 0; i < 20; i++ {
		in <- audio.Frame{Data: make([]byte, 1000)}
	}
	close(in)

	var frames []audio.Frame
	deadline := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-out:
			if !ok {
				require.NotEmpty(t, frames, "mock pipeline must synthesize at least one frame")
				for _, fr := range frames {
					assert.NotEmpty(t, fr.Data)
				}
				return
			}
			frames = append(frames, f)
		case <-deadline:
			t.Fatal("pipeline did not produce output in time")
		}
	}
}

func TestConversationalAgent_EndToEndCancellation(t *testing.T) {
	reg := NewRegistry(testConfig())
	a, err := reg.Get("mock")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan audio.Frame)

	out, err := a.ProcessAudioStream(ctx, in)
	require.NoError(t, err)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("output did not close after cancellation")
		}
	}
}

func TestRegistry_Fallbacks(t *testing.T) {
	reg := NewRegistry(testConfig())

	// Unknown names fall back to the mock agent.
	a, err := reg.Get("mock-conversation")
	require.NoError(t, err)
	_, isConversational := a.(*ConversationalAgent)
	assert.True(t, isConversational)

	// "default" resolves the configured provider.
	a, err = reg.Get("default")
	require.NoError(t, err)
	assert.NotNil(t, a)

	// Echo is always present.
	a, err = reg.Get("echo")
	require.NoError(t, err)
	_, isEcho := a.(*EchoAgent)
	assert.True(t, isEcho)
}

func TestRegistry_FreshInstancePerGet(t *testing.T) {
	reg := NewRegistry(testConfig())

	a1, err := reg.Get("mock")
	require.NoError(t, err)
	a2, err := reg.Get("mock")
	require.NoError(t, err)

	assert.NotSame(t, a1, a2, "each attachment gets its own agent instance")
}

func TestRegistry_NoCredentialAgentsAbsent(t *testing.T) {
	reg := NewRegistry(testConfig())
	assert.ElementsMatch(t, []string{"echo", "mock"}, reg.Names())
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultAgentProvider: "mock",
		SampleRate:           16000,
		FrameDurationMs:      20,
	}
}
