// Package pipeline composes STT/LLM/TTS stages into agents.
//
// An agent is a stream transform: it consumes the mixed inbound audio of a
// room and yields synthesized response audio. Stages and agents are lazy and
// single-use; restarting one means building a new instance.
package pipeline

import (
	"context"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/pkg/provider/llm"
	"github.com/voxhall/voxhall/pkg/provider/stt"
	"github.com/voxhall/voxhall/pkg/provider/tts"
)

// Agent is the high-level bidirectional transform run by an agent loop.
type Agent interface {
	// ProcessAudioStream consumes user audio and yields response audio. The
	// output channel closes when the input ends, ctx is cancelled, or a
	// stage fails. Returns a non-nil error only if the pipeline cannot be
	// started.
	ProcessAudioStream(ctx context.Context, in <-chan audio.Frame) (<-chan audio.Frame, error)
}

// EchoAgent echoes back the audio it receives. Useful for testing latency
// and the fan-out path without any provider credentials.
type EchoAgent struct{}

// NewEchoAgent returns a passthrough agent.
func NewEchoAgent() *EchoAgent {
	return &EchoAgent{}
}

var _ Agent = (*EchoAgent)(nil)

// ProcessAudioStream implements Agent by returning the input stream unchanged.
func (a *EchoAgent) ProcessAudioStream(ctx context.Context, in <-chan audio.Frame) (<-chan audio.Frame, error) {
	return in, nil
}

// ConversationalAgent chains speech recognition, a language model, and
// speech synthesis: audio in, transcribed text, response tokens, audio out.
type ConversationalAgent struct {
	stt stt.Service
	llm llm.Service
	tts tts.Service
}

// NewConversationalAgent composes the three stages into one agent.
func NewConversationalAgent(sttSvc stt.Service, llmSvc llm.Service, ttsSvc tts.Service) *ConversationalAgent {
	return &ConversationalAgent{stt: sttSvc, llm: llmSvc, tts: ttsSvc}
}

var _ Agent = (*ConversationalAgent)(nil)

// ProcessAudioStream implements Agent. The stages connect directly: each
// stage's output channel is the next stage's input, so end-of-input and
// cancellation propagate through the whole chain without extra plumbing.
func (a *ConversationalAgent) ProcessAudioStream(ctx context.Context, in <-chan audio.Frame) (<-chan audio.Frame, error) {
	text, err := a.stt.Transcribe(ctx, in)
	if err != nil {
		return nil, err
	}

	response, err := a.llm.ChatStream(ctx, text)
	if err != nil {
		return nil, err
	}

	return a.tts.Synthesize(ctx, response)
}
