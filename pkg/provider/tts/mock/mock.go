// Package mock provides a credential-free TTS stage that emits silence
// frames in place of synthesized speech.
package mock

import (
	"context"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/pkg/provider/tts"
)

// FramesPerSentence is the amount of silence emitted per synthesized
// sentence.
const FramesPerSentence = 5

// Service implements tts.Service by emitting silent PCM.
type Service struct{}

// New returns a new mock TTS stage.
func New() *Service {
	return &Service{}
}

var _ tts.Service = (*Service)(nil)

// Synthesize implements tts.Service.
func (s *Service) Synthesize(ctx context.Context, text <-chan string) (<-chan audio.Frame, error) {
	sentences := tts.BufferSentences(ctx, text)

	out := make(chan audio.Frame, 32)
	go func() {
		defer close(out)
		var ts uint64
		for {
			select {
			case _, ok := <-sentences:
				if !ok {
					return
				}
				pcm := make([]byte, FramesPerSentence*tts.FrameBytes)
				for _, f := range audio.ChunkPCM(pcm, tts.FrameBytes, ts, audio.DefaultFrameDurationMs) {
					select {
					case out <- f:
					case <-ctx.Done():
						return
					}
					ts = f.TimestampMs + uint64(f.DurationMs)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
