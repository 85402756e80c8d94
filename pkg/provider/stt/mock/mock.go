// Package mock provides a credential-free STT stage for tests and the mock
// conversational agent. It has no real speech model: it treats every 16 kB of
// accumulated audio (~0.5 s at 16 kHz s16le) as one detected utterance and
// emits a fixed transcript for it.
package mock

import (
	"context"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/pkg/provider/stt"
)

// TriggerBytes is the cumulative audio size that counts as one utterance.
const TriggerBytes = 16000

// Transcript is the text emitted for every detected utterance.
const Transcript = "Hello world"

// Service implements stt.Service with byte-count speech detection.
type Service struct{}

// New returns a new mock STT stage.
func New() *Service {
	return &Service{}
}

var _ stt.Service = (*Service)(nil)

// Transcribe implements stt.Service.
func (s *Service) Transcribe(ctx context.Context, frames <-chan audio.Frame) (<-chan string, error) {
	out := make(chan string, 8)
	go func() {
		defer close(out)
		byteCount := 0
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					return
				}
				byteCount += len(f.Data)
				if byteCount > TriggerBytes {
					byteCount = 0
					select {
					case out <- Transcript:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
