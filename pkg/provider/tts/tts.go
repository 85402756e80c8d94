// Package tts defines the Service interface for Text-to-Speech pipeline
// stages.
//
// A TTS stage buffers incoming text until sentence-like punctuation
// (., !, ? or newline) or end of input, synthesizes the buffered sentence,
// and chunks the resulting PCM into fixed-size frames (FrameBytes at 16 kHz
// mono, 20 ms each). Implementations must not swallow cancellation.
package tts

import (
	"context"
	"strings"
	"unicode"

	"github.com/voxhall/voxhall/internal/v1/audio"
)

// FrameBytes is the PCM chunk size of synthesized output frames.
const FrameBytes = 320

// Service is the abstraction over any TTS backend.
type Service interface {
	// Synthesize starts consuming text and returns the channel of audio
	// frames. The returned channel is closed when the input ends, ctx is
	// cancelled, or the backend fails. Returns a non-nil error only if the
	// stream cannot be started.
	Synthesize(ctx context.Context, text <-chan string) (<-chan audio.Frame, error)
}

// isSentenceTerminator reports whether r completes a bufferable sentence.
func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

// BufferSentences groups incoming text fragments into sentence-like units.
// A unit is emitted when a terminator rune is seen or when the input ends
// with a non-empty remainder. Units holding nothing but whitespace and
// terminators (such as a lone ".") are discarded.
//
// The returned channel closes when in closes or ctx is cancelled.
func BufferSentences(ctx context.Context, in <-chan string) <-chan string {
	out := make(chan string, 8)
	go func() {
		defer close(out)
		var b strings.Builder

		flush := func() bool {
			s := strings.TrimSpace(b.String())
			b.Reset()
			if strings.TrimFunc(s, func(r rune) bool {
				return unicode.IsSpace(r) || isSentenceTerminator(r)
			}) == "" {
				return true
			}
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case fragment, ok := <-in:
				if !ok {
					flush()
					return
				}
				for _, r := range fragment {
					b.WriteRune(r)
					if isSentenceTerminator(r) {
						if !flush() {
							return
						}
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
