// Package stt defines the Service interface for Speech-to-Text pipeline
// stages.
//
// An STT stage consumes a lazy stream of audio frames and emits text
// segments. Segments need not be one-to-one with input frames; the agent
// treats each emitted item as a new utterance chunk. When the input channel
// closes the stage flushes and closes its output; a stage is restartable only
// by constructing a new instance.
//
// Implementations must not swallow cancellation: when ctx is done, the output
// channel closes promptly. Errors encountered mid-stream are signalled by
// closing the output early. A stage that cannot operate at all does not
// return an empty output stream: missing credentials are an error from the
// provider's constructor, and a failed connection is an error from
// Transcribe.
package stt

import (
	"context"

	"github.com/voxhall/voxhall/internal/v1/audio"
)

// Service is the abstraction over any STT backend.
type Service interface {
	// Transcribe starts consuming frames and returns the channel of text
	// segments. The returned channel is closed when the input ends, ctx is
	// cancelled, or the backend fails. Returns a non-nil error only if the
	// stream cannot be started.
	Transcribe(ctx context.Context, frames <-chan audio.Frame) (<-chan string, error)
}
