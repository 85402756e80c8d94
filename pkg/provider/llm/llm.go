// Package llm defines the Service interface for language-model pipeline
// stages.
//
// An LLM stage accumulates incoming text into conversation turns (the
// boundary is implementation-defined; the mock is one-in / one-out) and emits
// response tokens. The stage maintains its own conversation history across
// turns; restarting means constructing a new instance with fresh history.
package llm

import "context"

// Service is the abstraction over any LLM backend.
type Service interface {
	// ChatStream starts consuming user text and returns the channel of
	// response tokens. The returned channel is closed when the input ends,
	// ctx is cancelled, or the backend fails. Returns a non-nil error only
	// if the stream cannot be started.
	ChatStream(ctx context.Context, text <-chan string) (<-chan string, error)
}
