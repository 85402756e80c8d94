// Package gemini provides a Google Gemini backed LLM stage via
// github.com/mozilla-ai/any-llm-go.
package gemini

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	anyllmgemini "github.com/mozilla-ai/any-llm-go/providers/gemini"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/pkg/provider/llm"
)

const (
	defaultModel = "gemini-2.0-flash"

	systemPrompt = "You are a helpful voice assistant in a realtime audio room. " +
		"Keep responses short and conversational; they will be spoken aloud."
)

// Service implements llm.Service backed by Gemini. It maintains its own
// conversation history across turns; turn boundary is one input text per
// turn.
type Service struct {
	backend anyllmlib.Provider
	model   string
	history []anyllmlib.Message
}

// New creates a new Gemini Service. apiKey must be non-empty.
func New(apiKey string, model string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	backend, err := anyllmgemini.New(anyllmlib.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create backend: %w", err)
	}

	return &Service{
		backend: backend,
		model:   model,
		history: []anyllmlib.Message{{Role: anyllmlib.RoleSystem, Content: systemPrompt}},
	}, nil
}

var _ llm.Service = (*Service)(nil)

// ChatStream implements llm.Service. Each input text is one conversation
// turn; the history accumulates inside the stage goroutine, so the stream is
// single-consumer by construction.
func (s *Service) ChatStream(ctx context.Context, text <-chan string) (<-chan string, error) {
	out := make(chan string, 32)
	go func() {
		defer close(out)
		for {
			select {
			case in, ok := <-text:
				if !ok {
					return
				}
				if strings.TrimSpace(in) == "" {
					continue
				}
				if !s.streamTurn(ctx, in, out) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// streamTurn runs one completion turn. Returns false when the stream should
// end (cancellation or backend failure).
func (s *Service) streamTurn(ctx context.Context, userText string, out chan<- string) bool {
	s.history = append(s.history, anyllmlib.Message{Role: "user", Content: userText})

	params := anyllmlib.CompletionParams{
		Model:    s.model,
		Messages: s.history,
	}

	chunks, errs := s.backend.CompletionStream(ctx, params)

	var reply strings.Builder
	for chunk := range chunks {
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		reply.WriteString(token)
		select {
		case out <- token:
		case <-ctx.Done():
			return false
		}
	}

	if err := <-errs; err != nil {
		logging.Warn(ctx, "Gemini completion stream failed", zap.Error(err))
		return false
	}

	s.history = append(s.history, anyllmlib.Message{Role: "assistant", Content: reply.String()})
	return true
}
