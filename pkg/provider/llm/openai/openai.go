// Package openai provides an OpenAI-backed LLM stage using the official Go
// SDK's streaming chat completions.
package openai

import (
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/pkg/provider/llm"
)

const (
	defaultModel = "gpt-4o-mini"

	systemPrompt = "You are a helpful voice assistant in a realtime audio room. " +
		"Keep responses short and conversational; they will be spoken aloud."
)

// Service implements llm.Service backed by OpenAI chat completions. It
// maintains its own conversation history; turn boundary is one input text
// per turn.
type Service struct {
	client  oai.Client
	model   string
	history []oai.ChatCompletionMessageParamUnion
}

// New creates a new OpenAI Service. apiKey must be non-empty.
func New(apiKey string, model string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	client := oai.NewClient(option.WithAPIKey(apiKey))
	return &Service{
		client:  client,
		model:   model,
		history: []oai.ChatCompletionMessageParamUnion{oai.SystemMessage(systemPrompt)},
	}, nil
}

var _ llm.Service = (*Service)(nil)

// ChatStream implements llm.Service.
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
	s.history = append(s.history, oai.UserMessage(userText))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(s.model),
		Messages: s.history,
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		chunk := stream.Current()
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

	if err := stream.Err(); err != nil {
		logging.Warn(ctx, "OpenAI completion stream failed", zap.Error(err))
		return false
	}

	s.history = append(s.history, oai.AssistantMessage(reply.String()))
	return true
}
