// Package mock provides a credential-free LLM stage. Turn boundary is
// one-in / one-out: every input text becomes one canned response, streamed
// token by token.
package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxhall/voxhall/pkg/provider/llm"
)

// Service implements llm.Service with a canned response per turn.
type Service struct{}

// New returns a new mock LLM stage.
func New() *Service {
	return &Service{}
}

var _ llm.Service = (*Service)(nil)

// ChatStream implements llm.Service.
func (s *Service) ChatStream(ctx context.Context, text <-chan string) (<-chan string, error) {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		for {
			select {
			case in, ok := <-text:
				if !ok {
					return
				}
				response := fmt.Sprintf("I heard you say %s. That is interesting.", in)
				for _, word := range strings.Fields(response) {
					select {
					case out <- word + " ":
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
