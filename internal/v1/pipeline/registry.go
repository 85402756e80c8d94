package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/config"
	"github.com/voxhall/voxhall/internal/v1/logging"
	llmgemini "github.com/voxhall/voxhall/pkg/provider/llm/gemini"
	llmmock "github.com/voxhall/voxhall/pkg/provider/llm/mock"
	llmopenai "github.com/voxhall/voxhall/pkg/provider/llm/openai"
	sttdeepgram "github.com/voxhall/voxhall/pkg/provider/stt/deepgram"
	sttgoogle "github.com/voxhall/voxhall/pkg/provider/stt/google"
	sttmock "github.com/voxhall/voxhall/pkg/provider/stt/mock"
	ttselevenlabs "github.com/voxhall/voxhall/pkg/provider/tts/elevenlabs"
	ttsgoogle "github.com/voxhall/voxhall/pkg/provider/tts/google"
	ttsmock "github.com/voxhall/voxhall/pkg/provider/tts/mock"
)

// Factory builds a fresh Agent instance. Agents hold per-conversation state
// (LLM history, stage buffers), so every attachment gets its own instance.
type Factory func() (Agent, error)

// Registry maps agent names to factories.
type Registry struct {
	defaultName string
	factories   map[string]Factory
}

// NewRegistry builds the agent registry from configuration. The echo and
// mock agents are always available; provider-backed agents are registered
// when their credentials exist.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		defaultName: cfg.DefaultAgentProvider,
		factories:   make(map[string]Factory),
	}

	r.Register("echo", func() (Agent, error) {
		return NewEchoAgent(), nil
	})

	r.Register("mock", func() (Agent, error) {
		return NewConversationalAgent(sttmock.New(), llmmock.New(), ttsmock.New()), nil
	})

	// The Google agent needs Gemini for the LLM stage and a project for the
	// Speech recognizer path.
	if cfg.GeminiAPIKey != "" && cfg.GoogleProjectID != "" {
		geminiKey := cfg.GeminiAPIKey
		r.Register("google", func() (Agent, error) {
			sttSvc, err := sttgoogle.New(sttgoogle.Config{
				ProjectID:       cfg.GoogleProjectID,
				CredentialsJSON: cfg.GoogleCredentialsJSON,
				SampleRate:      int(cfg.SampleRate),
			})
			if err != nil {
				return nil, fmt.Errorf("google agent: %w", err)
			}
			llmSvc, err := llmgemini.New(geminiKey, "")
			if err != nil {
				return nil, fmt.Errorf("google agent: %w", err)
			}
			ttsSvc, err := ttsgoogle.New(ttsgoogle.Config{
				CredentialsJSON: cfg.GoogleCredentialsJSON,
				ProjectID:       cfg.GoogleProjectID,
				SampleRate:      int(cfg.SampleRate),
			})
			if err != nil {
				return nil, fmt.Errorf("google agent: %w", err)
			}
			return NewConversationalAgent(sttSvc, llmSvc, ttsSvc), nil
		})
		logging.Info(context.Background(), "Google agent registered")
	}

	if cfg.OpenAIAPIKey != "" && cfg.DeepgramAPIKey != "" && cfg.ElevenLabsAPIKey != "" {
		r.Register("openai", func() (Agent, error) {
			sttSvc, err := sttdeepgram.New(cfg.DeepgramAPIKey, sttdeepgram.WithSampleRate(int(cfg.SampleRate)))
			if err != nil {
				return nil, fmt.Errorf("openai agent: %w", err)
			}
			llmSvc, err := llmopenai.New(cfg.OpenAIAPIKey, "")
			if err != nil {
				return nil, fmt.Errorf("openai agent: %w", err)
			}
			ttsSvc, err := ttselevenlabs.New(cfg.ElevenLabsAPIKey)
			if err != nil {
				return nil, fmt.Errorf("openai agent: %w", err)
			}
			return NewConversationalAgent(sttSvc, llmSvc, ttsSvc), nil
		})
		logging.Info(context.Background(), "OpenAI agent registered")
	}

	return r
}

// Register adds a named factory, replacing any prior registration.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get resolves an agent name to a fresh Agent instance. "default" resolves
// through the configured default provider; unknown names fall back to the
// mock agent, then echo.
func (r *Registry) Get(name string) (Agent, error) {
	if name == "default" {
		name = r.defaultName
	}

	f, ok := r.factories[name]
	if !ok {
		logging.Warn(context.Background(), "Unknown agent name, falling back",
			zap.String("name", name))
		if f, ok = r.factories["mock"]; !ok {
			f = r.factories["echo"]
		}
	}
	if f == nil {
		return nil, fmt.Errorf("pipeline: no agent registered for %q", name)
	}
	return f()
}

// Names returns the registered agent names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
