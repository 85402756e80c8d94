// Package deepgram provides a Deepgram-backed STT stage using the Deepgram
// streaming WebSocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Deepgram Service.
type Option func(*Service)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(s *Service) {
		s.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(s *Service) {
		s.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(s *Service) {
		s.sampleRate = rate
	}
}

// Service implements stt.Service backed by the Deepgram streaming API.
type Service struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

// New creates a new Deepgram Service. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Service, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	s := &Service{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

var _ stt.Service = (*Service)(nil)

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcribe implements stt.Service. It opens a WebSocket to Deepgram, feeds
// it the PCM frames, and emits the final transcripts.
func (s *Service) Transcribe(ctx context.Context, frames <-chan audio.Frame) (<-chan string, error) {
	wsURL, err := s.buildURL()
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+s.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	out := make(chan string, 64)

	// Writer: pump frames into the socket; on input end, ask Deepgram to
	// flush pending audio.
	go func() {
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
					return
				}
				if err := conn.Write(ctx, websocket.MessageBinary, f.Data); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader: dispatch final transcripts until the server closes the stream.
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "session closed")

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				// Normal close or context cancellation.
				return
			}

			text, ok := parseResponse(msg)
			if !ok {
				continue
			}
			select {
			case out <- text:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// buildURL constructs the Deepgram streaming endpoint URL.
func (s *Service) buildURL() (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", s.model)
	q.Set("language", s.language)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(s.sampleRate))
	q.Set("channels", "1")

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseResponse parses a raw Deepgram WebSocket message. Only non-empty
// final results are surfaced; interim guesses are skipped.
func parseResponse(data []byte) (string, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", false
	}
	if resp.Type != "Results" || !resp.IsFinal {
		return "", false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return "", false
	}
	text := resp.Channel.Alternatives[0].Transcript
	if text == "" {
		return "", false
	}
	return text, true
}
