// Package elevenlabs provides an ElevenLabs-backed TTS stage using the
// ElevenLabs streaming WebSocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/pkg/provider/tts"
)

const (
	wsEndpointFmt    = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	defaultVoiceID   = "21m00Tcm4TlvDq8ikWAM"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

// Option is a functional option for configuring the ElevenLabs Service.
type Option func(*Service)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Service) {
		s.model = model
	}
}

// WithVoice sets the voice ID used for synthesis.
func WithVoice(voiceID string) Option {
	return func(s *Service) {
		s.voiceID = voiceID
	}
}

// Service implements tts.Service backed by the ElevenLabs streaming API.
type Service struct {
	apiKey  string
	voiceID string
	model   string
}

// New creates a new ElevenLabs Service. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Service, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	s := &Service{
		apiKey:  apiKey,
		voiceID: defaultVoiceID,
		model:   defaultModel,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

var _ tts.Service = (*Service)(nil)

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// Synthesize implements tts.Service. It opens a WebSocket to ElevenLabs,
// pipes buffered sentences in, and chunks the returned PCM into frames.
func (s *Service) Synthesize(ctx context.Context, text <-chan string) (<-chan audio.Frame, error) {
	wsURL := fmt.Sprintf(wsEndpointFmt, s.voiceID, s.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// Send the initial BOI message to authenticate and configure the stream.
	boi := boiMessage{
		Text: " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey:     s.apiKey,
		OutputFormat: defaultOutputFmt,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	sentences := tts.BufferSentences(ctx, text)
	out := make(chan audio.Frame, 64)

	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		// Reader: decode base64 PCM and chunk into frames.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			var ts uint64
			for {
				_, msg, err := conn.Read(ctx)
				if err != nil {
					return
				}
				var resp audioResponse
				if err := json.Unmarshal(msg, &resp); err != nil {
					continue
				}
				if resp.Audio == "" {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err != nil {
					continue
				}
				for _, f := range audio.ChunkPCM(pcm, tts.FrameBytes, ts, audio.DefaultFrameDurationMs) {
					select {
					case out <- f:
					case <-ctx.Done():
						return
					}
					ts = f.TimestampMs + uint64(f.DurationMs)
				}
			}
		}()

		// Writer: pipe sentences to ElevenLabs.
		vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
		for {
			select {
			case sentence, ok := <-sentences:
				if !ok {
					// Input ended — send flush command and drain remaining audio.
					flush := textMessage{Text: ""}
					flushBytes, _ := json.Marshal(flush)
					_ = conn.Write(ctx, websocket.MessageText, flushBytes)
					<-readDone
					return
				}
				if sentence == "" {
					continue
				}
				payload := textMessage{Text: sentence + " ", VoiceSettings: vs}
				// Only send voice settings on the first chunk.
				vs = nil
				msgBytes, _ := json.Marshal(payload)
				if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
