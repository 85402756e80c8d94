// Package google provides a Google Cloud Text-to-Speech backed TTS stage
// using the streaming synthesis API.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/pkg/provider/tts"
	"go.uber.org/zap"
)

const (
	defaultVoice      = "en-US-Chirp-HD-F"
	defaultSampleRate = 16000
)

// Config carries the Google credentials and synthesis settings.
type Config struct {
	// CredentialsJSON is the service account key material. Empty means
	// ambient credentials (ADC).
	CredentialsJSON string
	// ProjectID, when set, is used as the quota project.
	ProjectID  string
	Voice      string
	SampleRate int
}

// Service implements tts.Service backed by Google Cloud Text-to-Speech.
type Service struct {
	cfg  Config
	opts []option.ClientOption
}

// New creates a new Google TTS Service.
func New(cfg Config) (*Service, error) {
	if cfg.CredentialsJSON == "" && cfg.ProjectID == "" {
		return nil, errors.New("google tts: credentials or project id required")
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.ProjectID))
	}

	return &Service{cfg: cfg, opts: opts}, nil
}

var _ tts.Service = (*Service)(nil)

func (s *Service) streamingConfig() *texttospeechpb.StreamingSynthesizeConfig {
	return &texttospeechpb.StreamingSynthesizeConfig{
		Voice: &texttospeechpb.VoiceSelectionParams{
			Name:         s.cfg.Voice,
			LanguageCode: "en-US",
		},
		StreamingAudioConfig: &texttospeechpb.StreamingAudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_PCM,
			SampleRateHertz: int32(s.cfg.SampleRate),
		},
	}
}

// Synthesize implements tts.Service. Buffered sentences are streamed into one
// long-lived synthesis session; returned PCM is chunked into frames.
func (s *Service) Synthesize(ctx context.Context, text <-chan string) (<-chan audio.Frame, error) {
	client, err := texttospeech.NewClient(ctx, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("google tts: new client: %w", err)
	}

	stream, err := client.StreamingSynthesize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("google tts: open stream: %w", err)
	}

	// The first request carries the config; input text follows.
	if err := stream.Send(&texttospeechpb.StreamingSynthesizeRequest{
		StreamingRequest: &texttospeechpb.StreamingSynthesizeRequest_StreamingConfig{
			StreamingConfig: s.streamingConfig(),
		},
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("google tts: send config: %w", err)
	}

	sentences := tts.BufferSentences(ctx, text)
	out := make(chan audio.Frame, 64)

	// Writer: pump sentences into the gRPC stream.
	go func() {
		defer func() { _ = stream.CloseSend() }()
		for {
			select {
			case sentence, ok := <-sentences:
				if !ok {
					return
				}
				req := &texttospeechpb.StreamingSynthesizeRequest{
					StreamingRequest: &texttospeechpb.StreamingSynthesizeRequest_Input{
						Input: &texttospeechpb.StreamingSynthesisInput{
							InputSource: &texttospeechpb.StreamingSynthesisInput_Text{
								Text: sentence,
							},
						},
					},
				}
				if err := stream.Send(req); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reader: chunk synthesized PCM into frames.
	go func() {
		defer close(out)
		defer client.Close()

		var ts uint64
		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					logging.Warn(ctx, "Google TTS stream ended", zap.Error(err))
				}
				return
			}
			pcm := resp.GetAudioContent()
			if len(pcm) == 0 {
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

	return out, nil
}
