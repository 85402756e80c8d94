// Package google provides a Google Cloud Speech-to-Text v2 backed STT stage
// using the streaming recognition API.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/pkg/provider/stt"
	"go.uber.org/zap"
)

const (
	defaultLanguageCode = "en-US"
	defaultModel        = "long"
	defaultSampleRate   = 16000
)

// Config carries the Google credentials and recognition settings.
type Config struct {
	// ProjectID is the Google Cloud project hosting the recognizer.
	ProjectID string
	// CredentialsJSON is the service account key material. Empty means
	// ambient credentials (ADC).
	CredentialsJSON string
	LanguageCode    string
	Model           string
	SampleRate      int
}

// Service implements stt.Service backed by Google Cloud Speech v2.
type Service struct {
	cfg  Config
	opts []option.ClientOption
}

// New creates a new Google STT Service. ProjectID must be non-empty.
func New(cfg Config) (*Service, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("google stt: ProjectID must not be empty")
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = defaultLanguageCode
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	opts = append(opts, option.WithQuotaProject(cfg.ProjectID))

	return &Service{cfg: cfg, opts: opts}, nil
}

var _ stt.Service = (*Service)(nil)

// recognizerName addresses the ad-hoc recognizer of the project.
func (s *Service) recognizerName() string {
	return fmt.Sprintf("projects/%s/locations/global/recognizers/_", s.cfg.ProjectID)
}

func (s *Service) streamingConfig() *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   int32(s.cfg.SampleRate),
					AudioChannelCount: 1,
				},
			},
			Features: &speechpb.RecognitionFeatures{
				EnableAutomaticPunctuation: true,
			},
			LanguageCodes: []string{s.cfg.LanguageCode},
			Model:         s.cfg.Model,
		},
		StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
			InterimResults: false,
		},
	}
}

// Transcribe implements stt.Service. It opens one long-lived streaming
// recognize session, feeds every frame, and emits final transcripts.
func (s *Service) Transcribe(ctx context.Context, frames <-chan audio.Frame) (<-chan string, error) {
	client, err := speech.NewClient(ctx, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("google stt: new client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("google stt: open stream: %w", err)
	}

	// The first request carries the recognizer and config; audio follows.
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: s.recognizerName(),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: s.streamingConfig(),
		},
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("google stt: send config: %w", err)
	}

	out := make(chan string, 64)

	// Writer: pump frames into the gRPC stream.
	go func() {
		defer func() { _ = stream.CloseSend() }()
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					return
				}
				req := &speechpb.StreamingRecognizeRequest{
					Recognizer: s.recognizerName(),
					StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
						Audio: f.Data,
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

	// Reader: surface final transcripts until the stream ends.
	go func() {
		defer close(out)
		defer client.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					logging.Warn(ctx, "Google STT stream ended", zap.Error(err))
				}
				return
			}
			for _, result := range resp.GetResults() {
				if !result.GetIsFinal() || len(result.GetAlternatives()) == 0 {
					continue
				}
				text := result.GetAlternatives()[0].GetTranscript()
				if text == "" {
					continue
				}
				select {
				case out <- text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
