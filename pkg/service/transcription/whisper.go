package transcription

import (
	"context"
	"math"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

// Whisper transcribes audio through the OpenAI transcription API
type Whisper struct {
	client *openai.Client
	model  string
}

var _ interfaces.Transcriber = &Whisper{}

type WhisperOption func(*whisperConfig)

type whisperConfig struct {
	baseURL string
	model   string
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func WithBaseURL(url string) WhisperOption {
	return func(c *whisperConfig) {
		c.baseURL = url
	}
}

func WithModel(name string) WhisperOption {
	return func(c *whisperConfig) {
		c.model = name
	}
}

func NewWhisper(apiKey string, opts ...WhisperOption) (*Whisper, error) {
	if apiKey == "" {
		return nil, goerr.New("OpenAI API key is required for transcription")
	}

	cfg := &whisperConfig{model: openai.Whisper1}
	for _, opt := range opts {
		opt(cfg)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}

	return &Whisper{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.model,
	}, nil
}

func (w *Whisper) Transcribe(ctx context.Context, path string, language string) (*model.Transcription, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, model.NewCapabilityError(model.CapabilityTranscription,
			goerr.Wrap(err, "whisper transcription failed", goerr.V("path", path)))
	}

	result := &model.Transcription{
		FullText: strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]*model.TranscriptionSegment, 0, len(resp.Segments)),
	}
	if result.Language == "" {
		result.Language = language
	}

	for _, seg := range resp.Segments {
		s := &model.TranscriptionSegment{
			Text:      strings.TrimSpace(seg.Text),
			StartTime: seg.Start,
			EndTime:   seg.End,
		}
		if seg.AvgLogprob != 0 {
			c := math.Exp(seg.AvgLogprob)
			s.Confidence = &c
		}
		result.Segments = append(result.Segments, s)
	}

	logging.From(ctx).Debug("whisper transcription done",
		"path", path,
		"segments", len(result.Segments),
		"language", result.Language)

	return result, nil
}
