package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/service/audio"
	"github.com/secmon-lab/meetscribe/pkg/service/transcription"
	"github.com/urfave/cli/v3"
)

// Transcription holds flags of the speech-to-text backend and the audio tools
type Transcription struct {
	apiKey         string
	baseURL        string
	model          string
	ffmpeg         string
	ffprobe        string
	chunkThreshold float64
}

func (x *Transcription) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key for Whisper transcription",
			Category:    "Transcription",
			Sources:     cli.EnvVars("MEETSCRIBE_OPENAI_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible transcription endpoint",
			Category:    "Transcription",
			Sources:     cli.EnvVars("MEETSCRIBE_OPENAI_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.StringFlag{
			Name:        "whisper-model",
			Usage:       "Transcription model name",
			Category:    "Transcription",
			Value:       "whisper-1",
			Sources:     cli.EnvVars("MEETSCRIBE_WHISPER_MODEL"),
			Destination: &x.model,
		},
		&cli.StringFlag{
			Name:        "ffmpeg",
			Usage:       "Path to the ffmpeg binary",
			Category:    "Transcription",
			Value:       "ffmpeg",
			Sources:     cli.EnvVars("MEETSCRIBE_FFMPEG"),
			Destination: &x.ffmpeg,
		},
		&cli.StringFlag{
			Name:        "ffprobe",
			Usage:       "Path to the ffprobe binary",
			Category:    "Transcription",
			Value:       "ffprobe",
			Sources:     cli.EnvVars("MEETSCRIBE_FFPROBE"),
			Destination: &x.ffprobe,
		},
		&cli.FloatFlag{
			Name:        "chunk-threshold",
			Usage:       "Recordings longer than this many seconds are transcribed in windows",
			Category:    "Transcription",
			Value:       transcription.DefaultChunkThreshold,
			Sources:     cli.EnvVars("MEETSCRIBE_CHUNK_THRESHOLD"),
			Destination: &x.chunkThreshold,
		},
	}
}

func (x Transcription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("api_key.len", len(x.apiKey)),
		slog.String("base_url", x.baseURL),
		slog.String("model", x.model),
		slog.Float64("chunk_threshold", x.chunkThreshold),
	)
}

// AudioProcessor returns the ffmpeg backed processor used for probing and splitting
func (x *Transcription) AudioProcessor() *audio.Processor {
	return audio.NewProcessor(
		audio.WithFFmpeg(x.ffmpeg),
		audio.WithFFprobe(x.ffprobe),
	)
}

// Configure builds a Whisper transcriber that splits long recordings with processor
func (x *Transcription) Configure(processor interfaces.AudioProcessor) (interfaces.Transcriber, error) {
	if x.apiKey == "" {
		return nil, goerr.Wrap(ErrMissingArgument, "openai-api-key is required for transcription")
	}
	if x.chunkThreshold <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "chunk threshold must be positive", goerr.V(ValueKey, x.chunkThreshold))
	}

	opts := []transcription.WhisperOption{transcription.WithModel(x.model)}
	if x.baseURL != "" {
		opts = append(opts, transcription.WithBaseURL(x.baseURL))
	}
	whisper, err := transcription.NewWhisper(x.apiKey, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Whisper transcriber")
	}

	return transcription.NewChunked(whisper, processor, transcription.WithChunkThreshold(x.chunkThreshold)), nil
}
