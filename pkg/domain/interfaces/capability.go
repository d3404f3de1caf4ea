package interfaces

import (
	"context"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// Transcriber converts an audio resource into ordered, timed text segments
type Transcriber interface {
	// Transcribe transcribes the audio file at path. An empty language lets the provider detect it.
	Transcribe(ctx context.Context, path string, language string) (*model.Transcription, error)
}

// Diarizer assigns speaker turns to an audio resource
type Diarizer interface {
	Diarize(ctx context.Context, path string) ([]*model.SpeakerTurn, error)
}

// PIIRedactor detects sensitive spans and replaces them with placeholders
type PIIRedactor interface {
	// Redact returns the redacted text and the fingerprint of the original text
	Redact(ctx context.Context, text string) (*model.RedactionResult, error)

	// Fingerprint returns the one-way content hash of text
	Fingerprint(text string) string
}

// TaskExtractor converts free text into candidate action items
type TaskExtractor interface {
	Extract(ctx context.Context, text string) ([]*model.ExtractedTask, error)
}

// Embedder maps text to fixed-length dense vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// AudioWindow is a bounded-duration slice of a recording written to a local file
type AudioWindow struct {
	Path     string
	Start    float64
	Duration float64
}

// AudioProcessor inspects and slices audio files
type AudioProcessor interface {
	// Duration returns the length of the audio file in seconds
	Duration(ctx context.Context, path string) (float64, error)

	// Split cuts the file into sequential non-overlapping windows of at most window seconds.
	// The returned cleanup removes the window files.
	Split(ctx context.Context, path string, window float64) ([]*AudioWindow, func(), error)
}
