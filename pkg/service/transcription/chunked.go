package transcription

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

// DefaultChunkThreshold is the duration in seconds above which audio is split
const DefaultChunkThreshold = 600.0

// Chunked splits long recordings into windows and stitches the per-window results
// into one ordered transcription
type Chunked struct {
	inner     interfaces.Transcriber
	audio     interfaces.AudioProcessor
	threshold float64
}

var _ interfaces.Transcriber = &Chunked{}

type ChunkedOption func(*Chunked)

// WithChunkThreshold sets both the split threshold and the window length in seconds
func WithChunkThreshold(seconds float64) ChunkedOption {
	return func(c *Chunked) {
		c.threshold = seconds
	}
}

func NewChunked(inner interfaces.Transcriber, audio interfaces.AudioProcessor, opts ...ChunkedOption) *Chunked {
	c := &Chunked{
		inner:     inner,
		audio:     audio,
		threshold: DefaultChunkThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chunked) Transcribe(ctx context.Context, path string, language string) (*model.Transcription, error) {
	duration, err := c.audio.Duration(ctx, path)
	if err != nil {
		return nil, err
	}

	if duration <= c.threshold {
		result, err := c.inner.Transcribe(ctx, path, language)
		if err != nil {
			return nil, err
		}
		if result.Duration == 0 {
			result.Duration = duration
		}
		return result, nil
	}

	windows, cleanup, err := c.audio.Split(ctx, path, c.threshold)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	stitched := &model.Transcription{
		Language: language,
		Duration: duration,
	}
	var texts []string
	offset := 0.0

	for i, w := range windows {
		logging.From(ctx).Info("transcribing window",
			"index", i+1,
			"total", len(windows))

		part, err := c.inner.Transcribe(ctx, w.Path, language)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to transcribe window", goerr.V("index", i))
		}

		stitched.Segments = append(stitched.Segments, Shift(part.Segments, offset)...)
		if part.FullText != "" {
			texts = append(texts, part.FullText)
		}
		if stitched.Language == "" {
			stitched.Language = part.Language
		}
		offset = nextOffset(part.Segments, offset, w.Duration)
	}

	stitched.FullText = strings.Join(texts, " ")
	return stitched, nil
}

// Shift returns copies of segments moved forward by offset seconds
func Shift(segments []*model.TranscriptionSegment, offset float64) []*model.TranscriptionSegment {
	shifted := make([]*model.TranscriptionSegment, len(segments))
	for i, s := range segments {
		c := *s
		c.StartTime += offset
		c.EndTime += offset
		shifted[i] = &c
	}
	return shifted
}

// nextOffset is the end of the window's last segment, or the window's nominal
// length past the current offset when the window produced no segments
func nextOffset(segments []*model.TranscriptionSegment, offset, windowDuration float64) float64 {
	if len(segments) == 0 {
		return offset + windowDuration
	}
	return segments[len(segments)-1].EndTime + offset
}
