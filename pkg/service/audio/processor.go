package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/secmon-lab/meetscribe/pkg/utils/safe"
)

// DefaultSampleRate is the sample rate of windows cut by Split
const DefaultSampleRate = 16000

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 binaries are configured by the operator
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return out, goerr.Wrap(err, "command failed", goerr.V("stderr", string(ee.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// Processor probes and slices audio with ffprobe and ffmpeg
type Processor struct {
	ffprobe    string
	ffmpeg     string
	sampleRate int
	probeLimit time.Duration
	cutLimit   time.Duration
	run        commandRunner
}

var _ interfaces.AudioProcessor = &Processor{}

type Option func(*Processor)

func WithFFprobe(bin string) Option {
	return func(p *Processor) {
		p.ffprobe = bin
	}
}

func WithFFmpeg(bin string) Option {
	return func(p *Processor) {
		p.ffmpeg = bin
	}
}

func WithSampleRate(rate int) Option {
	return func(p *Processor) {
		p.sampleRate = rate
	}
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		ffprobe:    "ffprobe",
		ffmpeg:     "ffmpeg",
		sampleRate: DefaultSampleRate,
		probeLimit: 30 * time.Second,
		cutLimit:   5 * time.Minute,
		run:        execCommand,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.probeLimit)
	defer cancel()

	out, err := p.run(ctx, p.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, model.NewCapabilityError(model.CapabilityAudio,
			goerr.Wrap(err, "ffprobe failed", goerr.V("path", path)))
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || math.IsNaN(d) || d < 0 {
		return 0, model.NewCapabilityError(model.CapabilityAudio,
			goerr.New("could not parse audio duration", goerr.V("output", string(out))))
	}
	return d, nil
}

// Split cuts path into 16 kHz mono WAV windows written to a temporary directory
func (p *Processor) Split(ctx context.Context, path string, window float64) ([]*interfaces.AudioWindow, func(), error) {
	if window <= 0 {
		return nil, nil, goerr.Wrap(model.ErrValidation, "window must be positive", goerr.V("window", window))
	}

	total, err := p.Duration(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	dir, err := os.MkdirTemp("", "meetscribe-windows-*")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create window directory")
	}
	cleanup := func() { safe.RemoveAll(context.Background(), dir) }

	var windows []*interfaces.AudioWindow
	for i, start := 0, 0.0; start < total; i, start = i+1, start+window {
		length := math.Min(window, total-start)
		out := filepath.Join(dir, fmt.Sprintf("window_%04d.wav", i))

		if err := p.cut(ctx, path, out, start, length); err != nil {
			cleanup()
			return nil, nil, err
		}
		windows = append(windows, &interfaces.AudioWindow{
			Path:     out,
			Start:    start,
			Duration: length,
		})
	}

	logging.From(ctx).Info("audio split into windows",
		"path", path,
		"windows", len(windows),
		"window_seconds", window)

	return windows, cleanup, nil
}

func (p *Processor) cut(ctx context.Context, in, out string, start, length float64) error {
	ctx, cancel := context.WithTimeout(ctx, p.cutLimit)
	defer cancel()

	_, err := p.run(ctx, p.ffmpeg,
		"-y",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-t", strconv.FormatFloat(length, 'f', 3, 64),
		"-i", in,
		"-ar", strconv.Itoa(p.sampleRate),
		"-ac", "1",
		"-acodec", "pcm_s16le",
		out,
	)
	if err != nil {
		return model.NewCapabilityError(model.CapabilityAudio,
			goerr.Wrap(err, "ffmpeg failed", goerr.V("start", start), goerr.V("length", length)))
	}
	return nil
}
