package embedding

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxInputLength is where embedding input is truncated
	MaxInputLength = 8000
	// DefaultBatchSize is the number of texts sent per provider request
	DefaultBatchSize = 100
)

// Embedder generates dense vectors through a gollem LLM client
type Embedder struct {
	llmClient   gollem.LLMClient
	dimension   int
	batchSize   int
	concurrency int
}

var _ interfaces.Embedder = &Embedder{}

type Option func(*Embedder)

func WithDimension(dim int) Option {
	return func(e *Embedder) {
		e.dimension = dim
	}
}

func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		e.batchSize = n
	}
}

// WithConcurrency limits the number of batches in flight
func WithConcurrency(n int) Option {
	return func(e *Embedder) {
		e.concurrency = n
	}
}

func New(llmClient gollem.LLMClient, opts ...Option) (*Embedder, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	e := &Embedder{
		llmClient:   llmClient,
		dimension:   model.EmbeddingDimension,
		batchSize:   DefaultBatchSize,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order. Blank texts get a zero vector without a provider call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))

	// indexes of texts that need the provider
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			result[i] = make([]float32, e.dimension)
			continue
		}
		pending = append(pending, i)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)

	for start := 0; start < len(pending); start += e.batchSize {
		end := min(start+e.batchSize, len(pending))
		batch := pending[start:end]

		eg.Go(func() error {
			inputs := make([]string, len(batch))
			for j, idx := range batch {
				inputs[j] = truncate(texts[idx], MaxInputLength)
			}

			vectors, err := e.llmClient.GenerateEmbedding(ctx, e.dimension, inputs)
			if err != nil {
				return model.NewCapabilityError(model.CapabilityEmbedding,
					goerr.Wrap(err, "failed to generate embeddings", goerr.V("batch_size", len(inputs))))
			}
			if len(vectors) != len(inputs) {
				return model.NewCapabilityError(model.CapabilityEmbedding,
					goerr.New("embedding count mismatch",
						goerr.V("expected", len(inputs)), goerr.V("actual", len(vectors))))
			}

			// each batch writes a disjoint set of indexes
			for j, idx := range batch {
				result[idx] = toFloat32(vectors[j])
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
