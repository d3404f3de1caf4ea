package embedding_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/service/embedding"
)

// mockLLMClient returns a vector whose first element is the input length
type mockLLMClient struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, errors.New("not supported")
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	c.mu.Lock()
	c.batches = append(c.batches, input)
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float64, len(input))
	for i, s := range input {
		v := make([]float64, dimension)
		v[0] = float64(len(s))
		out[i] = v
	}
	return out, nil
}

func TestEmbed(t *testing.T) {
	llm := &mockLLMClient{}
	e, err := embedding.New(llm)
	gt.NoError(t, err).Required()

	v, err := e.Embed(context.Background(), "hello")
	gt.NoError(t, err).Required()
	gt.Array(t, v).Length(model.EmbeddingDimension)
	gt.Number(t, v[0]).Equal(float32(5))
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	llm := &mockLLMClient{}
	e, err := embedding.New(llm)
	gt.NoError(t, err).Required()

	v, err := e.Embed(context.Background(), "   ")
	gt.NoError(t, err).Required()
	gt.Array(t, v).Length(model.EmbeddingDimension)
	for _, x := range v {
		gt.Number(t, x).Equal(float32(0))
	}
	gt.Array(t, llm.batches).Length(0)
}

func TestEmbed_TruncatesInput(t *testing.T) {
	llm := &mockLLMClient{}
	e, err := embedding.New(llm)
	gt.NoError(t, err).Required()

	v, err := e.Embed(context.Background(), strings.Repeat("x", 9000))
	gt.NoError(t, err).Required()
	gt.Number(t, v[0]).Equal(float32(embedding.MaxInputLength))
}

func TestEmbedBatch_PreservesOrderAcrossBatches(t *testing.T) {
	llm := &mockLLMClient{}
	e, err := embedding.New(llm, embedding.WithBatchSize(2), embedding.WithDimension(4))
	gt.NoError(t, err).Required()

	texts := []string{"a", "bb", "", "dddd", "eeeee"}
	vectors, err := e.EmbedBatch(context.Background(), texts)
	gt.NoError(t, err).Required()
	gt.Array(t, vectors).Length(len(texts)).Required()

	for i, text := range texts {
		gt.Array(t, vectors[i]).Length(4)
		gt.Number(t, vectors[i][0]).Equal(float32(len(text)))
	}
	// four non-empty texts in batches of two
	gt.Array(t, llm.batches).Length(2)
}

func TestEmbedBatch_ProviderFailure(t *testing.T) {
	e, err := embedding.New(&mockLLMClient{err: errors.New("down")})
	gt.NoError(t, err).Required()

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	gt.Error(t, err).Is(model.ErrExternalCapability)
}
