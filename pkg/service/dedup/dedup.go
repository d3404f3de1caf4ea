package dedup

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

const (
	DefaultThreshold = 0.85
	DefaultLimit     = 5
)

// Candidate is a prior task similar to the text under examination
type Candidate struct {
	TaskID     model.TaskID
	Title      string
	Similarity float64
}

// Engine finds semantically similar prior tasks of the same user
type Engine struct {
	tasks    interfaces.TaskRepository
	embedder interfaces.Embedder
}

func New(tasks interfaces.TaskRepository, embedder interfaces.Embedder) *Engine {
	return &Engine{
		tasks:    tasks,
		embedder: embedder,
	}
}

type findConfig struct {
	threshold float64
	limit     int
	exclude   []model.TaskID
	embedding []float32
}

type FindOption func(*findConfig)

func WithThreshold(threshold float64) FindOption {
	return func(c *findConfig) {
		c.threshold = threshold
	}
}

func WithLimit(limit int) FindOption {
	return func(c *findConfig) {
		c.limit = limit
	}
}

// WithExclude keeps the given tasks out of the candidates
func WithExclude(ids ...model.TaskID) FindOption {
	return func(c *findConfig) {
		c.exclude = append(c.exclude, ids...)
	}
}

// WithEmbedding skips embedding the text and searches with the given vector
func WithEmbedding(v []float32) FindOption {
	return func(c *findConfig) {
		c.embedding = v
	}
}

// BuildText is the text embedded for a task
func BuildText(title, description string) string {
	if description == "" {
		return title
	}
	return title + "\n" + description
}

// FindCandidates returns up to limit tasks of the user whose similarity to text is at
// least the threshold, most similar first.
func (e *Engine) FindCandidates(ctx context.Context, text string, userID model.UserID, opts ...FindOption) ([]*Candidate, error) {
	cfg := &findConfig{
		threshold: DefaultThreshold,
		limit:     DefaultLimit,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.limit <= 0 {
		return nil, nil
	}

	vector := cfg.embedding
	if len(vector) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		v, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed task text")
		}
		vector = v
	}

	similar, err := e.tasks.FindSimilar(ctx, userID, vector, cfg.limit, cfg.exclude...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search similar tasks", goerr.V("user_id", userID))
	}

	candidates := make([]*Candidate, 0, len(similar))
	for _, s := range similar {
		if s.Similarity < cfg.threshold {
			continue
		}
		candidates = append(candidates, &Candidate{
			TaskID:     s.Task.ID,
			Title:      s.Task.Title,
			Similarity: s.Similarity,
		})
	}
	return candidates, nil
}

// MarkDuplicate annotates task with the best candidate. Candidates are never modified.
func MarkDuplicate(task *model.Task, candidates []*Candidate) bool {
	if len(candidates) == 0 {
		return false
	}

	best := candidates[0]
	score := best.Similarity
	task.IsDuplicate = true
	task.DuplicateOfID = best.TaskID
	task.SimilarityScore = &score
	return true
}

// Check embeds task when it has no embedding, searches its user's prior tasks and marks
// it as a duplicate. Failures are logged and reported as no duplicates.
func (e *Engine) Check(ctx context.Context, task *model.Task) []*Candidate {
	logger := logging.From(ctx)

	if len(task.Embedding) == 0 {
		v, err := e.embedder.Embed(ctx, BuildText(task.Title, task.Description))
		if err != nil {
			logger.Warn("failed to embed task for duplicate check",
				"task_id", task.ID, "error", err.Error())
			return nil
		}
		task.Embedding = v
	}

	candidates, err := e.FindCandidates(ctx, "", task.UserID,
		WithEmbedding(task.Embedding), WithExclude(task.ID))
	if err != nil {
		logger.Warn("duplicate check failed",
			"task_id", task.ID, "error", err.Error())
		return nil
	}

	MarkDuplicate(task, candidates)
	return candidates
}
