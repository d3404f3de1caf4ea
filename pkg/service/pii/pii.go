package pii

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

type detector struct {
	piiType types.PIIType
	pattern *regexp.Regexp
}

// detectors run in this order; on equal spans the earlier detector wins
var detectors = []detector{
	{types.PIITypeEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{types.PIITypeCreditCard, regexp.MustCompile(`\b(?:\d{4}[-.\s]?){3}\d{4}\b`)},
	{types.PIITypePhone, regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\([2-9]\d{2}\)|\b[2-9]\d{2})[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{types.PIITypeSSN, regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`)},
	{types.PIITypeIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{types.PIITypeAPIKey, regexp.MustCompile(`(?i)\b(?:sk-|api[-_]?key[-_]?)[a-zA-Z0-9]{20,}\b`)},
}

// Redactor detects PII with regular expressions and, when an LLM client is configured,
// a model pass for context-dependent entities such as names and addresses
type Redactor struct {
	llm        gollem.LLMClient
	chunkChars int
}

var _ interfaces.PIIRedactor = &Redactor{}

type Option func(*Redactor)

// WithLLM enables model-based detection
func WithLLM(client gollem.LLMClient) Option {
	return func(r *Redactor) {
		r.llm = client
	}
}

// WithChunkSize sets the maximum number of bytes sent to the model per request
func WithChunkSize(n int) Option {
	return func(r *Redactor) {
		r.chunkChars = n
	}
}

func New(opts ...Option) *Redactor {
	r := &Redactor{chunkChars: 10000}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fingerprint returns the SHA-256 hex digest of text
func (r *Redactor) Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (r *Redactor) Redact(ctx context.Context, text string) (*model.RedactionResult, error) {
	entities := DetectRegex(text)

	if r.llm != nil {
		found, err := r.detectWithLLM(ctx, text)
		if err != nil {
			logging.From(ctx).Warn("LLM PII detection failed, using regex only", "error", err.Error())
		} else {
			entities = append(entities, found...)
		}
	}

	entities = Merge(entities)
	result := &model.RedactionResult{
		RedactedText:        Apply(text, entities),
		OriginalFingerprint: r.Fingerprint(text),
		Entities:            entities,
	}

	if len(entities) > 0 {
		logging.From(ctx).Info("transcript redacted",
			"fingerprint", result.OriginalFingerprint[:16],
			"entities_redacted", len(entities))
	}
	return result, nil
}

// DetectRegex returns every pattern match in text
func DetectRegex(text string) []*model.PIIEntity {
	var entities []*model.PIIEntity
	for _, d := range detectors {
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			entities = append(entities, &model.PIIEntity{
				Type:       d.piiType,
				Start:      loc[0],
				End:        loc[1],
				Confidence: 1,
			})
		}
	}
	return entities
}

// Merge drops entities that overlap an earlier-starting or longer entity, returning
// non-overlapping spans ordered by start
func Merge(entities []*model.PIIEntity) []*model.PIIEntity {
	sorted := make([]*model.PIIEntity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End-sorted[i].Start > sorted[j].End-sorted[j].Start
	})

	merged := make([]*model.PIIEntity, 0, len(sorted))
	for _, e := range sorted {
		if e.End <= e.Start {
			continue
		}
		if n := len(merged); n > 0 && e.Start < merged[n-1].End {
			continue
		}
		merged = append(merged, e)
	}
	return merged
}

// Apply replaces the spans with their placeholders, working right to left so that
// earlier offsets stay valid. Spans must not overlap.
func Apply(text string, entities []*model.PIIEntity) string {
	if len(entities) == 0 {
		return text
	}

	ordered := make([]*model.PIIEntity, len(entities))
	copy(ordered, entities)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	redacted := text
	for _, e := range ordered {
		if e.Start < 0 || e.End > len(redacted) {
			continue
		}
		redacted = redacted[:e.Start] + e.Type.Placeholder() + redacted[e.End:]
	}
	return redacted
}

// containsPlaceholder reports whether text was already redacted
func containsPlaceholder(text string) bool {
	return strings.Contains(text, "_REDACTED]")
}
