package pii_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/pii"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.generateContentFn(ctx, input...)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.generateContentFn(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	response string
	err      error
	calls    int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			c.calls++
			if c.err != nil {
				return nil, c.err
			}
			return &gollem.Response{Texts: []string{c.response}}, nil
		},
	}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func TestRedact_RegexDetectors(t *testing.T) {
	r := pii.New()
	ctx := context.Background()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"email", "mail john.doe@example.com today", "mail [EMAIL_REDACTED] today"},
		{"phone", "call 415-555-0134 now", "call [PHONE_REDACTED] now"},
		{"ssn", "ssn 123-45-6789 on file", "ssn [SSN_REDACTED] on file"},
		{"credit card", "card 4111 1111 1111 1111 please", "card [CREDIT_CARD_REDACTED] please"},
		{"ip address", "host 10.0.12.7 is down", "host [IP_ADDRESS_REDACTED] is down"},
		{"api key", "key sk-abcdefghijklmnopqrstuvwxyz123 leaked", "key [API_KEY_REDACTED] leaked"},
		{"clean", "nothing sensitive here", "nothing sensitive here"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := r.Redact(ctx, tc.input)
			gt.NoError(t, err).Required()
			gt.Value(t, result.RedactedText).Equal(tc.expected)
			gt.Value(t, result.OriginalFingerprint).Equal(r.Fingerprint(tc.input))
		})
	}
}

func TestRedact_MultipleSpansRightToLeft(t *testing.T) {
	r := pii.New()
	result, err := r.Redact(context.Background(), "a@b.io and c@d.io from 192.168.0.1")
	gt.NoError(t, err).Required()
	gt.Value(t, result.RedactedText).Equal("[EMAIL_REDACTED] and [EMAIL_REDACTED] from [IP_ADDRESS_REDACTED]")
	gt.Array(t, result.Entities).Length(3)
}

func TestFingerprint(t *testing.T) {
	r := pii.New()
	fp := r.Fingerprint("hello")
	gt.Value(t, fp).Equal("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	gt.Number(t, len(fp)).Equal(64)
	gt.Value(t, r.Fingerprint("hello")).Equal(fp)
	gt.Value(t, r.Fingerprint("hello!")).NotEqual(fp)
}

func TestMerge_DropsOverlaps(t *testing.T) {
	merged := pii.Merge([]*model.PIIEntity{
		{Type: types.PIITypeSSN, Start: 10, End: 20},
		{Type: types.PIITypeName, Start: 0, End: 5},
		{Type: types.PIITypePhone, Start: 8, End: 22},
		{Type: types.PIITypeOther, Start: 22, End: 25},
	})
	gt.Array(t, merged).Length(3).Required()
	gt.Value(t, merged[0].Type).Equal(types.PIITypeName)
	gt.Value(t, merged[1].Type).Equal(types.PIITypePhone)
	gt.Value(t, merged[2].Type).Equal(types.PIITypeOther)
}

func TestRedact_WithLLM(t *testing.T) {
	llm := &mockLLMClient{response: `{"entities":[{"text":"Alice Smith","type":"name"},{"text":"alice@corp.com","type":"email"}]}`}
	r := pii.New(pii.WithLLM(llm))

	result, err := r.Redact(context.Background(), "Alice Smith said to mail alice@corp.com. Alice Smith agreed.")
	gt.NoError(t, err).Required()
	gt.Value(t, result.RedactedText).Equal("[NAME_REDACTED] said to mail [EMAIL_REDACTED]. [NAME_REDACTED] agreed.")
	gt.Number(t, llm.calls).Equal(1)
}

func TestRedact_LLMFailureFallsBackToRegex(t *testing.T) {
	llm := &mockLLMClient{err: errors.New("quota exceeded")}
	r := pii.New(pii.WithLLM(llm))

	result, err := r.Redact(context.Background(), "Bob at bob@corp.com")
	gt.NoError(t, err).Required()
	gt.Value(t, result.RedactedText).Equal("Bob at [EMAIL_REDACTED]")
}

func TestRedact_LLMChunking(t *testing.T) {
	llm := &mockLLMClient{response: `{"entities":[]}`}
	r := pii.New(pii.WithLLM(llm), pii.WithChunkSize(100))

	_, err := r.Redact(context.Background(), strings.Repeat("x", 250))
	gt.NoError(t, err).Required()
	gt.Number(t, llm.calls).Equal(3)
}

func TestResponseSchema_RequiredFields(t *testing.T) {
	schema := pii.ResponseSchema()
	entities := schema.Properties["entities"]
	gt.Bool(t, entities.Required).True()

	item := entities.Items
	gt.Bool(t, item.Properties["text"].Required).True()
	gt.Bool(t, item.Properties["type"].Required).True()
	gt.Array(t, item.Properties["type"].Enum).Length(9)
}
