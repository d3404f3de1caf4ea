package pii

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

const systemPrompt = `You are a privacy protection specialist. Identify personally identifiable information in the text.

Look for names of individuals, e-mail addresses, phone numbers, social security numbers, credit card numbers, credentials, API keys or tokens, physical addresses and private account numbers.

Return each entity with the exact text as it appears and its type. Do not flag job titles, company names or general discussion topics.`

type llmEntity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type llmResponse struct {
	Entities []llmEntity `json:"entities"`
}

func responseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "PIIDetectionResult",
		Description: "Personally identifiable information found in the text",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"entities": {
				Type:        gollem.TypeArray,
				Required:    true,
				Description: "Detected PII entities",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"text": {
							Type:        gollem.TypeString,
							Required:    true,
							Description: "The exact PII text",
						},
						"type": {
							Type:        gollem.TypeString,
							Required:    true,
							Description: "Type of PII",
							Enum:        []string{"name", "address", "email", "phone", "ssn", "credit_card", "api_key", "ip_address", "other"},
						},
					},
				},
			},
		},
	}
}

// chunks splits text into pieces of at most size bytes on rune boundaries and
// returns each piece with its byte offset
func chunks(text string, size int) ([]string, []int) {
	var parts []string
	var offsets []int
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				end = start + size
			}
		}
		parts = append(parts, text[start:end])
		offsets = append(offsets, start)
		start = end
	}
	return parts, offsets
}

func (r *Redactor) detectWithLLM(ctx context.Context, text string) ([]*model.PIIEntity, error) {
	parts, offsets := chunks(text, r.chunkChars)

	var entities []*model.PIIEntity
	for i, part := range parts {
		found, err := r.detectChunk(ctx, part)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to detect PII in chunk", goerr.V("chunk", i))
		}
		for _, e := range found {
			e.Start += offsets[i]
			e.End += offsets[i]
			entities = append(entities, e)
		}
	}
	return entities, nil
}

func (r *Redactor) detectChunk(ctx context.Context, text string) ([]*model.PIIEntity, error) {
	session, err := r.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(responseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text("Text to analyze:\n---\n"+text+"\n---"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content from LLM")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("empty LLM response")
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", resp.Texts[0]))
	}

	// Model offsets are unreliable, so every occurrence of the reported text is located
	var entities []*model.PIIEntity
	for _, e := range parsed.Entities {
		needle := strings.TrimSpace(e.Text)
		if needle == "" || containsPlaceholder(needle) {
			continue
		}
		piiType := types.PIIType(e.Type)
		if !piiType.IsValid() {
			piiType = types.PIITypeOther
		}
		for from := 0; ; {
			idx := strings.Index(text[from:], needle)
			if idx < 0 {
				break
			}
			start := from + idx
			entities = append(entities, &model.PIIEntity{
				Type:       piiType,
				Start:      start,
				End:        start + len(needle),
				Confidence: 0.8,
			})
			from = start + len(needle)
		}
	}
	return entities, nil
}
