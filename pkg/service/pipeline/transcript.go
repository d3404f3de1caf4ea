package pipeline

import (
	"strings"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/service/pii"
)

// document is the full text of a transcription with the byte range of every segment
type document struct {
	text     string
	segments []*model.TranscriptionSegment
	spans    [][2]int
}

// assemble joins segment texts with single spaces. Without segments the provider's
// full text is used as is.
func assemble(t *model.Transcription) *document {
	doc := &document{}
	if len(t.Segments) == 0 {
		doc.text = strings.TrimSpace(t.FullText)
		return doc
	}

	var b strings.Builder
	for _, s := range t.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(text)
		doc.segments = append(doc.segments, s)
		doc.spans = append(doc.spans, [2]int{start, b.Len()})
	}
	doc.text = b.String()
	return doc
}

// redactSegments builds the stored segments, applying the entities found in the full
// text to every segment they overlap. Sequence numbers follow stitched order.
func (d *document) redactSegments(entities []*model.PIIEntity) []*model.TranscriptSegment {
	result := make([]*model.TranscriptSegment, 0, len(d.segments))
	for i, s := range d.segments {
		start, end := d.spans[i][0], d.spans[i][1]

		var local []*model.PIIEntity
		for _, e := range entities {
			if e.End <= start || e.Start >= end {
				continue
			}
			local = append(local, &model.PIIEntity{
				Type:       e.Type,
				Start:      max(e.Start, start) - start,
				End:        min(e.End, end) - start,
				Confidence: e.Confidence,
			})
		}

		result = append(result, &model.TranscriptSegment{
			ID:             model.NewSegmentID(),
			SequenceNumber: i,
			Text:           pii.Apply(d.text[start:end], local),
			SpeakerLabel:   s.Speaker,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			Confidence:     s.Confidence,
		})
	}
	return result
}

func averageConfidence(segments []*model.TranscriptionSegment) *float64 {
	var (
		sum float64
		n   int
	)
	for _, s := range segments {
		if s.Confidence != nil {
			sum += *s.Confidence
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
