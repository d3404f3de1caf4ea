package model

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptID is a UUID-based identifier for Transcript
type TranscriptID string

// NewTranscriptID generates a new UUID v4 TranscriptID
func NewTranscriptID() TranscriptID {
	return TranscriptID(uuid.New().String())
}

// SegmentID is a UUID-based identifier for TranscriptSegment
type SegmentID string

// NewSegmentID generates a new UUID v4 SegmentID
func NewSegmentID() SegmentID {
	return SegmentID(uuid.New().String())
}

// Transcript is the redacted text of a meeting. The plaintext before redaction is never
// stored; RedactionHash keeps its fingerprint instead.
type Transcript struct {
	ID            TranscriptID
	MeetingID     MeetingID
	FullText      string
	Language      string
	Confidence    *float64
	WordCount     int
	IsRedacted    bool
	RedactionHash string
	Embedding     []float32
	Segments      []*TranscriptSegment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TranscriptSegment is a timed piece of a transcript. SequenceNumber is assigned once
// when the transcript is created and defines playback order.
type TranscriptSegment struct {
	ID             SegmentID
	SequenceNumber int
	Text           string
	SpeakerLabel   string
	SpeakerName    string
	StartTime      float64
	EndTime        float64
	Confidence     *float64
	Embedding      []float32
}

// Transcription is the output of a speech-to-text provider for a single audio resource
type Transcription struct {
	FullText string
	Language string
	Duration float64
	Segments []*TranscriptionSegment
}

// TranscriptionSegment is a timed span reported by a speech-to-text provider
type TranscriptionSegment struct {
	Text       string
	StartTime  float64
	EndTime    float64
	Confidence *float64
	Speaker    string
}

// SpeakerTurn is a diarization result: who spoke between Start and End
type SpeakerTurn struct {
	Speaker string
	Start   float64
	End     float64
}

// RedactionResult is the output of a PII redactor
type RedactionResult struct {
	RedactedText        string
	OriginalFingerprint string
	Entities            []*PIIEntity
}
