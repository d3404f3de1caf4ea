package postgres

import (
	"time"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

type userRow struct {
	ID         string `gorm:"primaryKey"`
	Email      string
	EmailLower *string `gorm:"uniqueIndex"` // nil for users without e-mail
	FullName   string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (userRow) TableName() string { return "users" }

func (r *userRow) toModel() *model.User {
	return &model.User{
		ID:        model.UserID(r.ID),
		Email:     r.Email,
		FullName:  r.FullName,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type meetingRow struct {
	ID                    string `gorm:"primaryKey"`
	UserID                string `gorm:"index;not null"`
	Title                 string `gorm:"not null"`
	Description           string
	AudioKey              string
	AudioFilename         string
	AudioSize             int64
	AudioDuration         float64
	AudioFormat           string
	Status                string `gorm:"index"`
	StatusMessage         string
	Progress              int
	ErrorMessage          string
	RetryCount            int
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
	CreatedAt             time.Time `gorm:"index"`
	UpdatedAt             time.Time
}

func (meetingRow) TableName() string { return "meetings" }

func newMeetingRow(m *model.Meeting) *meetingRow {
	return &meetingRow{
		ID:                    string(m.ID),
		UserID:                string(m.UserID),
		Title:                 m.Title,
		Description:           m.Description,
		AudioKey:              m.Audio.Key,
		AudioFilename:         m.Audio.Filename,
		AudioSize:             m.Audio.Size,
		AudioDuration:         m.Audio.Duration,
		AudioFormat:           m.Audio.Format,
		Status:                string(m.Status),
		StatusMessage:         m.StatusMessage,
		Progress:              m.Progress,
		ErrorMessage:          m.ErrorMessage,
		RetryCount:            m.RetryCount,
		ProcessingStartedAt:   m.ProcessingStartedAt,
		ProcessingCompletedAt: m.ProcessingCompletedAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func (r *meetingRow) toModel() *model.Meeting {
	return &model.Meeting{
		ID:          model.MeetingID(r.ID),
		UserID:      model.UserID(r.UserID),
		Title:       r.Title,
		Description: r.Description,
		Audio: model.AudioFile{
			Key:      r.AudioKey,
			Filename: r.AudioFilename,
			Size:     r.AudioSize,
			Duration: r.AudioDuration,
			Format:   r.AudioFormat,
		},
		Status:                types.MeetingStatus(r.Status),
		StatusMessage:         r.StatusMessage,
		Progress:              r.Progress,
		ErrorMessage:          r.ErrorMessage,
		RetryCount:            r.RetryCount,
		ProcessingStartedAt:   r.ProcessingStartedAt,
		ProcessingCompletedAt: r.ProcessingCompletedAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

type transcriptRow struct {
	ID            string `gorm:"primaryKey"`
	MeetingID     string `gorm:"uniqueIndex;not null"`
	FullText      string
	Language      string
	Confidence    *float64
	WordCount     int
	IsRedacted    bool
	RedactionHash string
	Embedding     []float32    `gorm:"serializer:json;type:jsonb"`
	Segments      []segmentRow `gorm:"foreignKey:TranscriptID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (transcriptRow) TableName() string { return "transcripts" }

type segmentRow struct {
	ID             string `gorm:"primaryKey"`
	TranscriptID   string `gorm:"index;not null"`
	SequenceNumber int    `gorm:"index"`
	Text           string
	SpeakerLabel   string
	SpeakerName    string
	StartTime      float64
	EndTime        float64
	Confidence     *float64
	Embedding      []float32 `gorm:"serializer:json;type:jsonb"`
}

func (segmentRow) TableName() string { return "transcript_segments" }

func newTranscriptRow(t *model.Transcript) *transcriptRow {
	row := &transcriptRow{
		ID:            string(t.ID),
		MeetingID:     string(t.MeetingID),
		FullText:      t.FullText,
		Language:      t.Language,
		Confidence:    t.Confidence,
		WordCount:     t.WordCount,
		IsRedacted:    t.IsRedacted,
		RedactionHash: t.RedactionHash,
		Embedding:     t.Embedding,
		Segments:      make([]segmentRow, len(t.Segments)),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	for i, s := range t.Segments {
		row.Segments[i] = segmentRow{
			ID:             string(s.ID),
			TranscriptID:   string(t.ID),
			SequenceNumber: s.SequenceNumber,
			Text:           s.Text,
			SpeakerLabel:   s.SpeakerLabel,
			SpeakerName:    s.SpeakerName,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			Confidence:     s.Confidence,
			Embedding:      s.Embedding,
		}
	}
	return row
}

func (r *transcriptRow) toModel() *model.Transcript {
	t := &model.Transcript{
		ID:            model.TranscriptID(r.ID),
		MeetingID:     model.MeetingID(r.MeetingID),
		FullText:      r.FullText,
		Language:      r.Language,
		Confidence:    r.Confidence,
		WordCount:     r.WordCount,
		IsRedacted:    r.IsRedacted,
		RedactionHash: r.RedactionHash,
		Segments:      make([]*model.TranscriptSegment, len(r.Segments)),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if len(r.Embedding) > 0 {
		t.Embedding = r.Embedding
	}
	for i, s := range r.Segments {
		seg := &model.TranscriptSegment{
			ID:             model.SegmentID(s.ID),
			SequenceNumber: s.SequenceNumber,
			Text:           s.Text,
			SpeakerLabel:   s.SpeakerLabel,
			SpeakerName:    s.SpeakerName,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			Confidence:     s.Confidence,
		}
		if len(s.Embedding) > 0 {
			seg.Embedding = s.Embedding
		}
		t.Segments[i] = seg
	}
	return t
}

type taskRow struct {
	ID        string `gorm:"primaryKey"`
	MeetingID string `gorm:"index;not null"`
	UserID    string `gorm:"index;not null"`

	Title         string `gorm:"not null"`
	Description   string
	AssigneeName  string
	AssigneeEmail string
	Priority      string `gorm:"default:medium"`
	DueDate       *time.Time
	DueDateText   string
	Status        string `gorm:"index"`

	SourceText           string
	SourceSegmentID      string
	ExtractionConfidence *float64

	ExternalID      string
	ExternalService string
	ExternalURL     string
	SyncedAt        *time.Time
	SyncAttempts    int
	SyncError       string

	IsUserModified bool
	OriginalTitle  string

	IsDuplicate     bool
	DuplicateOfID   string
	SimilarityScore *float64

	Embedding []float32 `gorm:"serializer:json;type:jsonb"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (taskRow) TableName() string { return "tasks" }

func newTaskRow(t *model.Task) *taskRow {
	return &taskRow{
		ID:                   string(t.ID),
		MeetingID:            string(t.MeetingID),
		UserID:               string(t.UserID),
		Title:                t.Title,
		Description:          t.Description,
		AssigneeName:         t.AssigneeName,
		AssigneeEmail:        t.AssigneeEmail,
		Priority:             string(t.Priority),
		DueDate:              t.DueDate,
		DueDateText:          t.DueDateText,
		Status:               string(t.Status),
		SourceText:           t.SourceText,
		SourceSegmentID:      string(t.SourceSegmentID),
		ExtractionConfidence: t.ExtractionConfidence,
		ExternalID:           t.ExternalID,
		ExternalService:      string(t.ExternalService),
		ExternalURL:          t.ExternalURL,
		SyncedAt:             t.SyncedAt,
		SyncAttempts:         t.SyncAttempts,
		SyncError:            t.SyncError,
		IsUserModified:       t.IsUserModified,
		OriginalTitle:        t.OriginalTitle,
		IsDuplicate:          t.IsDuplicate,
		DuplicateOfID:        string(t.DuplicateOfID),
		SimilarityScore:      t.SimilarityScore,
		Embedding:            t.Embedding,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func (r *taskRow) toModel() *model.Task {
	t := &model.Task{
		ID:                   model.TaskID(r.ID),
		MeetingID:            model.MeetingID(r.MeetingID),
		UserID:               model.UserID(r.UserID),
		Title:                r.Title,
		Description:          r.Description,
		AssigneeName:         r.AssigneeName,
		AssigneeEmail:        r.AssigneeEmail,
		Priority:             types.TaskPriority(r.Priority),
		DueDate:              r.DueDate,
		DueDateText:          r.DueDateText,
		Status:               types.TaskStatus(r.Status),
		SourceText:           r.SourceText,
		SourceSegmentID:      model.SegmentID(r.SourceSegmentID),
		ExtractionConfidence: r.ExtractionConfidence,
		ExternalID:           r.ExternalID,
		ExternalService:      types.IntegrationType(r.ExternalService),
		ExternalURL:          r.ExternalURL,
		SyncedAt:             r.SyncedAt,
		SyncAttempts:         r.SyncAttempts,
		SyncError:            r.SyncError,
		IsUserModified:       r.IsUserModified,
		OriginalTitle:        r.OriginalTitle,
		IsDuplicate:          r.IsDuplicate,
		DuplicateOfID:        model.TaskID(r.DuplicateOfID),
		SimilarityScore:      r.SimilarityScore,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if len(r.Embedding) > 0 {
		t.Embedding = r.Embedding
	}
	return t
}

type integrationRow struct {
	ID       string `gorm:"primaryKey"`
	UserID   string `gorm:"index;not null"`
	Type     string `gorm:"not null"`
	IsActive bool

	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	APIKey         string
	APIToken       string

	WorkspaceID   string
	WorkspaceName string
	ProjectID     string
	ProjectName   string
	BoardID       string
	BoardName     string
	ListID        string
	ListName      string

	AutoSyncEnabled bool
	LastSyncedAt    *time.Time
	LastError       string
	ErrorCount      int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (integrationRow) TableName() string { return "integrations" }

func newIntegrationRow(i *model.Integration) *integrationRow {
	return &integrationRow{
		ID:              string(i.ID),
		UserID:          string(i.UserID),
		Type:            string(i.Type),
		IsActive:        i.IsActive,
		AccessToken:     i.AccessToken,
		RefreshToken:    i.RefreshToken,
		TokenExpiresAt:  i.TokenExpiresAt,
		APIKey:          i.APIKey,
		APIToken:        i.APIToken,
		WorkspaceID:     i.WorkspaceID,
		WorkspaceName:   i.WorkspaceName,
		ProjectID:       i.ProjectID,
		ProjectName:     i.ProjectName,
		BoardID:         i.BoardID,
		BoardName:       i.BoardName,
		ListID:          i.ListID,
		ListName:        i.ListName,
		AutoSyncEnabled: i.AutoSyncEnabled,
		LastSyncedAt:    i.LastSyncedAt,
		LastError:       i.LastError,
		ErrorCount:      i.ErrorCount,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

func (r *integrationRow) toModel() *model.Integration {
	return &model.Integration{
		ID:              model.IntegrationID(r.ID),
		UserID:          model.UserID(r.UserID),
		Type:            types.IntegrationType(r.Type),
		IsActive:        r.IsActive,
		AccessToken:     r.AccessToken,
		RefreshToken:    r.RefreshToken,
		TokenExpiresAt:  r.TokenExpiresAt,
		APIKey:          r.APIKey,
		APIToken:        r.APIToken,
		WorkspaceID:     r.WorkspaceID,
		WorkspaceName:   r.WorkspaceName,
		ProjectID:       r.ProjectID,
		ProjectName:     r.ProjectName,
		BoardID:         r.BoardID,
		BoardName:       r.BoardName,
		ListID:          r.ListID,
		ListName:        r.ListName,
		AutoSyncEnabled: r.AutoSyncEnabled,
		LastSyncedAt:    r.LastSyncedAt,
		LastError:       r.LastError,
		ErrorCount:      r.ErrorCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
