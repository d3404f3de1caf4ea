package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/utils/errutil"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to write response", "error", err.Error())
	}
}

func (s *Server) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	errutil.HandleHTTP(ctx, w, err, s.verbose)
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return goerr.Wrap(model.ErrValidation, "invalid request body", goerr.V("reason", err.Error()))
	}
	return nil
}

func parsePagination(r *http.Request) (model.Pagination, error) {
	var page model.Pagination
	q := r.URL.Query()
	for name, dst := range map[string]*int{"offset": &page.Offset, "limit": &page.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, goerr.Wrap(model.ErrValidation, "invalid pagination parameter", goerr.V(name, raw))
		}
		*dst = n
	}
	return page, nil
}

type pageResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func toPage[M any, T any](page *model.Page[M], convert func(M) T) pageResponse[T] {
	items := make([]T, len(page.Items))
	for i, item := range page.Items {
		items[i] = convert(item)
	}
	return pageResponse[T]{Items: items, Total: page.Total, Offset: page.Offset, Limit: page.Limit}
}

type userResponse struct {
	ID        model.UserID `json:"id"`
	Email     string       `json:"email"`
	FullName  string       `json:"full_name"`
	CreatedAt time.Time    `json:"created_at"`
}

func toUser(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, FullName: u.FullName, CreatedAt: u.CreatedAt}
}

type audioResponse struct {
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
	Format   string  `json:"format"`
	Stored   bool    `json:"stored"`
}

type meetingResponse struct {
	ID                    model.MeetingID     `json:"id"`
	Title                 string              `json:"title"`
	Description           string              `json:"description"`
	Audio                 audioResponse       `json:"audio"`
	Status                types.MeetingStatus `json:"status"`
	StatusMessage         string              `json:"status_message"`
	Progress              int                 `json:"progress"`
	ErrorMessage          string              `json:"error_message,omitempty"`
	RetryCount            int                 `json:"retry_count"`
	ProcessingStartedAt   *time.Time          `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time          `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func toMeeting(m *model.Meeting) meetingResponse {
	return meetingResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Audio: audioResponse{
			Filename: m.Audio.Filename,
			Size:     m.Audio.Size,
			Duration: m.Audio.Duration,
			Format:   m.Audio.Format,
			Stored:   m.Audio.Key != "",
		},
		Status:                m.Status,
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

type segmentResponse struct {
	ID             model.SegmentID `json:"id"`
	SequenceNumber int             `json:"sequence_number"`
	Text           string          `json:"text"`
	SpeakerLabel   string          `json:"speaker_label,omitempty"`
	SpeakerName    string          `json:"speaker_name,omitempty"`
	StartTime      float64         `json:"start_time"`
	EndTime        float64         `json:"end_time"`
	Confidence     *float64        `json:"confidence,omitempty"`
}

func toSegment(s *model.TranscriptSegment) segmentResponse {
	return segmentResponse{
		ID:             s.ID,
		SequenceNumber: s.SequenceNumber,
		Text:           s.Text,
		SpeakerLabel:   s.SpeakerLabel,
		SpeakerName:    s.SpeakerName,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Confidence:     s.Confidence,
	}
}

type transcriptResponse struct {
	ID         model.TranscriptID `json:"id"`
	MeetingID  model.MeetingID    `json:"meeting_id"`
	FullText   string             `json:"full_text"`
	Language   string             `json:"language"`
	Confidence *float64           `json:"confidence,omitempty"`
	WordCount  int                `json:"word_count"`
	IsRedacted bool               `json:"is_redacted"`
	Segments   []segmentResponse  `json:"segments"`
	CreatedAt  time.Time          `json:"created_at"`
}

func toTranscript(t *model.Transcript) transcriptResponse {
	segments := make([]segmentResponse, len(t.Segments))
	for i, s := range t.Segments {
		segments[i] = toSegment(s)
	}
	return transcriptResponse{
		ID:         t.ID,
		MeetingID:  t.MeetingID,
		FullText:   t.FullText,
		Language:   t.Language,
		Confidence: t.Confidence,
		WordCount:  t.WordCount,
		IsRedacted: t.IsRedacted,
		Segments:   segments,
		CreatedAt:  t.CreatedAt,
	}
}

type taskResponse struct {
	ID                   model.TaskID          `json:"id"`
	MeetingID            model.MeetingID       `json:"meeting_id"`
	Title                string                `json:"title"`
	Description          string                `json:"description"`
	AssigneeName         string                `json:"assignee_name,omitempty"`
	AssigneeEmail        string                `json:"assignee_email,omitempty"`
	Priority             types.TaskPriority    `json:"priority"`
	DueDate              *time.Time            `json:"due_date,omitempty"`
	DueDateText          string                `json:"due_date_text,omitempty"`
	Status               types.TaskStatus      `json:"status"`
	SourceText           string                `json:"source_text,omitempty"`
	ExtractionConfidence *float64              `json:"extraction_confidence,omitempty"`
	ExternalID           string                `json:"external_id,omitempty"`
	ExternalService      types.IntegrationType `json:"external_service,omitempty"`
	ExternalURL          string                `json:"external_url,omitempty"`
	SyncedAt             *time.Time            `json:"synced_at,omitempty"`
	SyncError            string                `json:"sync_error,omitempty"`
	IsUserModified       bool                  `json:"is_user_modified"`
	OriginalTitle        string                `json:"original_title,omitempty"`
	IsDuplicate          bool                  `json:"is_duplicate"`
	DuplicateOfID        model.TaskID          `json:"duplicate_of_id,omitempty"`
	SimilarityScore      *float64              `json:"similarity_score,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

func toTask(t *model.Task) taskResponse {
	return taskResponse{
		ID:                   t.ID,
		MeetingID:            t.MeetingID,
		Title:                t.Title,
		Description:          t.Description,
		AssigneeName:         t.AssigneeName,
		AssigneeEmail:        t.AssigneeEmail,
		Priority:             t.Priority,
		DueDate:              t.DueDate,
		DueDateText:          t.DueDateText,
		Status:               t.Status,
		SourceText:           t.SourceText,
		ExtractionConfidence: t.ExtractionConfidence,
		ExternalID:           t.ExternalID,
		ExternalService:      t.ExternalService,
		ExternalURL:          t.ExternalURL,
		SyncedAt:             t.SyncedAt,
		SyncError:            t.SyncError,
		IsUserModified:       t.IsUserModified,
		OriginalTitle:        t.OriginalTitle,
		IsDuplicate:          t.IsDuplicate,
		DuplicateOfID:        t.DuplicateOfID,
		SimilarityScore:      t.SimilarityScore,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func toTasks(tasks []*model.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = toTask(t)
	}
	return out
}

// integrationResponse never carries credentials
type integrationResponse struct {
	ID              model.IntegrationID   `json:"id"`
	Type            types.IntegrationType `json:"type"`
	IsActive        bool                  `json:"is_active"`
	HasCredentials  bool                  `json:"has_credentials"`
	WorkspaceID     string                `json:"workspace_id,omitempty"`
	WorkspaceName   string                `json:"workspace_name,omitempty"`
	ProjectID       string                `json:"project_id,omitempty"`
	ProjectName     string                `json:"project_name,omitempty"`
	BoardID         string                `json:"board_id,omitempty"`
	BoardName       string                `json:"board_name,omitempty"`
	ListID          string                `json:"list_id,omitempty"`
	ListName        string                `json:"list_name,omitempty"`
	AutoSyncEnabled bool                  `json:"auto_sync_enabled"`
	LastSyncedAt    *time.Time            `json:"last_synced_at,omitempty"`
	LastError       string                `json:"last_error,omitempty"`
	ErrorCount      int                   `json:"error_count"`
	CreatedAt       time.Time             `json:"created_at"`
}

func toIntegration(i *model.Integration) integrationResponse {
	return integrationResponse{
		ID:              i.ID,
		Type:            i.Type,
		IsActive:        i.IsActive,
		HasCredentials:  i.HasOAuthCredentials() || i.HasAPIKeyCredentials(),
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
	}
}
