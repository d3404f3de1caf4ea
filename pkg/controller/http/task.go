package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
)

func taskID(r *http.Request) model.TaskID {
	return model.TaskID(chi.URLParam(r, "taskID"))
}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(raw string) (*time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, goerr.Wrap(model.ErrValidation, "invalid due date", goerr.V("due_date", raw))
}

func (s *Server) handleListMeetingTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tasks, err := s.uc.Task.ListByMeeting(ctx, userFromContext(ctx).ID, meetingID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"items": toTasks(tasks)})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := parsePagination(r)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	var filter usecase.TaskFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status, err := types.ParseTaskStatus(raw)
		if err != nil {
			s.handleError(ctx, w, goerr.Wrap(model.ErrValidation, err.Error()))
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("priority"); raw != "" {
		priority, err := types.ParseTaskPriority(raw)
		if err != nil {
			s.handleError(ctx, w, goerr.Wrap(model.ErrValidation, err.Error()))
			return
		}
		filter.Priority = &priority
	}
	if raw := q.Get("meeting_id"); raw != "" {
		id := model.MeetingID(raw)
		filter.MeetingID = &id
	}

	tasks, err := s.uc.Task.List(ctx, userFromContext(ctx).ID, page, filter)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toPage(tasks, toTask))
}

type createTaskRequest struct {
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	AssigneeName  string             `json:"assignee_name"`
	AssigneeEmail string             `json:"assignee_email"`
	Priority      types.TaskPriority `json:"priority"`
	DueDate       string             `json:"due_date"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	in := &usecase.TaskInput{
		MeetingID:     meetingID(r),
		Title:         req.Title,
		Description:   req.Description,
		AssigneeName:  req.AssigneeName,
		AssigneeEmail: req.AssigneeEmail,
		Priority:      req.Priority,
	}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			s.handleError(ctx, w, err)
			return
		}
		in.DueDate = due
	}

	task, err := s.uc.Task.Create(ctx, userFromContext(ctx).ID, in)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, toTask(task))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	task, err := s.uc.Task.Get(ctx, userFromContext(ctx).ID, taskID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toTask(task))
}

// updateTaskRequest: an empty due_date clears the due date
type updateTaskRequest struct {
	Title         *string             `json:"title"`
	Description   *string             `json:"description"`
	AssigneeName  *string             `json:"assignee_name"`
	AssigneeEmail *string             `json:"assignee_email"`
	Priority      *types.TaskPriority `json:"priority"`
	Status        *types.TaskStatus   `json:"status"`
	DueDate       *string             `json:"due_date"`
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	in := &usecase.TaskUpdate{
		Title:         req.Title,
		Description:   req.Description,
		AssigneeName:  req.AssigneeName,
		AssigneeEmail: req.AssigneeEmail,
		Priority:      req.Priority,
		Status:        req.Status,
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			in.ClearDueDate = true
		} else {
			due, err := parseDate(*req.DueDate)
			if err != nil {
				s.handleError(ctx, w, err)
				return
			}
			in.DueDate = due
		}
	}

	task, err := s.uc.Task.Update(ctx, userFromContext(ctx).ID, taskID(r), in)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toTask(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.uc.Task.Delete(ctx, userFromContext(ctx).ID, taskID(r)); err != nil {
		s.handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkTasksRequest struct {
	Action  usecase.BulkAction `json:"action"`
	TaskIDs []model.TaskID     `json:"task_ids"`
}

type bulkFailureResponse struct {
	TaskID model.TaskID `json:"task_id"`
	Code   string       `json:"code"`
	Error  string       `json:"error"`
}

type bulkTasksResponse struct {
	Succeeded []model.TaskID        `json:"succeeded"`
	Skipped   []model.TaskID        `json:"skipped"`
	Failed    []bulkFailureResponse `json:"failed"`
}

func (s *Server) handleBulkTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bulkTasksRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}
	if len(req.TaskIDs) == 0 {
		s.handleError(ctx, w, goerr.Wrap(model.ErrValidation, "task_ids is required"))
		return
	}

	result, err := s.uc.Task.Bulk(ctx, userFromContext(ctx).ID, req.Action, req.TaskIDs)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	resp := bulkTasksResponse{
		Succeeded: result.Succeeded,
		Skipped:   result.Skipped,
		Failed:    make([]bulkFailureResponse, len(result.Failed)),
	}
	if resp.Succeeded == nil {
		resp.Succeeded = []model.TaskID{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []model.TaskID{}
	}
	for i, f := range result.Failed {
		resp.Failed[i] = bulkFailureResponse{TaskID: f.TaskID, Code: model.ErrorCode(f.Err), Error: f.Err.Error()}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

type syncTaskRequest struct {
	IntegrationID model.IntegrationID `json:"integration_id"`
}

type syncTasksRequest struct {
	IntegrationID model.IntegrationID `json:"integration_id"`
	TaskIDs       []model.TaskID      `json:"task_ids"`
}

func (s *Server) handleSyncTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	id := taskID(r)
	if err := s.uc.Task.Sync(ctx, userFromContext(ctx).ID, req.IntegrationID, id); err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusAccepted, map[string]any{"queued": []model.TaskID{id}})
}

func (s *Server) handleSyncTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncTasksRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	if err := s.uc.Task.Sync(ctx, userFromContext(ctx).ID, req.IntegrationID, req.TaskIDs...); err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusAccepted, map[string]any{"queued": req.TaskIDs})
}
