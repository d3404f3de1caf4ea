package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/secmon-lab/meetscribe/pkg/utils/safe"
)

const (
	DefaultBaseURL = "https://app.asana.com/api/1.0"
	DefaultWebURL  = "https://app.asana.com/0"
)

// Adapter delivers tasks to an Asana project
type Adapter struct {
	baseURL   string
	webURL    string
	token     string
	projectID string
	client    *http.Client
}

var _ interfaces.IntegrationAdapter = &Adapter{}

type Option func(*Adapter)

func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		a.baseURL = u
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		a.client = c
	}
}

// New builds the adapter from an Asana integration. The OAuth access token is used when
// present, otherwise the API key is taken as a personal access token.
func New(integration *model.Integration, opts ...Option) (*Adapter, error) {
	token := integration.AccessToken
	if token == "" {
		token = integration.APIKey
	}
	if token == "" {
		return nil, &model.ConfigurationError{
			Type:   types.IntegrationTypeAsana,
			Reason: "access token is required",
		}
	}

	a := &Adapter{
		baseURL:   DefaultBaseURL,
		webURL:    DefaultWebURL,
		token:     token,
		projectID: integration.ProjectID,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type taskData struct {
	Name     string   `json:"name,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	Projects []string `json:"projects,omitempty"`
	DueOn    string   `json:"due_on,omitempty"`
	Assignee string   `json:"assignee,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

type envelope[T any] struct {
	Data   T          `json:"data"`
	Errors []apiError `json:"errors,omitempty"`
}

type resource struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

func newIntegrationError(reason string, status int) error {
	return &model.IntegrationError{
		Provider:   types.IntegrationTypeAsana,
		Reason:     reason,
		StatusCode: status,
	}
}

func (a *Adapter) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to marshal Asana request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to build Asana request", goerr.V("path", path))
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, goerr.Wrap(err, "Asana request failed", goerr.V("method", method), goerr.V("path", path))
	}
	defer safe.Close(ctx, resp.Body)

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, goerr.Wrap(err, "failed to decode Asana response",
				goerr.V("status", resp.StatusCode))
		}
	}
	return resp.StatusCode, nil
}

func (a *Adapter) TestConnection(ctx context.Context) bool {
	status, err := a.do(ctx, http.MethodGet, "/users/me", nil, nil)
	if err != nil {
		logging.From(ctx).Warn("Asana connection test failed", "error", err.Error())
		return false
	}
	return status == http.StatusOK
}

func (a *Adapter) CreateTask(ctx context.Context, payload *model.TaskPayload) *model.SyncResult {
	if a.projectID == "" {
		return &model.SyncResult{Error: "No Asana project configured"}
	}

	data := taskData{
		Name:     payload.Title,
		Notes:    payload.Description,
		Projects: []string{a.projectID},
	}
	if payload.DueDate != nil {
		data.DueOn = payload.DueDate.Format(time.DateOnly)
	}

	var resp envelope[resource]
	status, err := a.do(ctx, http.MethodPost, "/tasks", envelope[taskData]{Data: data}, &resp)
	if err != nil {
		logging.From(ctx).Warn("Asana task creation failed", "error", err.Error())
		return &model.SyncResult{Error: err.Error()}
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return &model.SyncResult{Error: errorMessage(resp.Errors, status)}
	}

	gid := resp.Data.GID
	// Asana resolves the assignee by e-mail; an unknown address leaves the task unassigned
	if payload.AssigneeEmail != "" {
		a.assign(ctx, gid, payload.AssigneeEmail)
	}

	return &model.SyncResult{
		Success:     true,
		ExternalID:  gid,
		ExternalURL: fmt.Sprintf("%s/%s/%s", a.webURL, a.projectID, gid),
	}
}

func (a *Adapter) assign(ctx context.Context, gid, email string) {
	status, err := a.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(gid),
		envelope[taskData]{Data: taskData{Assignee: email}}, nil)
	if err != nil || status != http.StatusOK {
		logging.From(ctx).Debug("Asana assignee not applied", "gid", gid, "status", status)
	}
}

func (a *Adapter) UpdateTask(ctx context.Context, externalID string, payload *model.TaskPayload) *model.SyncResult {
	data := taskData{
		Name:  payload.Title,
		Notes: payload.Description,
	}
	if payload.DueDate != nil {
		data.DueOn = payload.DueDate.Format(time.DateOnly)
	}

	status, err := a.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(externalID), envelope[taskData]{Data: data}, nil)
	if err != nil {
		return &model.SyncResult{Error: err.Error()}
	}
	if status != http.StatusOK {
		return &model.SyncResult{Error: "Update failed"}
	}
	return &model.SyncResult{Success: true, ExternalID: externalID}
}

func (a *Adapter) DeleteTask(ctx context.Context, externalID string) *model.SyncResult {
	status, err := a.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return &model.SyncResult{Error: err.Error()}
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return &model.SyncResult{Error: fmt.Sprintf("Delete failed with status %d", status)}
	}
	return &model.SyncResult{Success: true, ExternalID: externalID}
}

func (a *Adapter) GetWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	var resp envelope[[]resource]
	status, err := a.do(ctx, http.MethodGet, "/workspaces", nil, &resp)
	if err != nil {
		return nil, goerr.Wrap(newIntegrationError(err.Error(), 0), "failed to get Asana workspaces")
	}
	if status != http.StatusOK {
		return nil, newIntegrationError("Failed to fetch Asana workspaces", status)
	}

	workspaces := make([]*model.Workspace, 0, len(resp.Data))
	for _, w := range resp.Data {
		workspaces = append(workspaces, &model.Workspace{ID: w.GID, Name: w.Name})
	}
	return workspaces, nil
}

func (a *Adapter) GetProjects(ctx context.Context, workspaceID string) ([]*model.Project, error) {
	var resp envelope[[]resource]
	path := "/projects?" + url.Values{"workspace": {workspaceID}}.Encode()
	status, err := a.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, goerr.Wrap(newIntegrationError(err.Error(), 0), "failed to get Asana projects",
			goerr.V("workspace_id", workspaceID))
	}
	if status != http.StatusOK {
		return nil, newIntegrationError("Failed to fetch Asana projects", status)
	}

	projects := make([]*model.Project, 0, len(resp.Data))
	for _, p := range resp.Data {
		projects = append(projects, &model.Project{ID: p.GID, Name: p.Name, WorkspaceID: workspaceID})
	}
	return projects, nil
}

func errorMessage(errs []apiError, status int) string {
	if len(errs) > 0 && errs[0].Message != "" {
		return errs[0].Message
	}
	return fmt.Sprintf("Asana API error: %d", status)
}
