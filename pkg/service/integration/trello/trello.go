package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/secmon-lab/meetscribe/pkg/utils/safe"
)

const DefaultBaseURL = "https://api.trello.com/1"

// labelColors maps task priority to the colour of the card label
var labelColors = map[types.TaskPriority]string{
	types.TaskPriorityLow:    "green",
	types.TaskPriorityMedium: "yellow",
	types.TaskPriorityHigh:   "orange",
	types.TaskPriorityUrgent: "red",
}

// LabelColor returns the label colour of a priority
func LabelColor(p types.TaskPriority) string {
	if c, ok := labelColors[p]; ok {
		return c
	}
	return labelColors[types.TaskPriorityMedium]
}

// Adapter delivers tasks as cards to a Trello list
type Adapter struct {
	baseURL string
	key     string
	token   string
	listID  string
	client  *http.Client
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

// New builds the adapter from a Trello integration. Trello authenticates with an API key
// and a member token; an OAuth access token stands in for the member token.
func New(integration *model.Integration, opts ...Option) (*Adapter, error) {
	token := integration.APIToken
	if token == "" {
		token = integration.AccessToken
	}
	if integration.APIKey == "" || token == "" {
		return nil, &model.ConfigurationError{
			Type:   types.IntegrationTypeTrello,
			Reason: "API key and token are required",
		}
	}

	a := &Adapter{
		baseURL: DefaultBaseURL,
		key:     integration.APIKey,
		token:   token,
		listID:  integration.ListID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type card struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	ShortURL string `json:"shortUrl"`
}

type namedResource struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

func newIntegrationError(reason string, status int) error {
	return &model.IntegrationError{
		Provider:   types.IntegrationTypeTrello,
		Reason:     reason,
		StatusCode: status,
	}
}

// do sends a request with parameters in the query string, as the Trello API expects
func (a *Adapter) do(ctx context.Context, method, path string, params url.Values, out any) (int, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", a.key)
	params.Set("token", a.token)

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to build Trello request", goerr.V("path", path))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// the URL carries credentials, so only the path is kept
		return 0, goerr.New("Trello request failed",
			goerr.V("method", method), goerr.V("path", path), goerr.V("cause", transportReason(err)))
	}
	defer safe.Close(ctx, resp.Body)

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, goerr.Wrap(err, "failed to decode Trello response",
				goerr.V("status", resp.StatusCode))
		}
	}
	return resp.StatusCode, nil
}

func transportReason(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err.Error()
	}
	return err.Error()
}

func payloadParams(payload *model.TaskPayload) url.Values {
	params := url.Values{}
	params.Set("name", payload.Title)
	if payload.Description != "" {
		params.Set("desc", payload.Description)
	}
	if payload.DueDate != nil {
		params.Set("due", payload.DueDate.UTC().Format(time.RFC3339))
	}
	return params
}

func (a *Adapter) TestConnection(ctx context.Context) bool {
	status, err := a.do(ctx, http.MethodGet, "/members/me", nil, nil)
	if err != nil {
		logging.From(ctx).Warn("Trello connection test failed", "error", err.Error())
		return false
	}
	return status == http.StatusOK
}

func (a *Adapter) CreateTask(ctx context.Context, payload *model.TaskPayload) *model.SyncResult {
	if a.listID == "" {
		return &model.SyncResult{Error: "No Trello list configured"}
	}

	params := payloadParams(payload)
	params.Set("idList", a.listID)

	var created card
	status, err := a.do(ctx, http.MethodPost, "/cards", params, &created)
	if err != nil {
		logging.From(ctx).Warn("Trello card creation failed", "error", err.Error())
		return &model.SyncResult{Error: err.Error()}
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return &model.SyncResult{Error: fmt.Sprintf("Trello API error: %d", status)}
	}

	a.addPriorityLabel(ctx, created.ID, payload.Priority)

	externalURL := created.ShortURL
	if externalURL == "" {
		externalURL = created.URL
	}
	return &model.SyncResult{
		Success:     true,
		ExternalID:  created.ID,
		ExternalURL: externalURL,
	}
}

func (a *Adapter) addPriorityLabel(ctx context.Context, cardID string, priority types.TaskPriority) {
	if !priority.IsValid() {
		priority = types.TaskPriorityMedium
	}
	params := url.Values{}
	params.Set("color", LabelColor(priority))
	params.Set("name", strings.ToUpper(priority.String()))

	status, err := a.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/labels", params, nil)
	if err != nil || status != http.StatusOK {
		logging.From(ctx).Debug("Trello priority label not applied", "card_id", cardID, "status", status)
	}
}

func (a *Adapter) UpdateTask(ctx context.Context, externalID string, payload *model.TaskPayload) *model.SyncResult {
	status, err := a.do(ctx, http.MethodPut, "/cards/"+url.PathEscape(externalID), payloadParams(payload), nil)
	if err != nil {
		return &model.SyncResult{Error: err.Error()}
	}
	if status != http.StatusOK {
		return &model.SyncResult{Error: "Update failed"}
	}
	return &model.SyncResult{Success: true, ExternalID: externalID}
}

func (a *Adapter) DeleteTask(ctx context.Context, externalID string) *model.SyncResult {
	status, err := a.do(ctx, http.MethodDelete, "/cards/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return &model.SyncResult{Error: err.Error()}
	}
	if status != http.StatusOK {
		return &model.SyncResult{Error: fmt.Sprintf("Delete failed with status %d", status)}
	}
	return &model.SyncResult{Success: true, ExternalID: externalID}
}

// GetWorkspaces lists the open boards of the member
func (a *Adapter) GetWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	var boards []namedResource
	status, err := a.do(ctx, http.MethodGet, "/members/me/boards", nil, &boards)
	if err != nil {
		return nil, goerr.Wrap(newIntegrationError(err.Error(), 0), "failed to get Trello boards")
	}
	if status != http.StatusOK {
		return nil, newIntegrationError("Failed to fetch Trello boards", status)
	}

	workspaces := make([]*model.Workspace, 0, len(boards))
	for _, b := range boards {
		if b.Closed {
			continue
		}
		workspaces = append(workspaces, &model.Workspace{ID: b.ID, Name: b.Name})
	}
	return workspaces, nil
}

// GetProjects lists the open lists of a board
func (a *Adapter) GetProjects(ctx context.Context, boardID string) ([]*model.Project, error) {
	var lists []namedResource
	status, err := a.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID)+"/lists", nil, &lists)
	if err != nil {
		return nil, goerr.Wrap(newIntegrationError(err.Error(), 0), "failed to get Trello lists",
			goerr.V("board_id", boardID))
	}
	if status != http.StatusOK {
		return nil, newIntegrationError("Failed to fetch Trello lists", status)
	}

	projects := make([]*model.Project, 0, len(lists))
	for _, l := range lists {
		if l.Closed {
			continue
		}
		projects = append(projects, &model.Project{ID: l.ID, Name: l.Name, WorkspaceID: boardID})
	}
	return projects, nil
}
