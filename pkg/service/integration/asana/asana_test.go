package asana_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/integration/asana"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

type fakeAsana struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAsana) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handler(w, r)
}

func newAdapter(t *testing.T, integration *model.Integration, handler func(w http.ResponseWriter, r *http.Request)) (*asana.Adapter, *fakeAsana) {
	t.Helper()
	fake := &fakeAsana{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	a, err := asana.New(integration, asana.WithBaseURL(srv.URL))
	gt.NoError(t, err).Required()
	return a, fake
}

func testIntegration() *model.Integration {
	return &model.Integration{
		ID:          model.NewIntegrationID(),
		Type:        types.IntegrationTypeAsana,
		AccessToken: "tok",
		ProjectID:   "p1",
	}
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := asana.New(&model.Integration{Type: types.IntegrationTypeAsana})
	gt.Error(t, err).Is(model.ErrConfiguration)
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	a, fake := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/tasks":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"gid":"123","name":"Send report"}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/tasks/123":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	due := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	result := a.CreateTask(ctx, &model.TaskPayload{
		Title:         "Send report",
		Description:   "Q3 numbers",
		AssigneeEmail: "alice@example.com",
		Priority:      types.TaskPriorityHigh,
		DueDate:       &due,
	})

	gt.Bool(t, result.Success).True()
	gt.Value(t, result.ExternalID).Equal("123")
	gt.Value(t, result.ExternalURL).Equal("https://app.asana.com/0/p1/123")

	// the failed assignment does not fail the creation
	gt.Array(t, fake.requests).Length(2).Required()
	create := fake.requests[0]
	gt.Value(t, create.auth).Equal("Bearer tok")
	data := create.body["data"].(map[string]any)
	gt.Value(t, data["name"]).Equal("Send report")
	gt.Value(t, data["notes"]).Equal("Q3 numbers")
	gt.Value(t, data["due_on"]).Equal("2026-10-20")
	gt.Value(t, data["projects"]).Equal([]any{"p1"})
	_, hasPriority := data["priority"]
	gt.Bool(t, hasPriority).False()

	assign := fake.requests[1]
	gt.Value(t, assign.body["data"].(map[string]any)["assignee"]).Equal("alice@example.com")
}

func TestCreateTask_NoProject(t *testing.T) {
	integration := testIntegration()
	integration.ProjectID = ""
	a, fake := newAdapter(t, integration, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	result := a.CreateTask(context.Background(), &model.TaskPayload{Title: "x"})
	gt.Bool(t, result.Success).False()
	gt.Value(t, result.Error).Equal("No Asana project configured")
	gt.Array(t, fake.requests).Length(0)
}

func TestCreateTask_ProviderError(t *testing.T) {
	a, _ := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"project: Not a recognized ID"}]}`))
	})

	result := a.CreateTask(context.Background(), &model.TaskPayload{Title: "x"})
	gt.Bool(t, result.Success).False()
	gt.Value(t, result.Error).Equal("project: Not a recognized ID")
}

func TestCreateTask_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a, err := asana.New(testIntegration(), asana.WithBaseURL(srv.URL))
	gt.NoError(t, err).Required()

	result := a.CreateTask(context.Background(), &model.TaskPayload{Title: "x"})
	gt.Bool(t, result.Success).False()
	gt.String(t, result.Error).NotEqual("")
}

func TestUpdateAndDeleteTask(t *testing.T) {
	ctx := context.Background()
	a, fake := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data":{"gid":"123"}}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data":{}}`))
		}
	})

	updated := a.UpdateTask(ctx, "123", &model.TaskPayload{Title: "Renamed"})
	gt.Bool(t, updated.Success).True()
	gt.Value(t, updated.ExternalID).Equal("123")

	deleted := a.DeleteTask(ctx, "123")
	gt.Bool(t, deleted.Success).True()

	gt.Array(t, fake.requests).Length(2).Required()
	gt.Value(t, fake.requests[0].path).Equal("/tasks/123")
	gt.Value(t, fake.requests[1].method).Equal(http.MethodDelete)
}

func TestWorkspacesAndProjects(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/workspaces":
			_, _ = w.Write([]byte(`{"data":[{"gid":"w1","name":"Acme"}]}`))
		case "/projects":
			if r.URL.Query().Get("workspace") != "w1" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"data":[{"gid":"p1","name":"Roadmap"},{"gid":"p2","name":"Ops"}]}`))
		case "/users/me":
			_, _ = w.Write([]byte(`{"data":{"gid":"u1"}}`))
		}
	})

	gt.Bool(t, a.TestConnection(ctx)).True()

	workspaces, err := a.GetWorkspaces(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, workspaces).Length(1).Required()
	gt.Value(t, workspaces[0].ID).Equal("w1")

	projects, err := a.GetProjects(ctx, "w1")
	gt.NoError(t, err).Required()
	gt.Array(t, projects).Length(2).Required()
	gt.Value(t, projects[1].Name).Equal("Ops")
	gt.Value(t, projects[1].WorkspaceID).Equal("w1")
}

func TestGetWorkspaces_Failure(t *testing.T) {
	a, _ := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	gt.Bool(t, a.TestConnection(context.Background())).False()

	_, err := a.GetWorkspaces(context.Background())
	gt.Error(t, err).Is(model.ErrIntegration)

	var ie *model.IntegrationError
	gt.Bool(t, errors.As(err, &ie)).True()
	gt.Value(t, ie.Provider).Equal(types.IntegrationTypeAsana)
	gt.Value(t, ie.Code()).Equal("ASANA_INTEGRATION_ERROR")
}
