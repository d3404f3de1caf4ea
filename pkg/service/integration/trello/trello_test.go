package trello_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/integration/trello"
)

type recorded struct {
	method string
	path   string
	query  url.Values
}

type fakeTrello struct {
	mu       sync.Mutex
	requests []recorded
	handler  http.HandlerFunc
}

func (f *fakeTrello) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query()})
	f.mu.Unlock()
	f.handler(w, r)
}

func testIntegration() *model.Integration {
	return &model.Integration{
		ID:       model.NewIntegrationID(),
		Type:     types.IntegrationTypeTrello,
		APIKey:   "key1",
		APIToken: "token1",
		BoardID:  "b1",
		ListID:   "l1",
	}
}

func newAdapter(t *testing.T, integration *model.Integration, handler http.HandlerFunc) (*trello.Adapter, *fakeTrello) {
	t.Helper()
	fake := &fakeTrello{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	a, err := trello.New(integration, trello.WithBaseURL(srv.URL))
	gt.NoError(t, err).Required()
	return a, fake
}

func TestNew_RequiresKeyPair(t *testing.T) {
	_, err := trello.New(&model.Integration{Type: types.IntegrationTypeTrello, APIKey: "k"})
	gt.Error(t, err).Is(model.ErrConfiguration)
}

func TestLabelColor(t *testing.T) {
	gt.Value(t, trello.LabelColor(types.TaskPriorityLow)).Equal("green")
	gt.Value(t, trello.LabelColor(types.TaskPriorityMedium)).Equal("yellow")
	gt.Value(t, trello.LabelColor(types.TaskPriorityHigh)).Equal("orange")
	gt.Value(t, trello.LabelColor(types.TaskPriorityUrgent)).Equal("red")
	gt.Value(t, trello.LabelColor("bogus")).Equal("yellow")
}

func TestCreateTask(t *testing.T) {
	a, fake := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cards":
			_, _ = w.Write([]byte(`{"id":"c1","url":"https://trello.com/c/c1/long","shortUrl":"https://trello.com/c/c1"}`))
		case "/cards/c1/labels":
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	result := a.CreateTask(context.Background(), &model.TaskPayload{
		Title:       "Send report",
		Description: "Q3",
		Priority:    types.TaskPriorityUrgent,
	})
	gt.Bool(t, result.Success).True()
	gt.Value(t, result.ExternalID).Equal("c1")
	gt.Value(t, result.ExternalURL).Equal("https://trello.com/c/c1")

	gt.Array(t, fake.requests).Length(2).Required()
	create := fake.requests[0]
	gt.Value(t, create.method).Equal(http.MethodPost)
	gt.Value(t, create.query.Get("idList")).Equal("l1")
	gt.Value(t, create.query.Get("name")).Equal("Send report")
	gt.Value(t, create.query.Get("desc")).Equal("Q3")
	gt.Value(t, create.query.Get("key")).Equal("key1")
	gt.Value(t, create.query.Get("token")).Equal("token1")

	label := fake.requests[1]
	gt.Value(t, label.query.Get("color")).Equal("red")
	gt.Value(t, label.query.Get("name")).Equal("URGENT")
}

func TestCreateTask_NoList(t *testing.T) {
	integration := testIntegration()
	integration.ListID = ""
	a, fake := newAdapter(t, integration, func(w http.ResponseWriter, r *http.Request) {})

	result := a.CreateTask(context.Background(), &model.TaskPayload{Title: "x"})
	gt.Bool(t, result.Success).False()
	gt.Value(t, result.Error).Equal("No Trello list configured")
	gt.Array(t, fake.requests).Length(0)
}

func TestCreateTask_ProviderError(t *testing.T) {
	a, _ := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	result := a.CreateTask(context.Background(), &model.TaskPayload{Title: "x"})
	gt.Bool(t, result.Success).False()
	gt.Value(t, result.Error).Equal("Trello API error: 401")
}

func TestCreateTask_TransportFailureHidesCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a, err := trello.New(testIntegration(), trello.WithBaseURL(srv.URL))
	gt.NoError(t, err).Required()

	result := a.CreateTask(context.Background(), &model.TaskPayload{Title: "x"})
	gt.Bool(t, result.Success).False()
	gt.String(t, result.Error).NotContains("token1")
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	a, fake := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/cards/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	gt.Bool(t, a.UpdateTask(ctx, "c1", &model.TaskPayload{Title: "Renamed"}).Success).True()
	gt.Bool(t, a.DeleteTask(ctx, "c1").Success).True()
	gt.Bool(t, a.DeleteTask(ctx, "missing").Success).False()

	gt.Value(t, fake.requests[0].method).Equal(http.MethodPut)
	gt.Value(t, fake.requests[0].query.Get("name")).Equal("Renamed")
}

func TestBoardsAndLists(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, testIntegration(), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/members/me":
			_, _ = w.Write([]byte(`{"id":"m1"}`))
		case "/members/me/boards":
			_, _ = w.Write([]byte(`[{"id":"b1","name":"Team"},{"id":"b2","name":"Old","closed":true}]`))
		case "/boards/b1/lists":
			_, _ = w.Write([]byte(`[{"id":"l1","name":"To Do"},{"id":"l2","name":"Archive","closed":true},{"id":"l3","name":"Doing"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	gt.Bool(t, a.TestConnection(ctx)).True()

	boards, err := a.GetWorkspaces(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, boards).Length(1).Required()
	gt.Value(t, boards[0].Name).Equal("Team")

	lists, err := a.GetProjects(ctx, "b1")
	gt.NoError(t, err).Required()
	gt.Array(t, lists).Length(2).Required()
	gt.Value(t, lists[0].ID).Equal("l1")
	gt.Value(t, lists[1].ID).Equal("l3")
	gt.Value(t, lists[1].WorkspaceID).Equal("b1")

	_, err = a.GetProjects(ctx, "unknown")
	gt.Error(t, err).Is(model.ErrIntegration)
}
