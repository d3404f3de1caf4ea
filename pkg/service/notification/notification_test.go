package notification_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/notification"
)

func startHub(t *testing.T, opts ...notification.HubOption) *notification.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := notification.NewHub(opts...)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func dial(t *testing.T, hub *notification.Hub, userID model.UserID, topics ...string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hello := &model.Event{Event: "connected", Data: map[string]string{"user_id": string(userID)}}
		if err := hub.ServeWS(w, r, userID, topics, hello); err != nil {
			t.Error(err)
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = conn.Close() })

	// connected event
	_, data, err := conn.ReadMessage()
	gt.NoError(t, err).Required()
	gt.String(t, string(data)).Contains(`"event":"connected"`)
	return conn
}

func waitSubscribers(t *testing.T, hub *notification.Hub, topic string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers(topic) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers on %s", n, topic)
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	gt.NoError(t, err).Required()

	var v map[string]any
	gt.NoError(t, json.Unmarshal(data, &v)).Required()
	return v
}

func TestHub_StatusUpdateEnvelope(t *testing.T) {
	hub := startHub(t)
	userID := model.NewUserID()
	meetingID := model.NewMeetingID()
	topic := model.MeetingTopic(meetingID)

	conn := dial(t, hub, userID, topic)
	waitSubscribers(t, hub, topic, 1)

	hub.Publish(context.Background(), topic, &model.Event{
		Event: model.EventStatusUpdate,
		Data: &model.StatusUpdate{
			MeetingID: meetingID,
			Status:    types.MeetingStatusTranscribing,
			Message:   "Transcribing audio...",
			Progress:  20,
		},
	})

	msg := readJSON(t, conn)
	gt.Value(t, msg["event"]).Equal("status_update")
	data := msg["data"].(map[string]any)
	gt.Value(t, data["meeting_id"]).Equal(string(meetingID))
	gt.Value(t, data["status"]).Equal("transcribing")
	gt.Value(t, data["message"]).Equal("Transcribing audio...")
	gt.Value(t, data["progress"]).Equal(float64(20))
}

func TestHub_OnlySubscribersReceive(t *testing.T) {
	hub := startHub(t)
	a := model.MeetingTopic(model.NewMeetingID())
	b := model.MeetingTopic(model.NewMeetingID())

	connA := dial(t, hub, model.NewUserID(), a)
	connB := dial(t, hub, model.NewUserID(), b)
	waitSubscribers(t, hub, a, 1)
	waitSubscribers(t, hub, b, 1)

	hub.Publish(context.Background(), b, &model.Event{Event: model.EventStatusUpdate, Data: map[string]string{"to": "b"}})

	msg := readJSON(t, connB)
	gt.Value(t, msg["data"].(map[string]any)["to"]).Equal("b")

	_ = connA.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err := connA.ReadMessage()
	gt.Value(t, err).NotNil()
}

func TestHub_PingPong(t *testing.T) {
	hub := startHub(t)
	conn := dial(t, hub, model.NewUserID())

	gt.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping"))).Required()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	gt.NoError(t, err).Required()
	gt.Value(t, string(data)).Equal("pong")

	gt.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"})).Required()
	gt.Value(t, readJSON(t, conn)["type"]).Equal("pong")
}

func TestHub_SubscribeMessage(t *testing.T) {
	allowed := model.NewMeetingID()
	hub := startHub(t, notification.WithAuthorizer(func(ctx context.Context, userID model.UserID, topic string) bool {
		return topic == model.MeetingTopic(allowed)
	}))
	conn := dial(t, hub, model.NewUserID())

	gt.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "meeting_id": "other"})).Required()
	gt.Value(t, readJSON(t, conn)["type"]).Equal("error")

	gt.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "meeting_id": string(allowed)})).Required()
	gt.Value(t, readJSON(t, conn)["type"]).Equal("subscribed")
	waitSubscribers(t, hub, model.MeetingTopic(allowed), 1)
}

func TestHub_DisconnectUnsubscribes(t *testing.T) {
	hub := startHub(t)
	topic := model.UserTopic(model.NewUserID())
	conn := dial(t, hub, model.NewUserID(), topic)
	waitSubscribers(t, hub, topic, 1)

	gt.NoError(t, conn.Close()).Required()
	waitSubscribers(t, hub, topic, 0)
}

func TestHub_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := startHub(t)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(context.Background(), "meeting:none", &model.Event{Event: model.EventStatusUpdate})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked")
	}
}

func TestSlackWebhook(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(raw))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := notification.NewSlackWebhook(srv.URL, notification.WithMeetingBaseURL("https://app.example.com"))
	gt.NoError(t, err).Required()

	meetingID := model.NewMeetingID()
	completed := &model.Event{Event: model.EventStatusUpdate, Data: &model.StatusUpdate{
		MeetingID: meetingID,
		Status:    types.MeetingStatusCompleted,
		Message:   "Processing complete!",
		Progress:  100,
	}}

	t.Run("completion is posted", func(t *testing.T) {
		msg := sink.BuildMessage(completed)
		gt.Value(t, msg).NotNil().Required()
		gt.Array(t, msg.Attachments).Length(1).Required()
		gt.Value(t, msg.Attachments[0].Color).Equal("good")
		gt.Value(t, msg.Attachments[0].TitleLink).Equal("https://app.example.com/meetings/" + string(meetingID))

		gt.NoError(t, sink.Post(context.Background(), msg)).Required()
		mu.Lock()
		defer mu.Unlock()
		gt.Array(t, bodies).Length(1).Required()
		gt.String(t, bodies[0]).Contains("Processing complete!")
	})

	t.Run("progress updates are not posted", func(t *testing.T) {
		msg := sink.BuildMessage(&model.Event{Event: model.EventStatusUpdate, Data: &model.StatusUpdate{
			MeetingID: meetingID,
			Status:    types.MeetingStatusExtracting,
			Progress:  70,
		}})
		gt.Bool(t, msg == nil).True()
	})

	t.Run("failure is posted as danger", func(t *testing.T) {
		msg := sink.BuildMessage(&model.Event{Event: model.EventStatusUpdate, Data: &model.StatusUpdate{
			MeetingID: meetingID,
			Status:    types.MeetingStatusFailed,
			Message:   "transcription failed",
		}})
		gt.Value(t, msg).NotNil().Required()
		gt.Value(t, msg.Attachments[0].Color).Equal("danger")
	})

	t.Run("empty URL is rejected", func(t *testing.T) {
		_, err := notification.NewSlackWebhook("")
		gt.Error(t, err)
	})
}

type recordingBus struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingBus) Publish(ctx context.Context, topic string, event *model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
}

func TestMulti(t *testing.T) {
	a, b := &recordingBus{}, &recordingBus{}
	bus := notification.Multi{a, nil, b, notification.Nop{}}
	bus.Publish(context.Background(), "meeting:1", &model.Event{Event: model.EventStatusUpdate})

	gt.Array(t, a.topics).Length(1)
	gt.Array(t, b.topics).Length(1)
}
