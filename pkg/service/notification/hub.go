package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
	publishBuffer  = 256
)

// Authorizer reports whether the connected user may subscribe to topic
type Authorizer func(ctx context.Context, userID model.UserID, topic string) bool

type client struct {
	userID model.UserID
	conn   *websocket.Conn
	send   chan []byte
}

type subscription struct {
	client *client
	topic  string
}

type message struct {
	topic   string
	payload []byte
}

type countRequest struct {
	topic string
	reply chan int
}

// Hub owns every WebSocket connection and topic subscription. All state is held by the
// Run goroutine; other goroutines talk to it through channels.
type Hub struct {
	upgrader  websocket.Upgrader
	authorize Authorizer

	register    chan *client
	unregister  chan *client
	subscribe   chan subscription
	broadcast   chan message
	countReq    chan countRequest
	done        chan struct{}
	clients     map[*client]map[string]struct{}
	subscribers map[string]map[*client]struct{}
}

var _ interfaces.NotificationBus = &Hub{}

type HubOption func(*Hub)

// WithCheckOrigin sets the origin policy of the WebSocket handshake
func WithCheckOrigin(check func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = check
	}
}

// WithAuthorizer sets the policy for client subscribe requests. Without one, clients
// may only subscribe to their own user topic.
func WithAuthorizer(a Authorizer) HubOption {
	return func(h *Hub) {
		h.authorize = a
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		authorize: func(ctx context.Context, userID model.UserID, topic string) bool {
			return topic == model.UserTopic(userID)
		},
		register:    make(chan *client),
		unregister:  make(chan *client),
		subscribe:   make(chan subscription),
		broadcast:   make(chan message, publishBuffer),
		countReq:    make(chan countRequest),
		done:        make(chan struct{}),
		clients:     make(map[*client]map[string]struct{}),
		subscribers: make(map[string]map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes hub events until ctx is cancelled, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = make(map[string]struct{})

		case c := <-h.unregister:
			h.remove(c)

		case s := <-h.subscribe:
			topics, ok := h.clients[s.client]
			if !ok {
				continue
			}
			topics[s.topic] = struct{}{}
			if h.subscribers[s.topic] == nil {
				h.subscribers[s.topic] = make(map[*client]struct{})
			}
			h.subscribers[s.topic][s.client] = struct{}{}

		case m := <-h.broadcast:
			for c := range h.subscribers[m.topic] {
				select {
				case c.send <- m.payload:
				default:
					// slow consumer
					logging.Default().Warn("dropping slow WebSocket client", "user_id", c.userID)
					h.remove(c)
				}
			}

		case req := <-h.countReq:
			req.reply <- len(h.subscribers[req.topic])

		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	topics, ok := h.clients[c]
	if !ok {
		return
	}
	for topic := range topics {
		delete(h.subscribers[topic], c)
		if len(h.subscribers[topic]) == 0 {
			delete(h.subscribers, topic)
		}
	}
	delete(h.clients, c)
	close(c.send)
}

// Publish sends event to every subscriber of topic. It never blocks; events are dropped
// when the hub is saturated or stopped.
func (h *Hub) Publish(ctx context.Context, topic string, event *model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.From(ctx).Warn("failed to marshal notification", "topic", topic, "error", err.Error())
		return
	}

	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	default:
		logging.From(ctx).Warn("notification dropped, hub is busy", "topic", topic)
	}
}

// Subscribers returns the number of connections subscribed to topic
func (h *Hub) Subscribers(topic string) int {
	reply := make(chan int, 1)
	select {
	case h.countReq <- countRequest{topic: topic, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// clientMessage is a control message sent by a client. A bare "ping" text frame is
// answered with "pong" as well.
type clientMessage struct {
	Type      string `json:"type"`
	MeetingID string `json:"meeting_id,omitempty"`
}

type controlReply struct {
	Type      string `json:"type"`
	MeetingID string `json:"meeting_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

func control(r controlReply) []byte {
	raw, _ := json.Marshal(r)
	return raw
}

// ServeWS upgrades the request and subscribes the connection to topics. The caller is
// responsible for authenticating userID and authorizing topics beforehand.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID model.UserID, topics []string, hello *model.Event) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to upgrade WebSocket connection")
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return goerr.New("notification hub is stopped")
	}

	for _, topic := range topics {
		h.addSubscription(c, topic)
	}

	if hello != nil {
		if payload, err := json.Marshal(hello); err == nil {
			h.reply(c, payload)
		}
	}

	ctx := logging.With(context.Background(), logging.From(r.Context()))
	go h.writePump(c)
	go h.readPump(ctx, c)

	logging.From(r.Context()).Info("WebSocket connected", "user_id", userID, "topics", topics)
	return nil
}

func (h *Hub) addSubscription(c *client, topic string) {
	select {
	case h.subscribe <- subscription{client: c, topic: topic}:
	case <-h.done:
	}
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
		logging.From(ctx).Info("WebSocket disconnected", "user_id", c.userID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.From(ctx).Warn("WebSocket read failed", "error", err.Error())
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if string(data) == "ping" {
			h.reply(c, []byte("pong"))
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			h.reply(c, control(controlReply{Type: "pong"}))
		case "subscribe":
			if msg.MeetingID == "" {
				continue
			}
			topic := model.MeetingTopic(model.MeetingID(msg.MeetingID))
			if !h.authorize(ctx, c.userID, topic) {
				h.reply(c, control(controlReply{Type: "error", Message: "subscription denied", MeetingID: msg.MeetingID}))
				continue
			}
			h.addSubscription(c, topic)
			h.reply(c, control(controlReply{Type: "subscribed", MeetingID: msg.MeetingID}))
		}
	}
}

// reply queues a direct response to the client. The send channel may already be closed
// by the hub, so the write is guarded.
func (h *Hub) reply(c *client, payload []byte) {
	defer func() { _ = recover() }()
	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
