package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/utils/async"
	"github.com/slack-go/slack"
)

// SlackWebhook posts meeting completion and failure to a Slack incoming webhook.
// Only events on meeting topics are posted.
type SlackWebhook struct {
	url        string
	httpClient *http.Client
	baseURL    string
}

var _ interfaces.NotificationBus = &SlackWebhook{}

type SlackOption func(*SlackWebhook)

// WithSlackHTTPClient sets the HTTP client used for webhook delivery
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackWebhook) {
		s.httpClient = c
	}
}

// WithMeetingBaseURL sets the web URL that meeting links are built from
func WithMeetingBaseURL(u string) SlackOption {
	return func(s *SlackWebhook) {
		s.baseURL = u
	}
}

func NewSlackWebhook(url string, opts ...SlackOption) (*SlackWebhook, error) {
	if url == "" {
		return nil, goerr.New("Slack webhook URL is required")
	}

	s := &SlackWebhook{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SlackWebhook) Publish(ctx context.Context, topic string, event *model.Event) {
	if !strings.HasPrefix(topic, model.MeetingTopic("")) {
		return
	}
	msg := s.buildMessage(event)
	if msg == nil {
		return
	}

	async.Dispatch(ctx, "slack-webhook", func(ctx context.Context) error {
		return s.Post(ctx, msg)
	})
}

// Post delivers msg synchronously
func (s *SlackWebhook) Post(ctx context.Context, msg *slack.WebhookMessage) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.url, s.httpClient, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack webhook")
	}
	return nil
}

// buildMessage returns nil for events that are not posted
func (s *SlackWebhook) buildMessage(event *model.Event) *slack.WebhookMessage {
	if event == nil || event.Event != model.EventStatusUpdate {
		return nil
	}
	update, ok := event.Data.(*model.StatusUpdate)
	if !ok {
		return nil
	}

	var (
		color string
		title string
	)
	switch update.Status {
	case types.MeetingStatusCompleted:
		color, title = "good", "Meeting processed"
	case types.MeetingStatusFailed:
		color, title = "danger", "Meeting processing failed"
	default:
		return nil
	}

	attachment := slack.Attachment{
		Color: color,
		Title: title,
		Text:  update.Message,
		Fields: []slack.AttachmentField{
			{Title: "Meeting", Value: string(update.MeetingID), Short: true},
			{Title: "Status", Value: update.Status.String(), Short: true},
		},
	}
	if s.baseURL != "" {
		attachment.TitleLink = fmt.Sprintf("%s/meetings/%s", s.baseURL, update.MeetingID)
	}

	return &slack.WebhookMessage{
		Text:        title,
		Attachments: []slack.Attachment{attachment},
	}
}

// Multi publishes every event to all buses
type Multi []interfaces.NotificationBus

func (m Multi) Publish(ctx context.Context, topic string, event *model.Event) {
	for _, bus := range m {
		if bus != nil {
			bus.Publish(ctx, topic, event)
		}
	}
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(ctx context.Context, topic string, event *model.Event) {}
