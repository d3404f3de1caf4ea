package notification

import (
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/slack-go/slack"
)

func (s *SlackWebhook) BuildMessage(event *model.Event) *slack.WebhookMessage {
	return s.buildMessage(event)
}
