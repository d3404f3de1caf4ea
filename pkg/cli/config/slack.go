package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/service/notification"
	"github.com/urfave/cli/v3"
)

// Slack holds flags of the incoming webhook that receives processing notifications
type Slack struct {
	webhookURL string
	baseURL    string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for meeting notifications",
			Category:    "Slack",
			Destination: &x.webhookURL,
			Sources:     cli.EnvVars("MEETSCRIBE_SLACK_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Base URL of the frontend, used for links in notifications",
			Category:    "Slack",
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("MEETSCRIBE_BASE_URL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("webhook", x.webhookURL != ""),
		slog.String("base_url", x.baseURL),
	)
}

// IsConfigured checks if the webhook is configured
func (x *Slack) IsConfigured() bool {
	return x.webhookURL != ""
}

// Configure returns the webhook sink, or a no-op bus when no URL is set
func (x *Slack) Configure() (interfaces.NotificationBus, error) {
	if x.webhookURL == "" {
		return notification.Nop{}, nil
	}

	var opts []notification.SlackOption
	if x.baseURL != "" {
		opts = append(opts, notification.WithMeetingBaseURL(x.baseURL))
	}
	sink, err := notification.NewSlackWebhook(x.webhookURL, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure Slack webhook")
	}
	return sink, nil
}
