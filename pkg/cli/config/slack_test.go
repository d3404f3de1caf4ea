package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/cli/config"
	"github.com/secmon-lab/meetscribe/pkg/service/notification"
)

func TestSlack_Configure(t *testing.T) {
	t.Run("no webhook returns nop bus", func(t *testing.T) {
		cfg := config.NewSlackForTest("", "")
		gt.Bool(t, cfg.IsConfigured()).False()

		bus, err := cfg.Configure()
		gt.NoError(t, err).Required()
		_, ok := bus.(notification.Nop)
		gt.Bool(t, ok).True()
	})

	t.Run("webhook returns slack sink", func(t *testing.T) {
		cfg := config.NewSlackForTest("https://hooks.slack.com/services/T000/B000/XXXX", "https://meetscribe.example.com")
		gt.Bool(t, cfg.IsConfigured()).True()

		bus, err := cfg.Configure()
		gt.NoError(t, err).Required()
		_, ok := bus.(*notification.SlackWebhook)
		gt.Bool(t, ok).True()
	})
}
