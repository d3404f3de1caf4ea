package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/cli/config"
)

func TestGemini(t *testing.T) {
	t.Run("no project disables the client", func(t *testing.T) {
		client, err := config.NewGeminiForTest("", "us-central1").Configure(t.Context())
		gt.NoError(t, err)
		gt.Value(t, client).Nil()
	})

	t.Run("flags carry env sources", func(t *testing.T) {
		flags := config.NewGeminiForTest("", "").Flags()
		gt.Array(t, flags).Length(2)
		gt.Value(t, flags[0].Names()[0]).Equal("gemini-project")
	})

	t.Run("log value hides nothing secret", func(t *testing.T) {
		v := config.NewGeminiForTest("my-project", "asia-northeast1").LogValue()
		gt.String(t, v.String()).Contains("my-project")
	})
}
