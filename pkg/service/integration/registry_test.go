package integration_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/integration"
	"github.com/secmon-lab/meetscribe/pkg/service/integration/asana"
	"github.com/secmon-lab/meetscribe/pkg/service/integration/trello"
)

func TestDefaultRegistry(t *testing.T) {
	r := integration.Default()
	gt.Value(t, r.Supported()).Equal([]types.IntegrationType{
		types.IntegrationTypeAsana,
		types.IntegrationTypeTrello,
	})

	t.Run("asana", func(t *testing.T) {
		a, err := r.Adapter(&model.Integration{Type: types.IntegrationTypeAsana, AccessToken: "t"})
		gt.NoError(t, err).Required()
		_, ok := a.(*asana.Adapter)
		gt.Bool(t, ok).True()
	})

	t.Run("trello", func(t *testing.T) {
		a, err := r.Adapter(&model.Integration{Type: types.IntegrationTypeTrello, APIKey: "k", APIToken: "t"})
		gt.NoError(t, err).Required()
		_, ok := a.(*trello.Adapter)
		gt.Bool(t, ok).True()
	})

	t.Run("jira is a configuration error", func(t *testing.T) {
		_, err := r.Adapter(&model.Integration{Type: types.IntegrationTypeJira})
		gt.Error(t, err).Is(model.ErrConfiguration)

		var ce *model.ConfigurationError
		gt.Bool(t, errors.As(err, &ce)).True()
		gt.Value(t, ce.Type).Equal(types.IntegrationTypeJira)
	})

	t.Run("unknown type is a configuration error", func(t *testing.T) {
		_, err := r.Adapter(&model.Integration{Type: "monday"})
		gt.Error(t, err).Is(model.ErrConfiguration)
	})
}

func TestRegister(t *testing.T) {
	r := integration.NewRegistry()
	called := false
	r.Register(types.IntegrationTypeJira, func(i *model.Integration) (interfaces.IntegrationAdapter, error) {
		called = true
		return nil, errors.New("not today")
	})

	_, err := r.Adapter(&model.Integration{Type: types.IntegrationTypeJira})
	gt.Value(t, err.Error()).Equal("not today")
	gt.Bool(t, called).True()
}
