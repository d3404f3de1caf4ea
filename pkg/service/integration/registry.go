package integration

import (
	"sync"

	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/integration/asana"
	"github.com/secmon-lab/meetscribe/pkg/service/integration/trello"
)

// Constructor builds an adapter for an integration record
type Constructor func(integration *model.Integration) (interfaces.IntegrationAdapter, error)

// Registry maps integration types to adapter constructors
type Registry struct {
	mu           sync.RWMutex
	constructors map[types.IntegrationType]Constructor
}

var _ interfaces.AdapterFactory = &Registry{}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[types.IntegrationType]Constructor),
	}
}

// Default returns a registry with the Asana and Trello adapters
func Default() *Registry {
	r := NewRegistry()
	r.Register(types.IntegrationTypeAsana, func(i *model.Integration) (interfaces.IntegrationAdapter, error) {
		a, err := asana.New(i)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	r.Register(types.IntegrationTypeTrello, func(i *model.Integration) (interfaces.IntegrationAdapter, error) {
		a, err := trello.New(i)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	return r
}

// Register sets the constructor of an integration type, replacing any previous one
func (r *Registry) Register(t types.IntegrationType, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[t] = c
}

// Supported returns the integration types that have an adapter
func (r *Registry) Supported() []types.IntegrationType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []types.IntegrationType
	for _, t := range types.AllIntegrationTypes() {
		if _, ok := r.constructors[t]; ok {
			result = append(result, t)
		}
	}
	return result
}

// Adapter builds the adapter of the integration. Types without a registered constructor
// fail with a *model.ConfigurationError.
func (r *Registry) Adapter(integration *model.Integration) (interfaces.IntegrationAdapter, error) {
	r.mu.RLock()
	c, ok := r.constructors[integration.Type]
	r.mu.RUnlock()

	if !ok {
		reason := "unsupported integration type"
		if integration.Type.IsValid() {
			reason = "integration type is not implemented"
		}
		return nil, &model.ConfigurationError{Type: integration.Type, Reason: reason}
	}
	return c(integration)
}
