package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

type integrationRepository struct {
	mu           sync.RWMutex
	integrations map[model.IntegrationID]*model.Integration
}

func newIntegrationRepository() *integrationRepository {
	return &integrationRepository{
		integrations: make(map[model.IntegrationID]*model.Integration),
	}
}

func copyIntegration(i *model.Integration) *model.Integration {
	c := *i
	c.TokenExpiresAt = copyTime(i.TokenExpiresAt)
	c.LastSyncedAt = copyTime(i.LastSyncedAt)
	return &c
}

// activeConflict returns true when another active integration of the same type exists.
// Caller must hold the lock.
func (r *integrationRepository) activeConflict(i *model.Integration) bool {
	if !i.IsActive {
		return false
	}
	for _, existing := range r.integrations {
		if existing.ID != i.ID && existing.UserID == i.UserID && existing.Type == i.Type && existing.IsActive {
			return true
		}
	}
	return false
}

func (r *integrationRepository) Create(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeConflict(integration) {
		return nil, goerr.Wrap(model.ErrConflict, "active integration already exists",
			goerr.V("user_id", integration.UserID), goerr.V("type", integration.Type))
	}

	now := time.Now().UTC()
	created := copyIntegration(integration)
	if created.ID == "" {
		created.ID = model.NewIntegrationID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	r.integrations[created.ID] = created
	return copyIntegration(created), nil
}

func (r *integrationRepository) Get(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, exists := r.integrations[id]
	if !exists {
		return nil, nil
	}
	return copyIntegration(i), nil
}

func (r *integrationRepository) Update(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.integrations[integration.ID]
	if !exists {
		return nil, nil
	}

	updated := copyIntegration(integration)
	updated.UserID = existing.UserID
	updated.Type = existing.Type
	if r.activeConflict(updated) {
		return nil, goerr.Wrap(model.ErrConflict, "active integration already exists",
			goerr.V("user_id", updated.UserID), goerr.V("type", updated.Type))
	}

	// Sync bookkeeping is owned by RecordError and MarkSynced
	updated.LastSyncedAt = copyTime(existing.LastSyncedAt)
	updated.LastError = existing.LastError
	updated.ErrorCount = existing.ErrorCount
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.integrations[updated.ID] = updated

	return copyIntegration(updated), nil
}

func (r *integrationRepository) Delete(ctx context.Context, id model.IntegrationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.integrations, id)
	return nil
}

func (r *integrationRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.Integration{}
	for _, i := range r.integrations {
		if i.UserID == userID {
			result = append(result, copyIntegration(i))
		}
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.Before(result[b].CreatedAt)
	})
	return result, nil
}

func (r *integrationRepository) GetActiveByType(ctx context.Context, userID model.UserID, integrationType types.IntegrationType) (*model.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, i := range r.integrations {
		if i.UserID == userID && i.Type == integrationType && i.IsActive {
			return copyIntegration(i), nil
		}
	}
	return nil, nil
}

func (r *integrationRepository) RecordError(ctx context.Context, id model.IntegrationID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, exists := r.integrations[id]
	if !exists {
		return nil
	}
	i.ErrorCount++
	i.LastError = message
	i.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *integrationRepository) MarkSynced(ctx context.Context, id model.IntegrationID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, exists := r.integrations[id]
	if !exists {
		return nil
	}
	synced := at.UTC()
	i.LastSyncedAt = &synced
	i.ErrorCount = 0
	i.LastError = ""
	i.UpdatedAt = time.Now().UTC()
	return nil
}
