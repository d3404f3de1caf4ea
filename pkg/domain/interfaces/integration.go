package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

// IntegrationRepository defines the interface for Integration data persistence
type IntegrationRepository interface {
	// Create creates a new integration. It fails with model.ErrConflict when the user
	// already has an active integration of the same type.
	Create(ctx context.Context, integration *model.Integration) (*model.Integration, error)

	// Get retrieves an integration by ID
	Get(ctx context.Context, id model.IntegrationID) (*model.Integration, error)

	// Update replaces the configurable fields of an integration
	Update(ctx context.Context, integration *model.Integration) (*model.Integration, error)

	// Delete deletes an integration by ID
	Delete(ctx context.Context, id model.IntegrationID) error

	// ListByUser retrieves all integrations of a user
	ListByUser(ctx context.Context, userID model.UserID) ([]*model.Integration, error)

	// GetActiveByType retrieves the active integration of the given type for a user
	GetActiveByType(ctx context.Context, userID model.UserID, integrationType types.IntegrationType) (*model.Integration, error)

	// RecordError increments the error counter and stores the last error message
	RecordError(ctx context.Context, id model.IntegrationID, message string) error

	// MarkSynced refreshes last_synced_at and clears the error counter and message
	MarkSynced(ctx context.Context, id model.IntegrationID, at time.Time) error
}
