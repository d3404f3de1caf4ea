package interfaces

import (
	"context"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// UserRepository defines the interface for User data persistence
type UserRepository interface {
	// Create creates a new user. It fails with model.ErrConflict if the ID or e-mail exists.
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// Get retrieves a user by ID
	Get(ctx context.Context, id model.UserID) (*model.User, error)

	// GetByEmail retrieves a user by e-mail address
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// Update replaces mutable profile fields of a user
	Update(ctx context.Context, user *model.User) (*model.User, error)
}
