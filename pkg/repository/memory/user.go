package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[model.UserID]*model.User
}

func newUserRepository() *userRepository {
	return &userRepository{
		users: make(map[model.UserID]*model.User),
	}
}

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = model.NewUserID()
	}
	if _, exists := r.users[user.ID]; exists {
		return nil, goerr.Wrap(model.ErrConflict, "user already exists", goerr.V("id", user.ID))
	}
	if user.Email != "" {
		for _, u := range r.users {
			if strings.EqualFold(u.Email, user.Email) {
				return nil, goerr.Wrap(model.ErrConflict, "email already registered", goerr.V("id", user.ID))
			}
		}
	}

	now := time.Now().UTC()
	created := copyUser(user)
	created.CreatedAt = now
	created.UpdatedAt = now
	r.users[created.ID] = created

	return copyUser(created), nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.users[id]
	if !exists {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.users[user.ID]
	if !exists {
		return nil, nil
	}

	existing.Email = user.Email
	existing.FullName = user.FullName
	existing.IsActive = user.IsActive
	existing.UpdatedAt = time.Now().UTC()

	return copyUser(existing), nil
}
