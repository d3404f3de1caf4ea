package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/service/auth"
)

type UserUseCase struct {
	repo interfaces.Repository
}

// EnsureUser returns the user identified by the token subject, creating it on first
// sight and refreshing e-mail and name when the token carries new values
func (uc *UserUseCase) EnsureUser(ctx context.Context, claims *auth.Claims) (*model.User, error) {
	if claims == nil || claims.Subject == "" {
		return nil, goerr.Wrap(model.ErrAuthentication, "token subject is missing")
	}
	id := model.UserID(claims.Subject)

	user, err := uc.repo.User().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, id))
	}

	if user == nil {
		created, err := uc.repo.User().Create(ctx, &model.User{
			ID:       id,
			Email:    claims.Email,
			FullName: claims.Name,
			IsActive: true,
		})
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return nil, goerr.Wrap(err, "failed to create user", goerr.V(UserIDKey, id))
		}

		// a concurrent request may have created the user first
		user, err = uc.repo.User().Get(ctx, id)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, id))
		}
		if user == nil {
			return nil, goerr.Wrap(model.ErrConflict, "e-mail is registered to another user", goerr.V(UserIDKey, id))
		}
	}

	if !user.IsActive {
		return nil, goerr.Wrap(ErrInactiveUser, "user is inactive", goerr.V(UserIDKey, id))
	}

	changed := false
	if claims.Email != "" && claims.Email != user.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.Name != "" && claims.Name != user.FullName {
		user.FullName = claims.Name
		changed = true
	}
	if !changed {
		return user, nil
	}

	updated, err := uc.repo.User().Update(ctx, user)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update user", goerr.V(UserIDKey, id))
	}
	return updated, nil
}

func (uc *UserUseCase) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	user, err := uc.repo.User().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, id))
	}
	if user == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "user not found", goerr.V(UserIDKey, id))
	}
	return user, nil
}
