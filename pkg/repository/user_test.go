package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

func runUserRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create, Get and GetByEmail", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newTestUserID()
		email := string(id) + "@example.com"

		created, err := repo.User().Create(ctx, &model.User{ID: id, Email: email, FullName: "Alice", IsActive: true})
		gt.NoError(t, err).Required()
		gt.Value(t, created.ID).Equal(id)

		got, err := repo.User().Get(ctx, id)
		gt.NoError(t, err).Required()
		gt.Value(t, got.FullName).Equal("Alice")

		byEmail, err := repo.User().GetByEmail(ctx, email)
		gt.NoError(t, err).Required()
		gt.Value(t, byEmail).NotNil().Required()
		gt.Value(t, byEmail.ID).Equal(id)

		_, err = repo.User().Create(ctx, &model.User{ID: id, Email: "x-" + email})
		gt.Bool(t, errors.Is(err, model.ErrConflict)).True()
	})

	t.Run("Update and missing user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := newTestUserID()

		_, err := repo.User().Create(ctx, &model.User{ID: id, Email: string(id) + "@example.com", IsActive: true})
		gt.NoError(t, err).Required()

		updated, err := repo.User().Update(ctx, &model.User{ID: id, Email: string(id) + "@example.com", FullName: "Renamed", IsActive: true})
		gt.NoError(t, err).Required()
		gt.Value(t, updated.FullName).Equal("Renamed")

		missing, err := repo.User().Get(ctx, newTestUserID())
		gt.NoError(t, err)
		gt.Value(t, missing).Nil()
	})
}

func TestUserRepository(t *testing.T) {
	runOnAllBackends(t, runUserRepositoryTest)
}
