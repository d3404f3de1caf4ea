package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

func runIntegrationRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	newAsana := func(userID model.UserID) *model.Integration {
		return &model.Integration{
			UserID:      userID,
			Type:        types.IntegrationTypeAsana,
			IsActive:    true,
			AccessToken: "token",
			WorkspaceID: "ws-1",
			ProjectID:   "proj-1",
		}
	}

	t.Run("Create enforces one active integration per type", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		userID := newTestUserID()

		first, err := repo.Integration().Create(ctx, newAsana(userID))
		gt.NoError(t, err).Required()

		_, err = repo.Integration().Create(ctx, newAsana(userID))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, model.ErrConflict)).True()

		// a different type or an inactive one is fine
		_, err = repo.Integration().Create(ctx, &model.Integration{
			UserID: userID, Type: types.IntegrationTypeTrello, IsActive: true, APIKey: "k", APIToken: "t",
		})
		gt.NoError(t, err).Required()

		inactive := newAsana(userID)
		inactive.IsActive = false
		_, err = repo.Integration().Create(ctx, inactive)
		gt.NoError(t, err).Required()

		// another user is independent
		_, err = repo.Integration().Create(ctx, newAsana(newTestUserID()))
		gt.NoError(t, err).Required()

		active, err := repo.Integration().GetActiveByType(ctx, userID, types.IntegrationTypeAsana)
		gt.NoError(t, err).Required()
		gt.Value(t, active).NotNil().Required()
		gt.Value(t, active.ID).Equal(first.ID)

		all, err := repo.Integration().ListByUser(ctx, userID)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(3)
	})

	t.Run("RecordError increments and MarkSynced resets", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Integration().Create(ctx, newAsana(newTestUserID()))
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Integration().RecordError(ctx, created.ID, "401 unauthorized")).Required()
		gt.NoError(t, repo.Integration().RecordError(ctx, created.ID, "timeout")).Required()

		got, err := repo.Integration().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ErrorCount).Equal(2)
		gt.Value(t, got.LastError).Equal("timeout")

		at := time.Now().UTC().Truncate(time.Millisecond)
		gt.NoError(t, repo.Integration().MarkSynced(ctx, created.ID, at)).Required()

		got, err = repo.Integration().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ErrorCount).Equal(0)
		gt.Value(t, got.LastError).Equal("")
		gt.Value(t, got.LastSyncedAt).NotNil().Required()
		gt.Bool(t, got.LastSyncedAt.Equal(at)).True()
	})

	t.Run("Update keeps sync bookkeeping and rejects reactivation conflicts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		userID := newTestUserID()

		active, err := repo.Integration().Create(ctx, newAsana(userID))
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Integration().RecordError(ctx, active.ID, "boom")).Required()

		active.ProjectID = "proj-2"
		active.ErrorCount = 0
		updated, err := repo.Integration().Update(ctx, active)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.ProjectID).Equal("proj-2")
		gt.Value(t, updated.ErrorCount).Equal(1)

		inactive := newAsana(userID)
		inactive.IsActive = false
		inactive, err = repo.Integration().Create(ctx, inactive)
		gt.NoError(t, err).Required()

		inactive.IsActive = true
		_, err = repo.Integration().Update(ctx, inactive)
		gt.Bool(t, errors.Is(err, model.ErrConflict)).True()
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Integration().Create(ctx, newAsana(newTestUserID()))
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Integration().Delete(ctx, created.ID)).Required()

		got, err := repo.Integration().Get(ctx, created.ID)
		gt.NoError(t, err)
		gt.Value(t, got).Nil()
	})
}

func TestIntegrationRepository(t *testing.T) {
	runOnAllBackends(t, runIntegrationRepositoryTest)
}
