package worker_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/repository/memory"
	"github.com/secmon-lab/meetscribe/pkg/service/storage"
	"github.com/secmon-lab/meetscribe/pkg/service/worker"
)

func TestCleanupWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	store, err := storage.NewLocal(t.TempDir())
	gt.NoError(t, err).Required()

	userID := model.NewUserID()
	_, err = store.Put(ctx, "u/a.mp3", strings.NewReader("audio"))
	gt.NoError(t, err).Required()

	meeting, err := repo.Meeting().Create(ctx, &model.Meeting{
		UserID: userID,
		Title:  "Weekly",
		Status: types.MeetingStatusCompleted,
		Audio:  model.AudioFile{Key: "u/a.mp3", Filename: "a.mp3", Format: "mp3"},
	})
	gt.NoError(t, err).Required()

	t.Run("recent meetings are kept", func(t *testing.T) {
		w := worker.NewCleanupWorker(repo, store)
		removed, err := w.RunOnce(ctx)
		gt.NoError(t, err).Required()
		gt.Number(t, removed).Equal(0)

		path, release, err := store.Path(ctx, "u/a.mp3")
		gt.NoError(t, err).Required()
		release()
		_, err = os.Stat(path)
		gt.NoError(t, err)
	})

	t.Run("expired audio is removed and the meeting kept", func(t *testing.T) {
		future := func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
		w := worker.NewCleanupWorker(repo, store, worker.WithClock(future))

		removed, err := w.RunOnce(ctx)
		gt.NoError(t, err).Required()
		gt.Number(t, removed).Equal(1)

		_, _, err = store.Path(ctx, "u/a.mp3")
		gt.Error(t, err).Is(model.ErrNotFound)

		stored, err := repo.Meeting().Get(ctx, meeting.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored).NotNil().Required()
		gt.Value(t, stored.Audio.Key).Equal("")
		gt.Value(t, stored.Title).Equal("Weekly")

		// a second pass finds nothing to do
		removed, err = w.RunOnce(ctx)
		gt.NoError(t, err).Required()
		gt.Number(t, removed).Equal(0)
	})
}

func TestCleanupWorker_StartStop(t *testing.T) {
	repo := memory.New()
	store, err := storage.NewLocal(t.TempDir())
	gt.NoError(t, err).Required()

	w := worker.NewCleanupWorker(repo, store, worker.WithInterval(10*time.Millisecond))
	gt.NoError(t, w.Start(context.Background())).Required()
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
