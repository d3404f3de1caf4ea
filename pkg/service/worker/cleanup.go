package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

const (
	// DefaultRetention is how long uploaded audio is kept
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultCleanupInterval is how often the cleanup worker runs
	DefaultCleanupInterval = 6 * time.Hour
)

// CleanupWorker removes stored audio of meetings older than the retention period.
// The meeting, its transcript and tasks are kept; only the raw recording goes away.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Deleting a missing object is a no-op, so two instances racing is harmless
type CleanupWorker struct {
	repo      interfaces.Repository
	storage   interfaces.Storage
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type CleanupOption func(*CleanupWorker)

func WithRetention(d time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		w.retention = d
	}
}

func WithInterval(d time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		w.interval = d
	}
}

func WithClock(now func() time.Time) CleanupOption {
	return func(w *CleanupWorker) {
		w.now = now
	}
}

// NewCleanupWorker creates a new worker for removing expired audio
func NewCleanupWorker(repo interfaces.Repository, storage interfaces.Storage, opts ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:      repo,
		storage:   storage,
		interval:  DefaultCleanupInterval,
		retention: DefaultRetention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background cleanup loop
// - Initial run and periodic runs happen in a background goroutine
// - Does not block server startup
func (w *CleanupWorker) Start(ctx context.Context) error {
	logging.Default().Info("Audio cleanup worker starting",
		"interval", w.interval.String(),
		"retention", w.retention.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *CleanupWorker) Stop() {
	logging.Default().Info("Audio cleanup worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Audio cleanup worker stopped")
}

func (w *CleanupWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if _, err := w.RunOnce(ctx); err != nil {
		logging.Default().Error("Initial audio cleanup failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				logging.Default().Error("Audio cleanup failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("Audio cleanup worker context cancelled")
			return
		}
	}
}

// RunOnce deletes the audio of every expired meeting and clears its storage key.
// It returns the number of recordings removed. A failure on one meeting does not stop
// the others; the first error is returned after the pass.
func (w *CleanupWorker) RunOnce(ctx context.Context) (int, error) {
	startTime := w.now()
	cutoff := startTime.Add(-w.retention)

	meetings, err := w.repo.Meeting().ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list expired meetings", goerr.V("cutoff", cutoff))
	}

	var (
		removed  int
		firstErr error
	)
	for _, m := range meetings {
		if m.Audio.Key == "" {
			continue
		}

		if err := w.storage.Delete(ctx, m.Audio.Key); err != nil {
			if firstErr == nil {
				firstErr = goerr.Wrap(err, "failed to delete audio", goerr.V("meeting_id", m.ID))
			}
			continue
		}

		m.Audio.Key = ""
		if _, err := w.repo.Meeting().Update(ctx, m); err != nil {
			if firstErr == nil {
				firstErr = goerr.Wrap(err, "failed to clear audio key", goerr.V("meeting_id", m.ID))
			}
			continue
		}
		removed++
	}

	logging.Default().Info("Audio cleanup completed",
		"removed", removed,
		"candidates", len(meetings),
		"duration", time.Since(startTime).String())

	return removed, firstErr
}
