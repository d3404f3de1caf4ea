package pipeline

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

const interruptedMessage = "Processing was interrupted"

// RecoverInterrupted marks meetings left mid-phase by an earlier process as failed so
// they can be started again. Only meetings created before the given time are touched.
func (p *Pipeline) RecoverInterrupted(ctx context.Context, before time.Time) (int, error) {
	meetings, err := p.repo.Meeting().ListCreatedBefore(ctx, before)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list meetings")
	}

	recovered := 0
	for _, m := range meetings {
		if m.Status.IsTerminal() || m.Status.CanStart() {
			continue
		}
		if !p.locks.TryLock(string(m.ID)) {
			continue
		}

		mp := &model.MeetingProgress{
			Status:        types.MeetingStatusFailed,
			StatusMessage: interruptedMessage,
			Progress:      m.Progress,
			ErrorMessage:  "interrupted",
		}
		err := p.repo.Meeting().UpdateProgress(ctx, m.ID, mp)
		p.locks.Unlock(string(m.ID))
		if err != nil {
			return recovered, goerr.Wrap(err, "failed to mark meeting interrupted", goerr.V("meeting_id", m.ID))
		}

		logging.From(ctx).Warn("meeting processing was interrupted", "meeting_id", m.ID, "status", m.Status)
		mp.Apply(m)
		p.notify(ctx, m)
		recovered++
	}
	return recovered, nil
}
