package interfaces

import (
	"context"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// NotificationBus fans out events to subscribers of a topic.
// Publish is fire-and-forget and never fails the caller.
type NotificationBus interface {
	Publish(ctx context.Context, topic string, event *model.Event)
}
