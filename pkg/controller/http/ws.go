package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/service/notification"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

// NewTopicAuthorizer allows a user to subscribe to their own user topic and to the topics
// of meetings they own
func NewTopicAuthorizer(uc *usecase.UseCases) notification.Authorizer {
	return func(ctx context.Context, userID model.UserID, topic string) bool {
		if topic == model.UserTopic(userID) {
			return true
		}
		id, ok := strings.CutPrefix(topic, model.MeetingTopic(""))
		if !ok || id == "" {
			return false
		}
		_, err := uc.Meeting.Get(ctx, userID, model.MeetingID(id))
		return err == nil
	}
}

// handleMeetingSocket streams status updates of one meeting. The current status is sent
// right after the connection opens.
func (s *Server) handleMeetingSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	status, err := s.uc.Meeting.Status(ctx, user.ID, meetingID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	hello := &model.Event{Event: model.EventStatusUpdate, Data: status}
	if err := s.hub.ServeWS(w, r, user.ID, []string{model.MeetingTopic(status.MeetingID)}, hello); err != nil {
		logging.From(ctx).Warn("WebSocket connection failed", "error", err.Error())
	}
}

// handleUserSocket streams every notification of the caller. Meeting topics can be added
// with subscribe messages.
func (s *Server) handleUserSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	if err := s.hub.ServeWS(w, r, user.ID, []string{model.UserTopic(user.ID)}, nil); err != nil {
		logging.From(ctx).Warn("WebSocket connection failed", "error", err.Error())
	}
}
