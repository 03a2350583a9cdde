package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/events"
)

// NotificationService writes an audit line for each domain event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventProblemReported,
		events.EventProblemAssigned,
		events.EventProblemVerified,
		events.EventProblemResolved,
		events.EventProblemUpvoted,
		events.EventRewardRedeemed,
		events.EventCodeValidated,
	} {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("subject_id", event.SubjectID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Any("payload", event.Payload))
	return nil
}
