package worker

import (
	"github.com/urbanecho/civic-service/internal/service"
)

// StartEventSubscribers registers the in-process event handlers.
func StartEventSubscribers(notifications *service.NotificationService, awards *service.CoinAwardService) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if awards != nil {
		awards.RegisterHandlers()
	}
}
