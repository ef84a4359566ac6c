package service

import (
	"context"

	"school-portal-be/internal/pkg/logger"
	"school-portal-be/pkg/events"

	"github.com/google/uuid"
)

// IEventPublisher is the publishing side of the event broker.
type IEventPublisher interface {
	Publish(ctx context.Context, evt events.Event)
}

// publishEvent is best-effort: the write has already committed, so failures are
// only logged. The request context is detached so a client hanging up right
// after the response does not drop the event.
func publishEvent(ctx context.Context, publisher IEventPublisher, log logger.ILogger, eventType events.Type, chatId uuid.UUID, targets []uuid.UUID, data interface{}) {
	evt, err := events.New(eventType, chatId, targets, data)
	if err != nil {
		log.Error("EventPublisher", "Failed to build event", map[string]interface{}{
			"error":      err,
			"event_type": eventType,
			"chat_id":    chatId,
		})
		return
	}
	publisher.Publish(context.WithoutCancel(ctx), evt)
}
