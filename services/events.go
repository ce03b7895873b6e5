package services

import (
	"context"
	"time"

	"github.com/go-playground/validator"

	"github.com/ceramicnetwork/go-pulse/models"
)

// EventService publishes poll lifecycle events for downstream consumers. Publishing is best-effort and a nil publisher
// disables it.
type EventService struct {
	publisher     models.QueuePublisher
	validator     *validator.Validate
	metricService models.MetricService
	logger        models.Logger
	now           func() time.Time
}

func NewEventService(publisher models.QueuePublisher, metricService models.MetricService, logger models.Logger) *EventService {
	return &EventService{
		publisher:     publisher,
		validator:     validator.New(),
		metricService: metricService,
		logger:        logger,
		now:           time.Now,
	}
}

func (e *EventService) Publish(ctx context.Context, eventType models.PollEventType, key models.PollKey, responderId string, score int) {
	if e.publisher == nil {
		return
	}
	event := models.PollEvent{
		Type:      eventType,
		Poll:      key.String(),
		Channel:   key.ChannelId(),
		Poster:    key.PosterId(),
		Responder: responderId,
		Score:     score,
		Timestamp: e.now().UTC(),
	}
	if err := e.validator.Struct(event); err != nil {
		e.logger.Errorf("events: invalid event %+v: %v", event, err)
		return
	}
	if msgId, err := e.publisher.SendMessage(ctx, event); err != nil {
		e.metricService.Count(ctx, models.MetricName_EventPublishFailed, 1)
		e.logger.Errorf("events: error publishing %s for %s: %v", eventType, key, err)
	} else {
		e.logger.Debugf("events: published %s for %s: %s", eventType, key, msgId)
	}
}
