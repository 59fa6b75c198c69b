package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
)

// DefaultSubjectPrefix is the subject root for published events
const DefaultSubjectPrefix = "docflow.transitions"

// EventForwarder publishes committed events as JSON, one subject per
// document type
type EventForwarder struct {
	publisher port.EventPublisher
	prefix    string
	logger    *zap.Logger
}

// NewEventForwarder creates a forwarder. An empty prefix uses DefaultSubjectPrefix.
func NewEventForwarder(publisher port.EventPublisher, prefix string, logger *zap.Logger) *EventForwarder {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &EventForwarder{
		publisher: publisher,
		prefix:    prefix,
		logger:    logger,
	}
}

// Subject returns the subject an event is published on
func (f *EventForwarder) Subject(evt *event.Event) string {
	if evt.DocumentType == "" {
		return f.prefix + ".trade"
	}
	return f.prefix + "." + string(evt.DocumentType)
}

// HandleEvent publishes one event
func (f *EventForwarder) HandleEvent(ctx context.Context, evt *event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", evt.ID, err)
	}

	subject := f.Subject(evt)
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		f.logger.Warn("Failed to publish event",
			zap.String("subject", subject),
			zap.String("event_id", evt.ID),
			zap.String("document_id", evt.DocumentID),
			zap.Error(err))
		return err
	}

	f.logger.Debug("Event published",
		zap.String("subject", subject),
		zap.String("event_id", evt.ID),
		zap.String("document_id", evt.DocumentID))
	return nil
}
