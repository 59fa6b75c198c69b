package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
)

// NotificationService renders committed workflow events into chat messages.
// It runs as a dispatcher handler, after the change is durable.
type NotificationService interface {
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	sender    port.MessageSender
	receiveID string
	logger    Logger
}

// NewNotificationService creates a NotificationService that posts to receiveID
func NewNotificationService(sender port.MessageSender, receiveID string, logger Logger) NotificationService {
	return &notificationServiceImpl{
		sender:    sender,
		receiveID: receiveID,
		logger:    logger,
	}
}

// HandleEvent sends one message per event
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	text := FormatEvent(evt)

	if err := s.sender.SendText(ctx, s.receiveID, text); err != nil {
		s.logger.Error("Failed to send notification",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"document_id", evt.DocumentID,
			"error", err,
		)
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent", "event_id", evt.ID, "event_type", evt.Type, "document_id", evt.DocumentID)
	return nil
}

// FormatEvent renders an event as a one-paragraph plain-text message
func FormatEvent(evt *event.Event) string {
	var b strings.Builder

	switch evt.Type {
	case event.TypeDocumentCreated:
		fmt.Fprintf(&b, "%s #%d created by %s, waiting at %s", evt.DocumentType, evt.DocumentNumber, evt.ActorID, evt.ToStage)
	case event.TypeTradeArchived:
		fmt.Fprintf(&b, "Trade record %s archived by %s", evt.DocumentID, evt.ActorID)
	case event.TypeTradeUnarchived:
		fmt.Fprintf(&b, "Trade record %s restored by %s", evt.DocumentID, evt.ActorID)
	default:
		fmt.Fprintf(&b, "%s #%d: %s by %s (%s), %s -> %s",
			evt.DocumentType, evt.DocumentNumber, evt.Action, evt.ActorID, evt.ActorRole, evt.FromStage, evt.ToStage)
		if evt.Terminal {
			b.WriteString(" [final]")
		}
	}

	if evt.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s", evt.Note)
	}
	return b.String()
}
