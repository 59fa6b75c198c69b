package dispatcher

import (
	"context"
	"time"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
)

// Handler processes committed workflow events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes one subscription
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// WithTimeout bounds each call of h to d. Handlers that talk to external
// systems should use it so a stalled peer cannot hold up Close.
func WithTimeout(h Handler, d time.Duration) Handler {
	if d <= 0 {
		return h
	}
	return func(ctx context.Context, evt *event.Event) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return h(ctx, evt)
	}
}
