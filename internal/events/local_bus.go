package events

import (
	"context"
	"sync"

	"cardcircle/pkg/logger"

	"go.uber.org/zap"
)

// LocalBus dispatches in-process and synchronously, in subscription order.
// A failing handler is logged and does not stop the others.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	logger   *logger.Logger
}

func NewLocalBus(l *logger.Logger) *LocalBus {
	if l == nil {
		l = logger.NewNop()
	}
	return &LocalBus{handlers: make(map[EventType][]EventHandler), logger: l}
}

func (b *LocalBus) Subscribe(eventType EventType, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *LocalBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			b.logger.WithContext(ctx).Warn("event handler failed",
				zap.String("event_type", string(event.EventType())),
				zap.String("aggregate_id", event.AggregateID()),
				zap.Error(err))
		}
	}
	return nil
}
