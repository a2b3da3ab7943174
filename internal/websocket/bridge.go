package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"cardcircle/internal/events"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventBridge pushes message events to the clients subscribed to the
// event's container channel. Every subscriber is checked against the
// container again before delivery: users who left or were removed are
// dropped from the channel, and users whose check fails for another reason
// skip this event but keep their subscription.
type EventBridge struct {
	hub        *Hub
	authorizer *ChannelAuthorizer
	log        *WebSocketLogger
}

func NewEventBridge(hub *Hub, authorizer *ChannelAuthorizer, log *WebSocketLogger) *EventBridge {
	if log == nil {
		log = NewWebSocketLogger(nil)
	}
	return &EventBridge{hub: hub, authorizer: authorizer, log: log}
}

func (b *EventBridge) Handle(ctx context.Context, event events.Event) error {
	appended, ok := event.(*events.MessageAppendedEvent)
	if !ok {
		return nil
	}
	env, err := events.NewEnvelope(appended)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	channel := b.authorizer.Channel(appended.ContainerType, appended.ContainerID)
	var skip map[uuid.UUID]struct{}
	for _, userID := range b.hub.Audience(channel) {
		_, err := b.authorizer.CanSubscribe(ctx, userID, appended.ContainerType, appended.ContainerID)
		if err == nil {
			continue
		}
		if skip == nil {
			skip = make(map[uuid.UUID]struct{})
		}
		skip[userID] = struct{}{}
		if errors.Is(err, cardcircle_errors.ErrForbidden) || errors.Is(err, cardcircle_errors.ErrNotFound) {
			n := b.hub.DropUser(channel, userID)
			b.log.Info("subscription revoked", userID, "", zap.String("channel", channel), zap.Int("connections", n))
			continue
		}
		b.log.Error("delivery check failed", userID, "", err, zap.String("channel", channel))
	}
	b.hub.BroadcastExcept(channel, data, skip)
	return nil
}
