package events

import (
	"context"
	"time"

	"cardcircle/internal/domain/message"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageAppended EventType = "message.appended"
)

const (
	AggregateTypeMessage = "message"
)

// Redis channel prefixes
const (
	ChannelPrefixGroup  = "channel:group:"
	ChannelPrefixDirect = "channel:direct:"
)

type Event interface {
	EventType() EventType
	AggregateID() string
	OccurredAt() time.Time
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to EventHandler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to subscribers. Publish errors never undo the write
// that produced the event.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler) error
}

type BaseEvent struct {
	EventTypeVal EventType `json:"event_type"`
	Timestamp    time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventType() EventType  { return e.EventTypeVal }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// MessageAppendedEvent fires once per persisted message.
type MessageAppendedEvent struct {
	BaseEvent
	MessageID     uuid.UUID              `json:"message_id"`
	ContainerType message.ContainerType  `json:"container_type"`
	ContainerID   uuid.UUID              `json:"container_id"`
	AuthorID      uuid.UUID              `json:"author_id"`
	Kind          message.Kind           `json:"kind"`
	Text          string                 `json:"text,omitempty"`
	Card          *message.CardReference `json:"card,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func (e *MessageAppendedEvent) AggregateID() string { return e.MessageID.String() }

func NewMessageAppended(m message.Message) *MessageAppendedEvent {
	card, _ := m.Card()
	return &MessageAppendedEvent{
		BaseEvent:     BaseEvent{EventTypeVal: EventMessageAppended, Timestamp: time.Now().UTC()},
		MessageID:     m.ID,
		ContainerType: m.ContainerType,
		ContainerID:   m.ContainerID,
		AuthorID:      m.AuthorID,
		Kind:          m.Kind,
		Text:          m.Text,
		Card:          card,
		CreatedAt:     m.CreatedAt,
	}
}
