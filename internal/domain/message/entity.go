package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ContainerType string

const (
	ContainerGroup  ContainerType = "group"
	ContainerDirect ContainerType = "direct"
)

func (t ContainerType) Valid() bool {
	return t == ContainerGroup || t == ContainerDirect
}

type Kind string

const (
	KindText Kind = "text"
	KindCard Kind = "card"
)

const (
	DefaultCardTitle = "Card"
	PreviewMaxRunes  = 120
)

var (
	ErrEmptyText     = errors.New("text is required")
	ErrUnknownKind   = errors.New("unknown message kind")
	ErrMissingCard   = errors.New("card payload is required")
	ErrCardID        = errors.New("card id is required")
	ErrCardOwner     = errors.New("card owner id is required")
	ErrTextWithCard  = errors.New("card messages carry no text")
	ErrCardWithText  = errors.New("text messages carry no card payload")
	ErrBadContainer  = errors.New("unknown container type")
	ErrPayloadFormat = errors.New("malformed card payload")
)

// Message represents the chat_messages table. Payload holds a JSON encoded
// CardReference for card messages.
type Message struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey;index:idx_messages_container,priority:4"`
	ContainerType ContainerType  `gorm:"size:16;not null;index:idx_messages_container,priority:1"`
	ContainerID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_container,priority:2"`
	AuthorID      uuid.UUID      `gorm:"type:uuid;not null"`
	Kind          Kind           `gorm:"size:16;not null"`
	Text          string         `gorm:"not null;default:''"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_messages_container,priority:3"`
}

func (Message) TableName() string {
	return "chat_messages"
}

// CardReference points at an externally owned card plus a display snapshot.
type CardReference struct {
	CardID    string                 `json:"cardId" bson:"card_id"`
	OwnerID   string                 `json:"ownerId" bson:"owner_id"`
	Title     string                 `json:"title" bson:"title"`
	Data      map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	CreatedAt *time.Time             `json:"createdAt,omitempty" bson:"created_at,omitempty"`
}

// Body is what a sender submits.
type Body struct {
	Kind Kind
	Text string
	Card *CardReference
}

// Normalize validates b and returns the canonical form: trimmed text, kind
// inferred when empty, default card title applied.
func (b Body) Normalize() (Body, error) {
	kind := b.Kind
	if kind == "" {
		if b.Card != nil {
			kind = KindCard
		} else {
			kind = KindText
		}
	}

	switch kind {
	case KindText:
		text := strings.TrimSpace(b.Text)
		if text == "" {
			return Body{}, ErrEmptyText
		}
		if b.Card != nil {
			return Body{}, ErrCardWithText
		}
		return Body{Kind: KindText, Text: text}, nil
	case KindCard:
		if b.Card == nil {
			return Body{}, ErrMissingCard
		}
		if strings.TrimSpace(b.Text) != "" {
			return Body{}, ErrTextWithCard
		}
		card := *b.Card
		card.CardID = strings.TrimSpace(card.CardID)
		card.OwnerID = strings.TrimSpace(card.OwnerID)
		card.Title = strings.TrimSpace(card.Title)
		if card.CardID == "" {
			return Body{}, ErrCardID
		}
		if card.OwnerID == "" {
			return Body{}, ErrCardOwner
		}
		if card.Title == "" {
			card.Title = DefaultCardTitle
		}
		return Body{Kind: KindCard, Card: &card}, nil
	default:
		return Body{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// New builds a message from an already normalized body.
func New(containerType ContainerType, containerID, authorID uuid.UUID, body Body, now time.Time) (Message, error) {
	m := Message{
		ID:            uuid.New(),
		ContainerType: containerType,
		ContainerID:   containerID,
		AuthorID:      authorID,
		Kind:          body.Kind,
		Text:          body.Text,
		CreatedAt:     now,
	}
	if body.Card != nil {
		raw, err := json.Marshal(body.Card)
		if err != nil {
			return Message{}, err
		}
		m.Payload = datatypes.JSON(raw)
	}
	return m, nil
}

// Card decodes the card payload. Text messages return nil.
func (m Message) Card() (*CardReference, error) {
	if m.Kind != KindCard || len(m.Payload) == 0 {
		return nil, nil
	}
	var card CardReference
	if err := json.Unmarshal(m.Payload, &card); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadFormat, err)
	}
	return &card, nil
}

// PreviewText is the denormalized last-message text stored on the container.
func (m Message) PreviewText() string {
	text := m.Text
	if m.Kind == KindCard {
		title := DefaultCardTitle
		if card, err := m.Card(); err == nil && card != nil && card.Title != "" {
			title = card.Title
		}
		text = "Shared a card: " + title
	}
	if utf8.RuneCountInString(text) <= PreviewMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewMaxRunes])
}

// Before reports whether m sorts before other under (createdAt, id) ordering.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}

// Cursor marks a position in a container's (createdAt, id) ordering.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (m Message) Cursor() Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// After reports whether m sorts strictly after c.
func (m Message) After(c Cursor) bool {
	if !m.CreatedAt.Equal(c.CreatedAt) {
		return m.CreatedAt.After(c.CreatedAt)
	}
	return m.ID.String() > c.ID.String()
}

// Query selects one page of a container's history in ascending order.
type Query struct {
	ContainerType ContainerType
	ContainerID   uuid.UUID
	After         *Cursor
	Since         *time.Time
	Limit         int
}
