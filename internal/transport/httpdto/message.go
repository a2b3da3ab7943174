package httpdto

import (
	"time"

	"cardcircle/internal/domain/message"

	"github.com/google/uuid"
)

type CardPayload struct {
	CardID    string                 `json:"cardId"`
	OwnerID   string                 `json:"ownerId"`
	Title     string                 `json:"title"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt *time.Time             `json:"createdAt,omitempty"`
}

func (p *CardPayload) toReference() *message.CardReference {
	if p == nil {
		return nil
	}
	return &message.CardReference{
		CardID:    p.CardID,
		OwnerID:   p.OwnerID,
		Title:     p.Title,
		Data:      p.Data,
		CreatedAt: p.CreatedAt,
	}
}

type SendMessageRequest struct {
	Kind string       `json:"kind"`
	Text string       `json:"text"`
	Card *CardPayload `json:"card"`
}

func (r SendMessageRequest) Body() message.Body {
	return message.Body{Kind: message.Kind(r.Kind), Text: r.Text, Card: r.Card.toReference()}
}

type ShareCardRequest struct {
	GroupID string       `json:"groupId"`
	Card    *CardPayload `json:"card"`
}

func (r ShareCardRequest) Body() message.Body {
	return message.Body{Kind: message.KindCard, Card: r.Card.toReference()}
}

type MessageDTO struct {
	ID            uuid.UUID    `json:"id"`
	ContainerType string       `json:"containerType"`
	ContainerID   uuid.UUID    `json:"containerId"`
	AuthorID      uuid.UUID    `json:"authorId"`
	Kind          string       `json:"kind"`
	Text          string       `json:"text,omitempty"`
	Card          *CardPayload `json:"card,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

func FromMessage(m message.Message) MessageDTO {
	dto := MessageDTO{
		ID:            m.ID,
		ContainerType: string(m.ContainerType),
		ContainerID:   m.ContainerID,
		AuthorID:      m.AuthorID,
		Kind:          string(m.Kind),
		Text:          m.Text,
		CreatedAt:     m.CreatedAt,
	}
	if card, err := m.Card(); err == nil && card != nil {
		dto.Card = &CardPayload{
			CardID:    card.CardID,
			OwnerID:   card.OwnerID,
			Title:     card.Title,
			Data:      card.Data,
			CreatedAt: card.CreatedAt,
		}
	}
	return dto
}

func FromMessageSlice(items []message.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(items))
	for _, m := range items {
		out = append(out, FromMessage(m))
	}
	return out
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
}
