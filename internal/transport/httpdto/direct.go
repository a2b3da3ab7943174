package httpdto

import (
	"time"

	"cardcircle/internal/services"

	"github.com/google/uuid"
)

type OpenDirectRequest struct {
	UserID string `json:"userId"`
}

type DirectDTO struct {
	ID              uuid.UUID   `json:"id"`
	Participants    []uuid.UUID `json:"participants"`
	OtherUserID     uuid.UUID   `json:"otherUserId"`
	LastMessageText string      `json:"lastMessageText"`
	LastMessageAt   *time.Time  `json:"lastMessageAt"`
	CreatedAt       time.Time   `json:"createdAt"`
}

type OpenDirectResponse struct {
	Conversation DirectDTO `json:"conversation"`
	Created      bool      `json:"created"`
}

func FromDirectSummary(s services.DirectSummary) DirectDTO {
	c := s.Conversation
	return DirectDTO{
		ID:              c.ID,
		Participants:    c.Participants(),
		OtherUserID:     s.OtherUserID,
		LastMessageText: c.LastMessageText,
		LastMessageAt:   c.LastMessageAt,
		CreatedAt:       c.CreatedAt,
	}
}

func FromDirectSummarySlice(items []services.DirectSummary) []DirectDTO {
	out := make([]DirectDTO, 0, len(items))
	for _, s := range items {
		out = append(out, FromDirectSummary(s))
	}
	return out
}
