package direct

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents the direct_conversations table. The participant
// pair is stored canonically (UserLow < UserHigh) so the unique index on
// (user_low, user_high) deduplicates both orderings.
type Conversation struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserLow         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_direct_pair,priority:1"`
	UserHigh        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_direct_pair,priority:2;index"`
	LastMessageText string     `gorm:"not null;default:''"`
	LastMessageAt   *time.Time `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Conversation) TableName() string {
	return "direct_conversations"
}

// Pair returns a and b in canonical order.
func Pair(a, b uuid.UUID) (low, high uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}

// PairKey is the canonical string form used by the document store's unique index.
func PairKey(a, b uuid.UUID) string {
	low, high := Pair(a, b)
	return low.String() + ":" + high.String()
}

func New(a, b uuid.UUID, now time.Time) Conversation {
	low, high := Pair(a, b)
	return Conversation{
		ID:        uuid.New(),
		UserLow:   low,
		UserHigh:  high,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c Conversation) Participants() []uuid.UUID {
	return []uuid.UUID{c.UserLow, c.UserHigh}
}

func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (c.UserLow == userID || c.UserHigh == userID)
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.UserLow == userID {
		return c.UserHigh
	}
	return c.UserLow
}

func (c Conversation) PairKey() string {
	return PairKey(c.UserLow, c.UserHigh)
}
