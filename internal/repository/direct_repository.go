package repository

import (
	"context"
	"time"

	"cardcircle/internal/domain/direct"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresDirectRepository struct {
	db *gorm.DB
}

func NewDirectRepository(db *gorm.DB) DirectRepository {
	return &PostgresDirectRepository{db: db}
}

func (r *PostgresDirectRepository) Create(ctx context.Context, c *direct.Conversation) error {
	c.UserLow, c.UserHigh = direct.Pair(c.UserLow, c.UserHigh)
	return translateError(r.db.WithContext(ctx).Create(c).Error)
}

func (r *PostgresDirectRepository) GetByID(ctx context.Context, id uuid.UUID) (direct.Conversation, error) {
	var c direct.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return direct.Conversation{}, translateError(err)
	}
	return c, nil
}

func (r *PostgresDirectRepository) GetByPair(ctx context.Context, a, b uuid.UUID) (direct.Conversation, error) {
	low, high := direct.Pair(a, b)
	var c direct.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low = ? AND user_high = ?", low, high).
		First(&c).Error
	if err != nil {
		return direct.Conversation{}, translateError(err)
	}
	return c, nil
}

func (r *PostgresDirectRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]direct.Conversation, error) {
	var items []direct.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Order("last_message_at DESC NULLS LAST").
		Order("updated_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresDirectRepository) UpdatePreview(ctx context.Context, id uuid.UUID, text string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&direct.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"last_message_text": text,
			"last_message_at":   at,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cardcircle_errors.ErrNotFound
	}
	return nil
}
