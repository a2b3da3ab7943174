package repository

import (
	"context"

	"cardcircle/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	return translateError(r.db.WithContext(ctx).Create(m).Error)
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return message.Message{}, translateError(err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) List(ctx context.Context, q message.Query) ([]message.Message, error) {
	tx := r.db.WithContext(ctx).
		Where("container_type = ? AND container_id = ?", q.ContainerType, q.ContainerID)
	if q.After != nil {
		tx = tx.Where("(created_at, id) > (?, ?)", q.After.CreatedAt, q.After.ID)
	}
	if q.Since != nil {
		tx = tx.Where("created_at > ?", *q.Since)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var items []message.Message
	if err := tx.Order("created_at ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresMessageRepository) DeleteByContainer(ctx context.Context, containerType message.ContainerType, containerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("container_type = ? AND container_id = ?", containerType, containerID).
		Delete(&message.Message{}).Error
}
