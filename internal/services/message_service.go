package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardcircle/internal/domain/message"
	"cardcircle/internal/events"
	"cardcircle/internal/proxy"
	"cardcircle/internal/repository"
	cardcircle_errors "cardcircle/pkg/errors"
	"cardcircle/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageConfig struct {
	PageDefault int
	PageMax     int
}

func DefaultMessageConfig() MessageConfig {
	return MessageConfig{PageDefault: 200, PageMax: 500}
}

// ListOptions selects the page after SinceID or after Since. SinceID wins
// when both are set.
type ListOptions struct {
	SinceID *uuid.UUID
	Since   *time.Time
	Limit   int
}

type MessageService struct {
	stores repository.Stores
	access *proxy.AccessControl
	bus    events.Bus
	cfg    MessageConfig
	logger *logger.Logger
	now    func() time.Time
}

func NewMessageService(stores repository.Stores, access *proxy.AccessControl, bus events.Bus, cfg MessageConfig, l *logger.Logger) *MessageService {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg.PageDefault <= 0 {
		cfg.PageDefault = DefaultMessageConfig().PageDefault
	}
	if cfg.PageMax <= 0 {
		cfg.PageMax = DefaultMessageConfig().PageMax
	}
	if cfg.PageDefault > cfg.PageMax {
		cfg.PageDefault = cfg.PageMax
	}
	return &MessageService{
		stores: stores,
		access: access,
		bus:    bus,
		cfg:    cfg,
		logger: l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OnMessageAppended registers handler for every message persisted from now on.
func (s *MessageService) OnMessageAppended(handler events.EventHandler) error {
	if s.bus == nil {
		return fmt.Errorf("no event bus configured")
	}
	return s.bus.Subscribe(events.EventMessageAppended, handler)
}

// Send appends body to the container. The preview update and the event
// publish run after the write and never fail the send.
func (s *MessageService) Send(ctx context.Context, callerID uuid.UUID, containerType message.ContainerType, containerID uuid.UUID, body message.Body) (message.Message, error) {
	if !containerType.Valid() {
		return message.Message{}, invalid(message.ErrBadContainer.Error())
	}
	if err := s.access.CanAccessContainer(ctx, callerID, containerType, containerID); err != nil {
		return message.Message{}, err
	}
	normalized, err := body.Normalize()
	if err != nil {
		return message.Message{}, invalid(err.Error())
	}

	m, err := message.New(containerType, containerID, callerID, normalized, s.now().Truncate(time.Millisecond))
	if err != nil {
		return message.Message{}, err
	}
	if err := s.stores.Messages.Create(ctx, &m); err != nil {
		return message.Message{}, err
	}

	s.updatePreview(ctx, m)
	s.publish(ctx, m)
	return m, nil
}

func (s *MessageService) List(ctx context.Context, callerID uuid.UUID, containerType message.ContainerType, containerID uuid.UUID, opts ListOptions) ([]message.Message, error) {
	if !containerType.Valid() {
		return nil, invalid(message.ErrBadContainer.Error())
	}
	if err := s.access.CanAccessContainer(ctx, callerID, containerType, containerID); err != nil {
		return nil, err
	}

	limit := opts.Limit
	switch {
	case limit < 0:
		return nil, invalid("limit must be positive")
	case limit == 0:
		limit = s.cfg.PageDefault
	case limit > s.cfg.PageMax:
		limit = s.cfg.PageMax
	}

	q := message.Query{ContainerType: containerType, ContainerID: containerID, Limit: limit}
	switch {
	case opts.SinceID != nil:
		anchor, err := s.stores.Messages.GetByID(ctx, *opts.SinceID)
		if errors.Is(err, cardcircle_errors.ErrNotFound) || (err == nil && (anchor.ContainerType != containerType || anchor.ContainerID != containerID)) {
			return nil, notFound("sinceId does not belong to this conversation")
		}
		if err != nil {
			return nil, err
		}
		cursor := anchor.Cursor()
		q.After = &cursor
	case opts.Since != nil:
		since := opts.Since.UTC()
		q.Since = &since
	}
	return s.stores.Messages.List(ctx, q)
}

func (s *MessageService) updatePreview(ctx context.Context, m message.Message) {
	text := m.PreviewText()
	var err error
	switch m.ContainerType {
	case message.ContainerGroup:
		err = s.stores.Groups.UpdatePreview(ctx, m.ContainerID, text, m.CreatedAt)
	case message.ContainerDirect:
		err = s.stores.Directs.UpdatePreview(ctx, m.ContainerID, text, m.CreatedAt)
	}
	if err != nil {
		s.logger.WithContext(ctx).Warn("preview update failed",
			zap.String("container_type", string(m.ContainerType)),
			zap.String("container_id", m.ContainerID.String()),
			zap.String("message_id", m.ID.String()),
			zap.Error(err))
	}
}

func (s *MessageService) publish(ctx context.Context, m message.Message) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.NewMessageAppended(m)); err != nil {
		s.logger.WithContext(ctx).Warn("message event publish failed",
			zap.String("message_id", m.ID.String()),
			zap.Error(err))
	}
}
