package services

import (
	"context"
	"errors"
	"time"

	"cardcircle/internal/domain/direct"
	"cardcircle/internal/repository"
	cardcircle_errors "cardcircle/pkg/errors"
	"cardcircle/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DirectSummary struct {
	Conversation direct.Conversation
	OtherUserID  uuid.UUID
}

type DirectService struct {
	directs          repository.DirectRepository
	directory        UserDirectory
	directoryTimeout time.Duration
	logger           *logger.Logger
}

func NewDirectService(directs repository.DirectRepository, directory UserDirectory, directoryTimeout time.Duration, l *logger.Logger) *DirectService {
	if l == nil {
		l = logger.NewNop()
	}
	return &DirectService{directs: directs, directory: directory, directoryTimeout: directoryTimeout, logger: l}
}

// OpenOrGet returns the single conversation for the pair, creating it when
// absent. A concurrent creator losing the unique-pair race falls back to the
// winner's row. created reports whether this call inserted it.
func (s *DirectService) OpenOrGet(ctx context.Context, callerID, otherID uuid.UUID) (direct.Conversation, bool, error) {
	if otherID == uuid.Nil {
		return direct.Conversation{}, false, invalid("userId is required")
	}
	if otherID == callerID {
		return direct.Conversation{}, false, invalid("cannot open a conversation with yourself")
	}

	existing, err := s.directs.GetByPair(ctx, callerID, otherID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, cardcircle_errors.ErrNotFound) {
		return direct.Conversation{}, false, err
	}

	if err := s.ensureUser(ctx, otherID); err != nil {
		return direct.Conversation{}, false, err
	}

	conv := direct.New(callerID, otherID, time.Now().UTC())
	err = s.directs.Create(ctx, &conv)
	if errors.Is(err, cardcircle_errors.ErrConflict) {
		s.logger.WithContext(ctx).Debug("direct pair raced, loading existing", zap.String("pair", conv.PairKey()))
		existing, err := s.directs.GetByPair(ctx, callerID, otherID)
		return existing, false, err
	}
	if err != nil {
		return direct.Conversation{}, false, err
	}
	return conv, true, nil
}

func (s *DirectService) List(ctx context.Context, callerID uuid.UUID) ([]DirectSummary, error) {
	convs, err := s.directs.ListByParticipant(ctx, callerID)
	if err != nil {
		return nil, err
	}
	out := make([]DirectSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, DirectSummary{Conversation: c, OtherUserID: c.Other(callerID)})
	}
	return out, nil
}

func (s *DirectService) ensureUser(ctx context.Context, userID uuid.UUID) error {
	if s.directory == nil {
		return nil
	}
	dirCtx, cancel := withTimeout(ctx, s.directoryTimeout)
	defer cancel()
	users, err := s.directory.FindByIDs(dirCtx, []uuid.UUID{userID})
	if err != nil {
		return unavailableOnTimeout(err, "user directory")
	}
	if len(users) == 0 {
		return notFound("user not found")
	}
	return nil
}
