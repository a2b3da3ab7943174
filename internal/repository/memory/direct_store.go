package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cardcircle/internal/domain/direct"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

type DirectStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*direct.Conversation
	byPair map[string]uuid.UUID
}

func NewDirectStore() *DirectStore {
	return &DirectStore{
		byID:   make(map[uuid.UUID]*direct.Conversation),
		byPair: make(map[string]uuid.UUID),
	}
}

func (s *DirectStore) Create(_ context.Context, c *direct.Conversation) error {
	c.UserLow, c.UserHigh = direct.Pair(c.UserLow, c.UserHigh)
	key := c.PairKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPair[key]; taken {
		return cardcircle_errors.ErrConflict
	}
	stored := *c
	s.byID[c.ID] = &stored
	s.byPair[key] = c.ID
	return nil
}

func (s *DirectStore) GetByID(_ context.Context, id uuid.UUID) (direct.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return direct.Conversation{}, cardcircle_errors.ErrNotFound
	}
	return *c, nil
}

func (s *DirectStore) GetByPair(_ context.Context, a, b uuid.UUID) (direct.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[direct.PairKey(a, b)]
	if !ok {
		return direct.Conversation{}, cardcircle_errors.ErrNotFound
	}
	return *s.byID[id], nil
}

func (s *DirectStore) ListByParticipant(_ context.Context, userID uuid.UUID) ([]direct.Conversation, error) {
	s.mu.RLock()
	var out []direct.Conversation
	for _, c := range s.byID {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return byRecentActivity(out[i].LastMessageAt, out[j].LastMessageAt, out[i].UpdatedAt, out[j].UpdatedAt)
	})
	return out, nil
}

func (s *DirectStore) UpdatePreview(_ context.Context, id uuid.UUID, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return cardcircle_errors.ErrNotFound
	}
	c.LastMessageText = text
	c.LastMessageAt = &at
	c.UpdatedAt = time.Now().UTC()
	return nil
}
