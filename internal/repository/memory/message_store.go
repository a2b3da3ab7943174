package memory

import (
	"context"
	"sort"
	"sync"

	"cardcircle/internal/domain/message"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

type containerKey struct {
	Type message.ContainerType
	ID   uuid.UUID
}

// MessageStore keeps each container's history sorted by (createdAt, id).
type MessageStore struct {
	mu          sync.RWMutex
	byContainer map[containerKey][]message.Message
	byID        map[uuid.UUID]message.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byContainer: make(map[containerKey][]message.Message),
		byID:        make(map[uuid.UUID]message.Message),
	}
}

func (s *MessageStore) Create(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[m.ID]; exists {
		return cardcircle_errors.ErrConflict
	}

	key := containerKey{Type: m.ContainerType, ID: m.ContainerID}
	history := s.byContainer[key]
	i := sort.Search(len(history), func(i int) bool { return m.Before(history[i]) })
	history = append(history, message.Message{})
	copy(history[i+1:], history[i:])
	history[i] = *m

	s.byContainer[key] = history
	s.byID[m.ID] = *m
	return nil
}

func (s *MessageStore) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return message.Message{}, cardcircle_errors.ErrNotFound
	}
	return m, nil
}

func (s *MessageStore) List(_ context.Context, q message.Query) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.byContainer[containerKey{Type: q.ContainerType, ID: q.ContainerID}]
	out := make([]message.Message, 0)
	for _, m := range history {
		if q.After != nil && !m.After(*q.After) {
			continue
		}
		if q.Since != nil && !m.CreatedAt.After(*q.Since) {
			continue
		}
		out = append(out, m)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *MessageStore) DeleteByContainer(_ context.Context, containerType message.ContainerType, containerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := containerKey{Type: containerType, ID: containerID}
	for _, m := range s.byContainer[key] {
		delete(s.byID, m.ID)
	}
	delete(s.byContainer, key)
	return nil
}
