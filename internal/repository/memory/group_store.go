// Package memory holds mutex-guarded in-process stores. Each method runs
// under one lock, which gives the same per-entity atomicity the database
// stores get from single-statement updates.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/message"
	"cardcircle/internal/repository"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

type GroupStore struct {
	mu       sync.RWMutex
	groups   map[uuid.UUID]*group.Group
	codes    map[string]uuid.UUID
	messages *MessageStore
}

func NewGroupStore(messages *MessageStore) *GroupStore {
	return &GroupStore{
		groups:   make(map[uuid.UUID]*group.Group),
		codes:    make(map[string]uuid.UUID),
		messages: messages,
	}
}

// NewStores wires the three memory stores together.
func NewStores() repository.Stores {
	messages := NewMessageStore()
	return repository.Stores{
		Groups:   NewGroupStore(messages),
		Directs:  NewDirectStore(),
		Messages: messages,
	}
}

func (s *GroupStore) Create(_ context.Context, g *group.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.codes[g.JoinCode]; taken {
		return cardcircle_errors.ErrConflict
	}
	if _, exists := s.groups[g.ID]; exists {
		return cardcircle_errors.ErrConflict
	}
	stored := g.Clone()
	stored.RestoreOwner()
	s.groups[g.ID] = &stored
	s.codes[g.JoinCode] = g.ID
	return nil
}

func (s *GroupStore) GetByID(_ context.Context, id uuid.UUID) (group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return group.Group{}, cardcircle_errors.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *GroupStore) GetByJoinCode(_ context.Context, code string) (group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return group.Group{}, cardcircle_errors.ErrNotFound
	}
	return s.groups[id].Clone(), nil
}

func (s *GroupStore) ListByMember(_ context.Context, userID uuid.UUID) ([]group.Group, error) {
	s.mu.RLock()
	var out []group.Group
	for _, g := range s.groups {
		if g.IsMember(userID) {
			out = append(out, g.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return byRecentActivity(out[i].LastMessageAt, out[j].LastMessageAt, out[i].UpdatedAt, out[j].UpdatedAt)
	})
	return out, nil
}

func (s *GroupStore) ListAll(_ context.Context) ([]group.Group, error) {
	s.mu.RLock()
	out := make([]group.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// mutate runs fn on the stored group under the write lock.
func (s *GroupStore) mutate(id uuid.UUID, fn func(g *group.Group) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return cardcircle_errors.ErrNotFound
	}
	return fn(g)
}

func (s *GroupStore) AddMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	added := false
	err := s.mutate(groupID, func(g *group.Group) error {
		if indexOf(g.Members, userID) >= 0 {
			return nil
		}
		g.Members = append(g.Members, userID)
		g.UpdatedAt = time.Now().UTC()
		added = true
		return nil
	})
	return added, err
}

func (s *GroupStore) RemoveMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	removed := false
	err := s.mutate(groupID, func(g *group.Group) error {
		if userID == g.OwnerID {
			return nil
		}
		var ok bool
		g.Members, ok = without(g.Members, userID)
		g.Admins, _ = without(g.Admins, userID)
		if ok {
			g.UpdatedAt = time.Now().UTC()
			removed = true
		}
		return nil
	})
	return removed, err
}

func (s *GroupStore) SetAdmin(_ context.Context, groupID, userID uuid.UUID, isAdmin bool) error {
	return s.mutate(groupID, func(g *group.Group) error {
		if !isAdmin && userID == g.OwnerID {
			return nil
		}
		if indexOf(g.Members, userID) < 0 {
			return cardcircle_errors.ErrNotFound
		}
		if isAdmin {
			if indexOf(g.Admins, userID) < 0 {
				g.Admins = append(g.Admins, userID)
			}
		} else {
			g.Admins, _ = without(g.Admins, userID)
		}
		g.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *GroupStore) UpdateSettings(_ context.Context, groupID uuid.UUID, patch group.SettingsPatch) error {
	return s.mutate(groupID, func(g *group.Group) error {
		if patch.Name != nil {
			g.Name = *patch.Name
		}
		if patch.Description != nil {
			g.Description = *patch.Description
		}
		g.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *GroupStore) UpdatePhoto(_ context.Context, groupID uuid.UUID, url string) error {
	return s.mutate(groupID, func(g *group.Group) error {
		g.PhotoURL = url
		g.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *GroupStore) UpdateJoinCode(_ context.Context, groupID uuid.UUID, code string) error {
	return s.mutate(groupID, func(g *group.Group) error {
		if owner, taken := s.codes[code]; taken && owner != groupID {
			return cardcircle_errors.ErrConflict
		}
		delete(s.codes, g.JoinCode)
		g.JoinCode = code
		s.codes[code] = groupID
		g.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *GroupStore) UpdatePreview(_ context.Context, groupID uuid.UUID, text string, at time.Time) error {
	return s.mutate(groupID, func(g *group.Group) error {
		g.LastMessageText = text
		g.LastMessageAt = &at
		g.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *GroupStore) RestoreOwner(_ context.Context, groupID uuid.UUID) (bool, error) {
	repaired := false
	err := s.mutate(groupID, func(g *group.Group) error {
		repaired = g.RestoreOwner()
		return nil
	})
	return repaired, err
}

func (s *GroupStore) Delete(ctx context.Context, groupID uuid.UUID) error {
	s.mu.Lock()
	g, ok := s.groups[groupID]
	if !ok {
		s.mu.Unlock()
		return cardcircle_errors.ErrNotFound
	}
	delete(s.codes, g.JoinCode)
	delete(s.groups, groupID)
	s.mu.Unlock()

	if s.messages != nil {
		return s.messages.DeleteByContainer(ctx, message.ContainerGroup, groupID)
	}
	return nil
}

// Corrupt overwrites the stored member sets without any checks. Tests use it
// to simulate legacy rows that the repair tool must fix.
func (s *GroupStore) Corrupt(groupID uuid.UUID, members, admins []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		g.Members = append([]uuid.UUID(nil), members...)
		g.Admins = append([]uuid.UUID(nil), admins...)
	}
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}

func without(ids []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	i := indexOf(ids, id)
	if i < 0 {
		return ids, false
	}
	out := make([]uuid.UUID, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...), true
}

// byRecentActivity orders by last message desc with nulls last, then by updated desc.
func byRecentActivity(aLast, bLast *time.Time, aUpdated, bUpdated time.Time) bool {
	switch {
	case aLast != nil && bLast != nil && !aLast.Equal(*bLast):
		return aLast.After(*bLast)
	case aLast != nil && bLast == nil:
		return true
	case aLast == nil && bLast != nil:
		return false
	default:
		return aUpdated.After(bUpdated)
	}
}
