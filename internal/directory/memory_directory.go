package directory

import (
	"context"
	"strings"
	"sync"

	"cardcircle/internal/domain/user"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

// MemoryDirectory backs STORE_DRIVER=memory and handler tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]user.PublicUser
}

func NewMemoryDirectory(seed ...user.PublicUser) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[uuid.UUID]user.PublicUser)}
	for _, u := range seed {
		d.Put(u)
	}
	return d
}

func (d *MemoryDirectory) Put(u user.PublicUser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) FindByIdentifier(_ context.Context, id user.Identifier) (user.PublicUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		switch id.Kind {
		case user.IdentifierEmail:
			if strings.EqualFold(u.Email, id.Value) {
				return u, nil
			}
		case user.IdentifierPhone:
			if u.Phone == id.Value {
				return u, nil
			}
		}
	}
	return user.PublicUser{}, cardcircle_errors.ErrNotFound
}

func (d *MemoryDirectory) FindByIDs(_ context.Context, ids []uuid.UUID) ([]user.PublicUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []user.PublicUser
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
