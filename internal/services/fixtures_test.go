package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/user"
	"cardcircle/internal/proxy"
	"cardcircle/internal/repository"
	"cardcircle/internal/repository/memory"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

type stubDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.PublicUser
	err   error
	block bool
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{users: make(map[uuid.UUID]user.PublicUser)}
}

func (d *stubDirectory) add(name, email, phone string) user.PublicUser {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := user.PublicUser{ID: uuid.New(), Name: name, Email: email, Phone: phone}
	d.users[u.ID] = u
	return u
}

func (d *stubDirectory) wait(ctx context.Context) error {
	if d.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return d.err
}

func (d *stubDirectory) FindByIdentifier(ctx context.Context, id user.Identifier) (user.PublicUser, error) {
	if err := d.wait(ctx); err != nil {
		return user.PublicUser{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if (id.Kind == user.IdentifierEmail && u.Email == id.Value) || (id.Kind == user.IdentifierPhone && u.Phone == id.Value) {
			return u, nil
		}
	}
	return user.PublicUser{}, cardcircle_errors.ErrNotFound
}

func (d *stubDirectory) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.PublicUser, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []user.PublicUser
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubObjects struct {
	keys  []string
	types []string
	block bool
}

func (o *stubObjects) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if o.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	o.keys = append(o.keys, key)
	o.types = append(o.types, contentType)
	return "https://cdn.test/" + key, nil
}

type fixture struct {
	stores     repository.Stores
	groups     *memory.GroupStore
	directory  *stubDirectory
	objects    *stubObjects
	membership *MembershipService
	directs    *DirectService
	access     *proxy.AccessControl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := memory.NewStores()
	f := &fixture{
		stores:    stores,
		groups:    stores.Groups.(*memory.GroupStore),
		directory: newStubDirectory(),
		objects:   &stubObjects{},
	}
	f.membership = NewMembershipService(stores.Groups, f.directory, f.objects, DefaultMembershipConfig(), nil)
	f.directs = NewDirectService(stores.Directs, f.directory, DefaultMembershipConfig().DirectoryTimeout, nil)
	f.access = proxy.NewAccessControl(stores.Groups, stores.Directs)
	return f
}

// reload fetches the group and fails the test when the owner lattice is broken.
func (f *fixture) reload(t *testing.T, id uuid.UUID) group.Group {
	t.Helper()
	g, err := f.stores.Groups.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload group: %v", err)
	}
	if err := g.CheckInvariants(); err != nil {
		t.Fatalf("invariant broken: %v", err)
	}
	return g
}

func expectErr(t *testing.T, err error, targets ...error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error matching %v, got nil", targets)
	}
	for _, target := range targets {
		if !errors.Is(err, target) {
			t.Fatalf("expected %v to wrap %v", err, target)
		}
	}
}
