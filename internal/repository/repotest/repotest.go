// Package repotest runs one behavioral suite against any repository.Stores
// implementation, so the in-memory, Postgres and Mongo backends are held to
// the same membership, pairing and ordering guarantees.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"cardcircle/internal/directory"
	"cardcircle/internal/domain/direct"
	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/message"
	"cardcircle/internal/domain/user"
	"cardcircle/internal/repository"
	"cardcircle/internal/services"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

// Harness describes the backend under test.
type Harness struct {
	Stores repository.Stores
	// Corrupt overwrites a group's member and admin sets without any checks.
	// The repair case is skipped when it is nil.
	Corrupt func(ctx context.Context, groupID uuid.UUID, members, admins []uuid.UUID) error
	// Precision is the timestamp resolution the backend keeps. Zero means
	// nanoseconds.
	Precision time.Duration
}

func Run(t *testing.T, h Harness) {
	t.Run("OwnerImmunity", func(t *testing.T) { ownerImmunity(t, h) })
	t.Run("IdempotentMembership", func(t *testing.T) { idempotentMembership(t, h) })
	t.Run("ConcurrentAdd", func(t *testing.T) { concurrentAdd(t, h) })
	t.Run("UniqueJoinCode", func(t *testing.T) { uniqueJoinCode(t, h) })
	t.Run("DirectPairRace", func(t *testing.T) { directPairRace(t, h) })
	t.Run("OpenOrGetRace", func(t *testing.T) { openOrGetRace(t, h) })
	t.Run("MessageOrderAndCursor", func(t *testing.T) { messageOrder(t, h) })
	t.Run("RestoreOwner", func(t *testing.T) { restoreOwner(t, h) })
	t.Run("DeleteGroup", func(t *testing.T) { deleteGroup(t, h) })
}

func (h Harness) now() time.Time {
	now := time.Now().UTC()
	if h.Precision > 0 {
		now = now.Truncate(h.Precision)
	}
	return now
}

func (h Harness) newGroup(t *testing.T, ctx context.Context) group.Group {
	t.Helper()
	g := group.New(uuid.New(), "Suite", joinCode(), h.now())
	if err := h.Stores.Groups.Create(ctx, &g); err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}

func (h Harness) load(t *testing.T, ctx context.Context, id uuid.UUID) group.Group {
	t.Helper()
	g, err := h.Stores.Groups.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("load group: %v", err)
	}
	if err := g.CheckInvariants(); err != nil {
		t.Fatalf("invariant broken: %v", err)
	}
	return g
}

func joinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func ownerImmunity(t *testing.T, h Harness) {
	ctx := context.Background()
	g := h.newGroup(t, ctx)
	admin := uuid.New()
	if _, err := h.Stores.Groups.AddMember(ctx, g.ID, admin); err != nil {
		t.Fatal(err)
	}
	if err := h.Stores.Groups.SetAdmin(ctx, g.ID, admin, true); err != nil {
		t.Fatal(err)
	}

	removed, err := h.Stores.Groups.RemoveMember(ctx, g.ID, g.OwnerID)
	if err != nil || removed {
		t.Fatalf("RemoveMember(owner) = %v, %v", removed, err)
	}
	if err := h.Stores.Groups.SetAdmin(ctx, g.ID, g.OwnerID, false); err != nil {
		t.Fatalf("SetAdmin(owner, false) = %v", err)
	}
	got := h.load(t, ctx, g.ID)
	if group.RoleOf(got, g.OwnerID) != group.RoleOwner || group.RoleOf(got, admin) != group.RoleAdmin {
		t.Fatalf("owner role = %s, admin role = %s", group.RoleOf(got, g.OwnerID), group.RoleOf(got, admin))
	}

	if err := h.Stores.Groups.SetAdmin(ctx, g.ID, admin, false); err != nil {
		t.Fatal(err)
	}
	if got := h.load(t, ctx, g.ID); group.RoleOf(got, admin) != group.RoleMember {
		t.Fatalf("demoted admin role = %s", group.RoleOf(got, admin))
	}
}

func idempotentMembership(t *testing.T, h Harness) {
	ctx := context.Background()
	g := h.newGroup(t, ctx)
	u := uuid.New()

	for i, want := range []bool{true, false} {
		added, err := h.Stores.Groups.AddMember(ctx, g.ID, u)
		if err != nil || added != want {
			t.Fatalf("add #%d = %v, %v; want %v", i+1, added, err, want)
		}
	}
	if got := h.load(t, ctx, g.ID); len(got.Members) != 2 || !got.IsMember(u) {
		t.Fatalf("members = %v", got.Members)
	}
	mine, err := h.Stores.Groups.ListByMember(ctx, u)
	if err != nil || !containsGroup(mine, g.ID) {
		t.Fatalf("ListByMember = %v, %v", mine, err)
	}

	if err := h.Stores.Groups.SetAdmin(ctx, g.ID, u, true); err != nil {
		t.Fatal(err)
	}
	for i, want := range []bool{true, false} {
		removed, err := h.Stores.Groups.RemoveMember(ctx, g.ID, u)
		if err != nil || removed != want {
			t.Fatalf("remove #%d = %v, %v; want %v", i+1, removed, err, want)
		}
	}
	if _, err := h.Stores.Groups.AddMember(ctx, g.ID, u); err != nil {
		t.Fatal(err)
	}
	if got := h.load(t, ctx, g.ID); got.IsAdmin(u) {
		t.Fatal("re-added member kept the admin flag")
	}

	stranger := uuid.New()
	if err := h.Stores.Groups.SetAdmin(ctx, g.ID, stranger, true); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("promoting a non-member = %v", err)
	}
	if _, err := h.Stores.Groups.AddMember(ctx, uuid.New(), u); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("adding to a missing group = %v", err)
	}
	if _, err := h.Stores.Groups.RemoveMember(ctx, uuid.New(), u); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("removing from a missing group = %v", err)
	}
}

func concurrentAdd(t *testing.T, h Harness) {
	ctx := context.Background()
	g := h.newGroup(t, ctx)
	u := uuid.New()

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		fails []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := h.Stores.Groups.AddMember(ctx, g.ID, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fails = append(fails, err)
			}
			if added {
				wins++
			}
		}()
	}
	wg.Wait()
	if len(fails) > 0 || wins != 1 {
		t.Fatalf("concurrent adds: %d reported added, errors %v", wins, fails)
	}
	if got := h.load(t, ctx, g.ID); len(got.Members) != 2 {
		t.Fatalf("members = %v", got.Members)
	}
}

func uniqueJoinCode(t *testing.T, h Harness) {
	ctx := context.Background()
	g := h.newGroup(t, ctx)
	dup := group.New(uuid.New(), "Copy", g.JoinCode, h.now())
	if err := h.Stores.Groups.Create(ctx, &dup); !errors.Is(err, cardcircle_errors.ErrConflict) {
		t.Fatalf("duplicate join code = %v", err)
	}
	found, err := h.Stores.Groups.GetByJoinCode(ctx, g.JoinCode)
	if err != nil || found.ID != g.ID {
		t.Fatalf("GetByJoinCode = %v, %v", found.ID, err)
	}
	if _, err := h.Stores.Groups.GetByJoinCode(ctx, joinCode()); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("unknown code = %v", err)
	}
}

func directPairRace(t *testing.T, h Harness) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []uuid.UUID
		conflicts int
		others    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			first, second := a, b
			if i%2 == 1 {
				first, second = b, a
			}
			conv := direct.New(first, second, h.now())
			err := h.Stores.Directs.Create(ctx, &conv)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, conv.ID)
			case errors.Is(err, cardcircle_errors.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()
	if len(winners) != 1 || conflicts != workers-1 || len(others) > 0 {
		t.Fatalf("winners=%d conflicts=%d errors=%v", len(winners), conflicts, others)
	}

	got, err := h.Stores.Directs.GetByPair(ctx, b, a)
	if err != nil || got.ID != winners[0] {
		t.Fatalf("GetByPair = %v, %v; want %v", got.ID, err, winners[0])
	}
	low, high := direct.Pair(a, b)
	if got.UserLow != low || got.UserHigh != high {
		t.Fatalf("stored pair = (%v, %v)", got.UserLow, got.UserHigh)
	}
	for _, u := range []uuid.UUID{a, b} {
		list, err := h.Stores.Directs.ListByParticipant(ctx, u)
		if err != nil || len(list) != 1 || list[0].ID != got.ID {
			t.Fatalf("ListByParticipant = %v, %v", list, err)
		}
	}
}

// openOrGetRace goes through the service, where losing the unique-pair race
// must fall back to the winner's row instead of failing.
func openOrGetRace(t *testing.T, h Harness) {
	ctx := context.Background()
	a := user.PublicUser{ID: uuid.New(), Name: "A"}
	b := user.PublicUser{ID: uuid.New(), Name: "B"}
	svc := services.NewDirectService(h.Stores.Directs, directory.NewMemoryDirectory(a, b), 5*time.Second, nil)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[uuid.UUID]bool)
		created int
		fails   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, other := a.ID, b.ID
			if i%2 == 1 {
				caller, other = other, caller
			}
			conv, isNew, err := svc.OpenOrGet(ctx, caller, other)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fails = append(fails, err)
				return
			}
			ids[conv.ID] = true
			if isNew {
				created++
			}
		}(i)
	}
	wg.Wait()
	if len(fails) > 0 || len(ids) != 1 || created != 1 {
		t.Fatalf("OpenOrGet race: ids=%v created=%d errors=%v", ids, created, fails)
	}
}

func messageOrder(t *testing.T, h Harness) {
	ctx := context.Background()
	containerID, otherID := uuid.New(), uuid.New()
	base := h.now()
	step := h.Precision
	if step == 0 {
		step = time.Millisecond
	}

	var want []message.Message
	offsets := []int{2, 0, 1, 0, 0, 3, 1}
	for i, off := range offsets {
		m, err := message.New(message.ContainerGroup, containerID, uuid.New(),
			message.Body{Kind: message.KindText, Text: fmt.Sprintf("m%d", i)}, base.Add(time.Duration(off)*step))
		if err != nil {
			t.Fatal(err)
		}
		if err := h.Stores.Messages.Create(ctx, &m); err != nil {
			t.Fatal(err)
		}
		want = append(want, m)
	}
	noise, _ := message.New(message.ContainerGroup, otherID, uuid.New(), message.Body{Kind: message.KindText, Text: "elsewhere"}, base)
	if err := h.Stores.Messages.Create(ctx, &noise); err != nil {
		t.Fatal(err)
	}
	sort.SliceStable(want, func(i, j int) bool { return want[i].Before(want[j]) })

	query := func(q message.Query) []message.Message {
		t.Helper()
		q.ContainerType, q.ContainerID = message.ContainerGroup, containerID
		got, err := h.Stores.Messages.List(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		return got
	}
	expect := func(name string, got, want []message.Message) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("%s: got %d messages, want %d", name, len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i].ID || !got[i].CreatedAt.Equal(want[i].CreatedAt) {
				t.Fatalf("%s: position %d = %s@%s, want %s@%s", name, i, got[i].Text, got[i].CreatedAt, want[i].Text, want[i].CreatedAt)
			}
		}
	}

	expect("full history", query(message.Query{}), want)
	expect("first page", query(message.Query{Limit: 3}), want[:3])

	// ties on created_at are broken by id, so the cursor sits inside a tie
	cursor := want[1].Cursor()
	expect("after cursor", query(message.Query{After: &cursor}), want[2:])
	expect("after cursor, limited", query(message.Query{After: &cursor, Limit: 2}), want[2:4])

	last := want[len(want)-1].Cursor()
	expect("after last", query(message.Query{After: &last}), nil)

	since := base
	var newer []message.Message
	for _, m := range want {
		if m.CreatedAt.After(since) {
			newer = append(newer, m)
		}
	}
	expect("since", query(message.Query{Since: &since}), newer)

	got, err := h.Stores.Messages.GetByID(ctx, want[0].ID)
	if err != nil || got.Text != want[0].Text || got.Kind != message.KindText {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}

	if err := h.Stores.Messages.DeleteByContainer(ctx, message.ContainerGroup, containerID); err != nil {
		t.Fatal(err)
	}
	expect("after delete", query(message.Query{}), nil)
	if _, err := h.Stores.Messages.GetByID(ctx, noise.ID); err != nil {
		t.Fatalf("other container lost its message: %v", err)
	}
}

func restoreOwner(t *testing.T, h Harness) {
	if h.Corrupt == nil {
		t.Skip("backend cannot store a broken membership")
	}
	ctx := context.Background()
	g := h.newGroup(t, ctx)
	admin, orphan := uuid.New(), uuid.New()
	if _, err := h.Stores.Groups.AddMember(ctx, g.ID, admin); err != nil {
		t.Fatal(err)
	}
	if err := h.Corrupt(ctx, g.ID, []uuid.UUID{admin}, []uuid.UUID{admin, orphan}); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	fixed, err := h.Stores.Groups.RestoreOwner(ctx, g.ID)
	if err != nil || !fixed {
		t.Fatalf("RestoreOwner = %v, %v", fixed, err)
	}
	got := h.load(t, ctx, g.ID)
	if group.RoleOf(got, admin) != group.RoleAdmin || got.IsAdmin(orphan) || got.IsMember(orphan) {
		t.Fatalf("after repair members=%v admins=%v", got.Members, got.Admins)
	}

	if fixed, err := h.Stores.Groups.RestoreOwner(ctx, g.ID); err != nil || fixed {
		t.Fatalf("second RestoreOwner = %v, %v", fixed, err)
	}
	if _, err := h.Stores.Groups.RestoreOwner(ctx, uuid.New()); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("RestoreOwner on a missing group = %v", err)
	}
}

func deleteGroup(t *testing.T, h Harness) {
	ctx := context.Background()
	g := h.newGroup(t, ctx)
	m, err := message.New(message.ContainerGroup, g.ID, g.OwnerID, message.Body{Kind: message.KindText, Text: "bye"}, h.now())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Stores.Messages.Create(ctx, &m); err != nil {
		t.Fatal(err)
	}

	if err := h.Stores.Groups.Delete(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Stores.Groups.GetByID(ctx, g.ID); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("GetByID after delete = %v", err)
	}
	if _, err := h.Stores.Messages.GetByID(ctx, m.ID); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("message survived group delete: %v", err)
	}
	if err := h.Stores.Groups.Delete(ctx, g.ID); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
	if mine, err := h.Stores.Groups.ListByMember(ctx, g.OwnerID); err != nil || containsGroup(mine, g.ID) {
		t.Fatalf("ListByMember after delete = %v, %v", mine, err)
	}
}

func containsGroup(groups []group.Group, id uuid.UUID) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}
