package group

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewGroupSatisfiesInvariants(t *testing.T) {
	owner := uuid.New()
	g := New(owner, "Team", "ABC234", time.Now())

	if err := g.CheckInvariants(); err != nil {
		t.Fatalf("new group violates invariants: %v", err)
	}
	if RoleOf(g, owner) != RoleOwner {
		t.Fatalf("creator role = %s, want owner", RoleOf(g, owner))
	}
	if len(g.Members) != 1 || len(g.Admins) != 1 {
		t.Fatalf("members=%v admins=%v", g.Members, g.Admins)
	}
}

func TestRoleOf(t *testing.T) {
	owner, admin, member, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	orphanAdmin := uuid.New()
	g := Group{
		ID:      uuid.New(),
		OwnerID: owner,
		Members: []uuid.UUID{owner, admin, member},
		Admins:  []uuid.UUID{owner, admin, orphanAdmin},
	}

	cases := []struct {
		name string
		user uuid.UUID
		want Role
	}{
		{"owner", owner, RoleOwner},
		{"admin", admin, RoleAdmin},
		{"member", member, RoleMember},
		{"stranger", stranger, RoleNone},
		{"admin without membership is nobody", orphanAdmin, RoleNone},
		{"nil id", uuid.Nil, RoleNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleOf(g, tc.user); got != tc.want {
				t.Fatalf("RoleOf = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleOwner.AtLeast(RoleAdmin) || !RoleAdmin.AtLeast(RoleMember) {
		t.Fatal("owner must imply admin and admin must imply member")
	}
	if RoleMember.AtLeast(RoleAdmin) || RoleNone.AtLeast(RoleMember) {
		t.Fatal("lower roles must not satisfy higher ones")
	}
}

func TestCheckInvariantsDetectsViolations(t *testing.T) {
	owner, other := uuid.New(), uuid.New()
	cases := []struct {
		name string
		g    Group
	}{
		{"owner not member", Group{OwnerID: owner, Members: []uuid.UUID{other}, Admins: []uuid.UUID{owner}}},
		{"owner not admin", Group{OwnerID: owner, Members: []uuid.UUID{owner}, Admins: nil}},
		{"admin not member", Group{OwnerID: owner, Members: []uuid.UUID{owner}, Admins: []uuid.UUID{owner, other}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.g.CheckInvariants(); err == nil {
				t.Fatal("expected an invariant violation")
			}
		})
	}
}

func TestRestoreOwner(t *testing.T) {
	owner, member, ghost := uuid.New(), uuid.New(), uuid.New()
	g := Group{
		ID:      uuid.New(),
		OwnerID: owner,
		Members: []uuid.UUID{member},
		Admins:  []uuid.UUID{ghost},
	}

	if !g.RestoreOwner() {
		t.Fatal("expected RestoreOwner to report a change")
	}
	if err := g.CheckInvariants(); err != nil {
		t.Fatalf("still broken after repair: %v", err)
	}
	if RoleOf(g, member) != RoleMember {
		t.Fatalf("repair must not touch plain members")
	}
	if g.RestoreOwner() {
		t.Fatal("second repair should be a no-op")
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	owner := uuid.New()
	g := New(owner, "Team", "ABC234", time.Now())
	c := g.Clone()
	c.Members[0] = uuid.New()
	if g.Members[0] != owner {
		t.Fatal("clone shares the members slice")
	}
}
