package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"cardcircle/internal/domain/group"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func TestCreateGroupMakesCreatorOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.directory.add("Una", "una@example.com", "")

	g, err := f.membership.CreateGroup(ctx, u.ID, "  Team ")
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "Team" || g.OwnerID != u.ID {
		t.Fatalf("unexpected group: %+v", g)
	}
	if len(g.JoinCode) < 4 || len(g.JoinCode) > 8 || g.JoinCode != strings.ToUpper(g.JoinCode) {
		t.Fatalf("join code %q", g.JoinCode)
	}
	f.reload(t, g.ID)

	view, err := f.membership.GetMembers(ctx, u.ID, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Members) != 1 || view.Members[0].ID != u.ID || view.Members[0].Name != "Una" {
		t.Fatalf("members = %+v", view.Members)
	}
	if !view.IsOwner || !view.IsAdmin || view.Members[0].Role != group.RoleOwner {
		t.Fatalf("role flags wrong: %+v", view)
	}
}

func TestCreateGroupRejectsEmptyName(t *testing.T) {
	f := newFixture(t)
	_, err := f.membership.CreateGroup(context.Background(), uuid.New(), "   ")
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)
}

func TestCreateGroupRetriesJoinCodeCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	f.membership.WithJoinCodeGenerator(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	})

	first, err := f.membership.CreateGroup(ctx, uuid.New(), "One")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.membership.CreateGroup(ctx, uuid.New(), "Two")
	if err != nil {
		t.Fatalf("collision leaked to the caller: %v", err)
	}
	if first.JoinCode != "AAAAAA" || second.JoinCode != "BBBBBB" {
		t.Fatalf("codes = %s, %s", first.JoinCode, second.JoinCode)
	}
}

func TestCreateGroupGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.membership.WithJoinCodeGenerator(func() (string, error) { return "SAMESA", nil })
	if _, err := f.membership.CreateGroup(ctx, uuid.New(), "One"); err != nil {
		t.Fatal(err)
	}
	_, err := f.membership.CreateGroup(ctx, uuid.New(), "Two")
	expectErr(t, err, cardcircle_errors.ErrServiceUnavailable)
}

func TestJoinByCodeAndNonAdminCannotRemoveOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, v := f.directory.add("U", "u@x.io", ""), f.directory.add("V", "v@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")

	joined, err := f.membership.JoinByCode(ctx, v.ID, "  "+strings.ToLower(g.JoinCode)+" ")
	if err != nil {
		t.Fatal(err)
	}
	if len(joined.Members) != 2 || len(joined.Admins) != 1 || !joined.IsMember(v.ID) {
		t.Fatalf("after join: members=%v admins=%v", joined.Members, joined.Admins)
	}

	again, err := f.membership.JoinByCode(ctx, v.ID, g.JoinCode)
	if err != nil || len(again.Members) != 2 {
		t.Fatalf("second join must be a no-op: %v, %v", again.Members, err)
	}

	_, err = f.membership.RemoveMember(ctx, v.ID, g.ID, u.ID)
	expectErr(t, err, cardcircle_errors.ErrForbidden, cardcircle_errors.ErrInvalidInput)
	if HTTPStatus(err) != http.StatusForbidden {
		t.Fatalf("status = %d", HTTPStatus(err))
	}
	f.reload(t, g.ID)
}

func TestJoinByCodeUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.membership.JoinByCode(context.Background(), uuid.New(), "NOPE22")
	expectErr(t, err, cardcircle_errors.ErrNotFound)
	_, err = f.membership.JoinByCode(context.Background(), uuid.New(), "   ")
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)
}

func TestOwnerIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, w := f.directory.add("U", "u@x.io", ""), f.directory.add("W", "w@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")
	if _, err := f.membership.JoinByCode(ctx, w.ID, g.JoinCode); err != nil {
		t.Fatal(err)
	}
	if _, err := f.membership.ModifyAdmin(ctx, u.ID, g.ID, w.ID, AdminAdd); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		run  func() error
		want []error
	}{
		{"owner demotes self", func() error {
			_, err := f.membership.ModifyAdmin(ctx, u.ID, g.ID, u.ID, AdminRemove)
			return err
		}, []error{cardcircle_errors.ErrInvalidInput}},
		{"admin removes owner", func() error {
			_, err := f.membership.RemoveMember(ctx, w.ID, g.ID, u.ID)
			return err
		}, []error{cardcircle_errors.ErrInvalidInput}},
		{"admin demotes owner", func() error {
			_, err := f.membership.ModifyAdmin(ctx, w.ID, g.ID, u.ID, AdminRemove)
			return err
		}, []error{cardcircle_errors.ErrForbidden, cardcircle_errors.ErrInvalidInput}},
		{"owner leaves", func() error {
			return f.membership.LeaveGroup(ctx, u.ID, g.ID)
		}, []error{cardcircle_errors.ErrInvalidInput}},
		{"owner removes self", func() error {
			_, err := f.membership.RemoveMember(ctx, u.ID, g.ID, u.ID)
			return err
		}, []error{cardcircle_errors.ErrInvalidInput}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectErr(t, tc.run(), tc.want...)
			got := f.reload(t, g.ID)
			if got.OwnerID != u.ID || !got.IsMember(u.ID) || !got.IsAdmin(u.ID) {
				t.Fatalf("owner lost privileges: %+v", got)
			}
		})
	}
}

func TestModifyAdminIsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, a, m := f.directory.add("U", "u@x.io", ""), f.directory.add("A", "a@x.io", ""), f.directory.add("M", "m@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")
	for _, id := range []uuid.UUID{a.ID, m.ID} {
		if _, err := f.membership.JoinByCode(ctx, id, g.JoinCode); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.membership.ModifyAdmin(ctx, u.ID, g.ID, a.ID, AdminAdd); err != nil {
		t.Fatal(err)
	}

	_, err := f.membership.ModifyAdmin(ctx, a.ID, g.ID, m.ID, AdminAdd)
	expectErr(t, err, cardcircle_errors.ErrForbidden)

	_, err = f.membership.ModifyAdmin(ctx, u.ID, g.ID, uuid.New(), AdminAdd)
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)

	_, err = f.membership.ModifyAdmin(ctx, u.ID, g.ID, m.ID, "promote")
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)

	got, err := f.membership.ModifyAdmin(ctx, u.ID, g.ID, a.ID, AdminRemove)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsAdmin(a.ID) || !got.IsMember(a.ID) {
		t.Fatal("demotion must keep membership and drop admin")
	}
	if _, err := f.membership.ModifyAdmin(ctx, u.ID, g.ID, uuid.New(), AdminRemove); err != nil {
		t.Fatalf("demoting a non-member is a no-op: %v", err)
	}
	f.reload(t, g.ID)
}

func TestAddMemberByIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.directory.add("U", "u@x.io", "")
	w := f.directory.add("W", "w@x.io", "+15551234")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")

	res, err := f.membership.AddMemberByIdentifier(ctx, u.ID, g.ID, "+1 (555) 1234")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Added || res.User.ID != w.ID || res.Role != group.RoleMember {
		t.Fatalf("result = %+v", res)
	}
	res, err = f.membership.AddMemberByIdentifier(ctx, u.ID, g.ID, "W@X.IO")
	if err != nil || res.Added {
		t.Fatalf("second add must be idempotent: %+v, %v", res, err)
	}

	got := f.reload(t, g.ID)
	if len(got.Members) != 2 || !got.IsMember(w.ID) || got.IsAdmin(w.ID) {
		t.Fatalf("members = %v admins = %v", got.Members, got.Admins)
	}

	if _, err := f.membership.ModifyAdmin(ctx, u.ID, g.ID, w.ID, AdminAdd); err != nil {
		t.Fatal(err)
	}
	for identifier, want := range map[string]group.Role{"w@x.io": group.RoleAdmin, "u@x.io": group.RoleOwner} {
		res, err := f.membership.AddMemberByIdentifier(ctx, u.ID, g.ID, identifier)
		if err != nil || res.Added || res.Role != want {
			t.Fatalf("re-adding %s = %+v, %v; want role %s", identifier, res, err, want)
		}
	}

	_, err = f.membership.AddMemberByIdentifier(ctx, u.ID, g.ID, "nobody@x.io")
	expectErr(t, err, cardcircle_errors.ErrNotFound)

	_, err = f.membership.AddMemberByIdentifier(ctx, w.ID, g.ID, "u@x.io")
	expectErr(t, err, cardcircle_errors.ErrForbidden)
}

func TestAddMembersBulkSkipsUnmatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.directory.add("U", "u@x.io", "")
	a := f.directory.add("A", "a@x.io", "")
	b := f.directory.add("B", "", "+4470000")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")

	res, err := f.membership.AddMembersBulk(ctx, u.ID, g.ID, []string{"a@x.io", "A@X.IO", "+44 70000", "ghost@x.io", "u@x.io", ""})
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 2 || res.Matched != 3 {
		t.Fatalf("added=%d matched=%d", res.Added, res.Matched)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != "ghost@x.io" {
		t.Fatalf("unmatched = %v", res.Unmatched)
	}
	got := f.reload(t, g.ID)
	if !got.IsMember(a.ID) || !got.IsMember(b.ID) || len(got.Members) != 3 {
		t.Fatalf("members = %v", got.Members)
	}

	_, err = f.membership.AddMembersBulk(ctx, u.ID, g.ID, nil)
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)
}

func TestAddMembersBulkDirectoryTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.directory.add("U", "u@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")

	cfg := DefaultMembershipConfig()
	cfg.DirectoryTimeout = 20 * time.Millisecond
	slow := newStubDirectory()
	slow.block = true
	svc := NewMembershipService(f.stores.Groups, slow, f.objects, cfg, nil)

	start := time.Now()
	_, err := svc.AddMembersBulk(ctx, u.ID, g.ID, []string{"a@x.io"})
	expectErr(t, err, cardcircle_errors.ErrServiceUnavailable)
	if time.Since(start) > time.Second {
		t.Fatal("directory timeout was not applied")
	}
}

func TestRemoveMemberAndLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, a, m := f.directory.add("U", "u@x.io", ""), f.directory.add("A", "a@x.io", ""), f.directory.add("M", "m@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")
	for _, id := range []uuid.UUID{a.ID, m.ID} {
		_, _ = f.membership.JoinByCode(ctx, id, g.JoinCode)
	}
	_, _ = f.membership.ModifyAdmin(ctx, u.ID, g.ID, a.ID, AdminAdd)

	got, err := f.membership.RemoveMember(ctx, a.ID, g.ID, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsMember(m.ID) {
		t.Fatal("member still present")
	}

	if err := f.membership.LeaveGroup(ctx, a.ID, g.ID); err != nil {
		t.Fatal(err)
	}
	got = f.reload(t, g.ID)
	if got.IsMember(a.ID) || got.IsAdmin(a.ID) {
		t.Fatal("leaving must drop member and admin")
	}

	expectErr(t, f.membership.LeaveGroup(ctx, m.ID, g.ID), cardcircle_errors.ErrForbidden)
}

func TestGetMembersForbiddenAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.directory.add("U", "u@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")

	_, err := f.membership.GetMembers(ctx, uuid.New(), g.ID)
	expectErr(t, err, cardcircle_errors.ErrForbidden)
	_, err = f.membership.GetMembers(ctx, u.ID, uuid.New())
	expectErr(t, err, cardcircle_errors.ErrNotFound)

	ghost := uuid.New()
	if _, err := f.stores.Groups.AddMember(ctx, g.ID, ghost); err != nil {
		t.Fatal(err)
	}
	view, err := f.membership.GetMembers(ctx, u.ID, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Members) != 2 || view.Members[1].ID != ghost || view.Members[1].Role != group.RoleMember {
		t.Fatalf("members missing from the directory must still be listed: %+v", view.Members)
	}
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, m := f.directory.add("U", "u@x.io", ""), f.directory.add("M", "m@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")
	_, _ = f.membership.JoinByCode(ctx, m.ID, g.JoinCode)

	desc := "  weekly sync "
	got, err := f.membership.UpdateSettings(ctx, u.ID, g.ID, group.SettingsPatch{Description: &desc})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Team" || got.Description != "weekly sync" {
		t.Fatalf("settings = %q / %q", got.Name, got.Description)
	}

	blank := "  "
	_, err = f.membership.UpdateSettings(ctx, u.ID, g.ID, group.SettingsPatch{Name: &blank})
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)

	name := "Other"
	_, err = f.membership.UpdateSettings(ctx, m.ID, g.ID, group.SettingsPatch{Name: &name})
	expectErr(t, err, cardcircle_errors.ErrForbidden)

	_, err = f.membership.UpdateSettings(ctx, u.ID, g.ID, group.SettingsPatch{})
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)
}

func TestUpdateGroupPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.directory.add("U", "u@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")

	got, err := f.membership.UpdateGroupPhoto(ctx, u.ID, g.ID, pngHeader)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.objects.keys) != 1 || f.objects.types[0] != "image/png" {
		t.Fatalf("upload = %v %v", f.objects.keys, f.objects.types)
	}
	if !strings.HasPrefix(f.objects.keys[0], "groups/"+g.ID.String()+"/") || !strings.HasSuffix(f.objects.keys[0], ".png") {
		t.Fatalf("key = %s", f.objects.keys[0])
	}
	if got.PhotoURL != "https://cdn.test/"+f.objects.keys[0] {
		t.Fatalf("photo url = %s", got.PhotoURL)
	}

	_, err = f.membership.UpdateGroupPhoto(ctx, u.ID, g.ID, []byte("plain text, not an image"))
	expectErr(t, err, cardcircle_errors.ErrInvalidInput)

	cfg := DefaultMembershipConfig()
	cfg.PhotoMaxBytes = 16
	small := NewMembershipService(f.stores.Groups, f.directory, f.objects, cfg, nil)
	_, err = small.UpdateGroupPhoto(ctx, u.ID, g.ID, pngHeader)
	expectErr(t, err, cardcircle_errors.ErrTooLarge, cardcircle_errors.ErrInvalidInput)
	if HTTPStatus(err) != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", HTTPStatus(err))
	}
	if len(f.objects.keys) != 1 {
		t.Fatal("rejected photos must never reach the object store")
	}
}

func TestUpdateGroupPhotoUploadTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.directory.add("U", "u@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")

	cfg := DefaultMembershipConfig()
	cfg.UploadTimeout = 20 * time.Millisecond
	svc := NewMembershipService(f.stores.Groups, f.directory, &stubObjects{block: true}, cfg, nil)
	_, err := svc.UpdateGroupPhoto(ctx, u.ID, g.ID, pngHeader)
	expectErr(t, err, cardcircle_errors.ErrServiceUnavailable)
}

func TestRegenerateJoinCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, m := f.directory.add("U", "u@x.io", ""), f.directory.add("M", "m@x.io", "")
	codes := []string{"FIRST2", "FIRST2", "SECND3"}
	f.membership.WithJoinCodeGenerator(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	})
	g, _ := f.membership.CreateGroup(ctx, u.ID, "Team")
	_, _ = f.membership.JoinByCode(ctx, m.ID, g.JoinCode)

	got, err := f.membership.RegenerateJoinCode(ctx, u.ID, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.JoinCode != "SECND3" {
		t.Fatalf("join code = %s", got.JoinCode)
	}
	if _, err := f.membership.JoinByCode(ctx, uuid.New(), "FIRST2"); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("old code still works: %v", err)
	}
	_, err = f.membership.RegenerateJoinCode(ctx, m.ID, g.ID)
	expectErr(t, err, cardcircle_errors.ErrForbidden)
}

func TestConcurrentMembershipMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.directory.add("U", "u@x.io", "")
	g, _ := f.membership.CreateGroup(ctx, owner.ID, "Team")

	joiners := make([]uuid.UUID, 40)
	for i := range joiners {
		joiners[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range joiners {
		for k := 0; k < 2; k++ {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				if _, err := f.membership.JoinByCode(ctx, id, g.JoinCode); err != nil {
					t.Errorf("join: %v", err)
				}
			}(id)
		}
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.membership.RemoveMember(ctx, owner.ID, g.ID, owner.ID)
			_, _ = f.membership.ModifyAdmin(ctx, owner.ID, g.ID, owner.ID, AdminRemove)
		}()
	}
	wg.Wait()

	got := f.reload(t, g.ID)
	if len(got.Members) != len(joiners)+1 {
		t.Fatalf("members = %d, want %d", len(got.Members), len(joiners)+1)
	}
}

func TestRepairAllRestoresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, m := uuid.New(), uuid.New()
	healthy, _ := f.membership.CreateGroup(ctx, uuid.New(), "Healthy")
	broken, _ := f.membership.CreateGroup(ctx, u, "Broken")
	f.groups.Corrupt(broken.ID, []uuid.UUID{m}, []uuid.UUID{m, uuid.New()})

	repaired, err := f.membership.RepairAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(repaired) != 1 || repaired[0] != broken.ID {
		t.Fatalf("repaired = %v", repaired)
	}
	f.reload(t, broken.ID)
	f.reload(t, healthy.ID)

	again, err := f.membership.RepairAll(ctx)
	if err != nil || len(again) != 0 {
		t.Fatalf("second pass = %v, %v", again, err)
	}
}

func TestDeleteGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, _ := f.membership.CreateGroup(ctx, uuid.New(), "Doomed")
	if err := f.membership.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.stores.Groups.GetByID(ctx, g.ID); !errors.Is(err, cardcircle_errors.ErrNotFound) {
		t.Fatalf("group survived: %v", err)
	}
}

// TestRandomMembershipSequences drives seeded random operations, many of
// them aimed at the owner, and checks the lattice and a role model after
// every step.
func TestRandomMembershipSequences(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 2024, 99991} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			f := newFixture(t)
			ctx := context.Background()

			users := make([]uuid.UUID, 5)
			emails := make(map[uuid.UUID]string, len(users))
			for i := range users {
				email := fmt.Sprintf("user%d@example.com", i)
				u := f.directory.add(fmt.Sprintf("User %d", i), email, "")
				users[i], emails[u.ID] = u.ID, email
			}
			owner := users[0]
			g, err := f.membership.CreateGroup(ctx, owner, "Random")
			if err != nil {
				t.Fatal(err)
			}
			model := map[uuid.UUID]group.Role{owner: group.RoleOwner}

			for step := 0; step < 300; step++ {
				actor, target := users[rng.Intn(len(users))], users[rng.Intn(len(users))]
				if rng.Intn(3) == 0 {
					target = owner
				}
				actorRole, targetRole := model[actor], model[target]

				var (
					name   string
					opErr  error
					wantOK bool
					next   = targetRole
				)
				switch rng.Intn(6) {
				case 0:
					name, target, targetRole = "join", actor, actorRole
					_, opErr = f.membership.JoinByCode(ctx, actor, strings.ToLower(g.JoinCode))
					wantOK, next = true, max(actorRole, group.RoleMember)
				case 1:
					name = "add"
					_, opErr = f.membership.AddMemberByIdentifier(ctx, actor, g.ID, emails[target])
					wantOK, next = actorRole.AtLeast(group.RoleAdmin), max(targetRole, group.RoleMember)
				case 2:
					name = "remove"
					_, opErr = f.membership.RemoveMember(ctx, actor, g.ID, target)
					wantOK, next = actorRole.AtLeast(group.RoleAdmin) && target != owner, group.RoleNone
				case 3:
					name = "promote"
					_, opErr = f.membership.ModifyAdmin(ctx, actor, g.ID, target, AdminAdd)
					wantOK = actorRole == group.RoleOwner && target != owner && targetRole.AtLeast(group.RoleMember)
					next = group.RoleAdmin
				case 4:
					name = "demote"
					_, opErr = f.membership.ModifyAdmin(ctx, actor, g.ID, target, AdminRemove)
					wantOK = actorRole == group.RoleOwner && target != owner
					next = min(targetRole, group.RoleMember)
				case 5:
					name, target, targetRole = "leave", actor, actorRole
					opErr = f.membership.LeaveGroup(ctx, actor, g.ID)
					wantOK, next = actorRole.AtLeast(group.RoleMember) && actor != owner, group.RoleNone
				}

				if wantOK != (opErr == nil) {
					t.Fatalf("step %d: %s by %s on %s: err = %v, want ok = %v", step, name, actorRole, targetRole, opErr, wantOK)
				}
				if opErr != nil && !cardcircle_errors.IsClassified(opErr) {
					t.Fatalf("step %d: %s returned unclassified error %v", step, name, opErr)
				}
				if opErr == nil {
					model[target] = next
				}

				got := f.reload(t, g.ID)
				for _, u := range users {
					if have := group.RoleOf(got, u); have != model[u] {
						t.Fatalf("step %d after %s: role of user %d = %s, model says %s", step, name, indexOf(users, u), have, model[u])
					}
				}
			}
		})
	}
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
