package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/user"
	"cardcircle/internal/repository"
	cardcircle_errors "cardcircle/pkg/errors"
	"cardcircle/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MembershipConfig struct {
	PhotoMaxBytes    int64
	UploadTimeout    time.Duration
	DirectoryTimeout time.Duration
}

func DefaultMembershipConfig() MembershipConfig {
	return MembershipConfig{
		PhotoMaxBytes:    5 * 1024 * 1024,
		UploadTimeout:    15 * time.Second,
		DirectoryTimeout: 5 * time.Second,
	}
}

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type AdminAction string

const (
	AdminAdd    AdminAction = "add"
	AdminRemove AdminAction = "remove"
)

// MemberProfile is one entry of a member listing.
type MemberProfile struct {
	user.PublicUser
	Role group.Role
}

type MembersView struct {
	Group   group.Group
	Members []MemberProfile
	IsOwner bool
	IsAdmin bool
}

// AddMemberResult carries the target's role after the add, which is
// higher than member when the target already held a role.
type AddMemberResult struct {
	User  user.PublicUser
	Role  group.Role
	Added bool
}

type BulkAddResult struct {
	Added     int
	Matched   int
	Unmatched []string
}

// MembershipService is the only writer of group membership and roles.
type MembershipService struct {
	groups    repository.GroupRepository
	directory UserDirectory
	objects   ObjectStore
	codes     JoinCodeGenerator
	cfg       MembershipConfig
	logger    *logger.Logger
}

func NewMembershipService(groups repository.GroupRepository, directory UserDirectory, objects ObjectStore, cfg MembershipConfig, l *logger.Logger) *MembershipService {
	if l == nil {
		l = logger.NewNop()
	}
	return &MembershipService{
		groups:    groups,
		directory: directory,
		objects:   objects,
		codes:     RandomJoinCode,
		cfg:       cfg,
		logger:    l,
	}
}

// WithJoinCodeGenerator replaces the code source. Tests use it to force collisions.
func (s *MembershipService) WithJoinCodeGenerator(gen JoinCodeGenerator) *MembershipService {
	s.codes = gen
	return s
}

func (s *MembershipService) CreateGroup(ctx context.Context, callerID uuid.UUID, name string) (group.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return group.Group{}, invalid("name is required")
	}

	for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return group.Group{}, err
		}
		g := group.New(callerID, name, code, time.Now().UTC())
		err = s.groups.Create(ctx, &g)
		if errors.Is(err, cardcircle_errors.ErrConflict) {
			s.logger.WithContext(ctx).Debug("join code collision", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return group.Group{}, err
		}
		return g, nil
	}
	return group.Group{}, fmt.Errorf("%w: could not allocate a unique join code", cardcircle_errors.ErrServiceUnavailable)
}

func (s *MembershipService) JoinByCode(ctx context.Context, callerID uuid.UUID, code string) (group.Group, error) {
	code = NormalizeJoinCode(code)
	if code == "" {
		return group.Group{}, invalid("join code is required")
	}
	g, err := s.groups.GetByJoinCode(ctx, code)
	if errors.Is(err, cardcircle_errors.ErrNotFound) {
		return group.Group{}, notFound("no group uses that join code")
	}
	if err != nil {
		return group.Group{}, err
	}
	if g.IsMember(callerID) {
		return g, nil
	}
	if _, err := s.groups.AddMember(ctx, g.ID, callerID); err != nil {
		return group.Group{}, err
	}
	return s.groups.GetByID(ctx, g.ID)
}

func (s *MembershipService) ListMyGroups(ctx context.Context, callerID uuid.UUID) ([]group.Group, error) {
	return s.groups.ListByMember(ctx, callerID)
}

func (s *MembershipService) GetGroup(ctx context.Context, callerID, groupID uuid.UUID) (group.Group, error) {
	g, err := s.load(ctx, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if group.RoleOf(g, callerID) == group.RoleNone {
		return group.Group{}, forbidden("not a member of this group")
	}
	return g, nil
}

func (s *MembershipService) GetMembers(ctx context.Context, callerID, groupID uuid.UUID) (MembersView, error) {
	g, err := s.GetGroup(ctx, callerID, groupID)
	if err != nil {
		return MembersView{}, err
	}

	dirCtx, cancel := withTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	profiles, err := s.directory.FindByIDs(dirCtx, g.Members)
	if err != nil {
		return MembersView{}, unavailableOnTimeout(err, "user directory")
	}
	byID := make(map[uuid.UUID]user.PublicUser, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	members := make([]MemberProfile, 0, len(g.Members))
	for _, id := range g.Members {
		profile, ok := byID[id]
		if !ok {
			profile = user.PublicUser{ID: id}
		}
		members = append(members, MemberProfile{PublicUser: profile, Role: group.RoleOf(g, id)})
	}

	role := group.RoleOf(g, callerID)
	return MembersView{
		Group:   g,
		Members: members,
		IsOwner: role == group.RoleOwner,
		IsAdmin: role.AtLeast(group.RoleAdmin),
	}, nil
}

func (s *MembershipService) AddMemberByIdentifier(ctx context.Context, callerID, groupID uuid.UUID, identifier string) (AddMemberResult, error) {
	g, err := s.requireManager(ctx, callerID, groupID)
	if err != nil {
		return AddMemberResult{}, err
	}
	id, err := user.ParseIdentifier(identifier)
	if err != nil {
		return AddMemberResult{}, invalid(err.Error())
	}

	dirCtx, cancel := withTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	target, err := s.directory.FindByIdentifier(dirCtx, id)
	if errors.Is(err, cardcircle_errors.ErrNotFound) {
		return AddMemberResult{}, notFound("no user matches that identifier")
	}
	if err != nil {
		return AddMemberResult{}, unavailableOnTimeout(err, "user directory")
	}

	added, err := s.groups.AddMember(ctx, g.ID, target.ID)
	if err != nil {
		return AddMemberResult{}, err
	}
	if g, err = s.groups.GetByID(ctx, g.ID); err != nil {
		return AddMemberResult{}, err
	}
	return AddMemberResult{User: target, Role: group.RoleOf(g, target.ID), Added: added}, nil
}

// AddMembersBulk resolves every identifier first, then adds the matches.
// Unmatched or malformed identifiers are reported, not fatal.
func (s *MembershipService) AddMembersBulk(ctx context.Context, callerID, groupID uuid.UUID, identifiers []string) (BulkAddResult, error) {
	g, err := s.requireManager(ctx, callerID, groupID)
	if err != nil {
		return BulkAddResult{}, err
	}

	var result BulkAddResult
	seen := make(map[string]bool)
	var parsed []user.Identifier
	for _, raw := range identifiers {
		id, err := user.ParseIdentifier(raw)
		if err != nil {
			if strings.TrimSpace(raw) != "" {
				result.Unmatched = append(result.Unmatched, raw)
			}
			continue
		}
		if seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		parsed = append(parsed, id)
	}
	if len(parsed) == 0 && len(result.Unmatched) == 0 {
		return BulkAddResult{}, invalid("at least one identifier is required")
	}

	dirCtx, cancel := withTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()
	targets := make(map[uuid.UUID]bool)
	var order []uuid.UUID
	for _, id := range parsed {
		target, err := s.directory.FindByIdentifier(dirCtx, id)
		if errors.Is(err, cardcircle_errors.ErrNotFound) {
			result.Unmatched = append(result.Unmatched, id.Value)
			continue
		}
		if err != nil {
			return BulkAddResult{}, unavailableOnTimeout(err, "user directory")
		}
		if !targets[target.ID] {
			targets[target.ID] = true
			order = append(order, target.ID)
		}
	}
	result.Matched = len(order)

	for _, userID := range order {
		added, err := s.groups.AddMember(ctx, g.ID, userID)
		if err != nil {
			return result, err
		}
		if added {
			result.Added++
		}
	}
	return result, nil
}

// ModifyAdmin is restricted to the owner. The owner's own admin flag is fixed.
func (s *MembershipService) ModifyAdmin(ctx context.Context, callerID, groupID, targetID uuid.UUID, action AdminAction) (group.Group, error) {
	if action != AdminAdd && action != AdminRemove {
		return group.Group{}, invalid(`action must be "add" or "remove"`)
	}
	g, err := s.GetGroup(ctx, callerID, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if group.RoleOf(g, callerID) != group.RoleOwner {
		if targetID == g.OwnerID {
			return group.Group{}, fmt.Errorf("%w: %w: only the owner can change admins and the owner's admin status is fixed",
				cardcircle_errors.ErrForbidden, cardcircle_errors.ErrInvalidInput)
		}
		return group.Group{}, forbidden("only the owner can change admins")
	}
	if targetID == g.OwnerID {
		return group.Group{}, invalid("the owner's admin status cannot change")
	}

	switch action {
	case AdminAdd:
		if !g.IsMember(targetID) {
			return group.Group{}, invalid("user must be a member before becoming admin")
		}
		err = s.groups.SetAdmin(ctx, g.ID, targetID, true)
		if errors.Is(err, cardcircle_errors.ErrNotFound) {
			return group.Group{}, invalid("user must be a member before becoming admin")
		}
	case AdminRemove:
		err = s.groups.SetAdmin(ctx, g.ID, targetID, false)
		if errors.Is(err, cardcircle_errors.ErrNotFound) {
			err = nil
		}
	}
	if err != nil {
		return group.Group{}, err
	}
	return s.groups.GetByID(ctx, g.ID)
}

func (s *MembershipService) RemoveMember(ctx context.Context, callerID, groupID, targetID uuid.UUID) (group.Group, error) {
	g, err := s.load(ctx, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if !group.RoleOf(g, callerID).AtLeast(group.RoleAdmin) {
		if targetID == g.OwnerID {
			return group.Group{}, fmt.Errorf("%w: %w: only owners or admins can remove members and the owner can never be removed",
				cardcircle_errors.ErrForbidden, cardcircle_errors.ErrInvalidInput)
		}
		return group.Group{}, forbidden("only owners or admins can remove members")
	}
	if targetID == g.OwnerID {
		return group.Group{}, invalid("the owner cannot be removed")
	}
	if _, err := s.groups.RemoveMember(ctx, g.ID, targetID); err != nil {
		return group.Group{}, err
	}
	return s.groups.GetByID(ctx, g.ID)
}

func (s *MembershipService) LeaveGroup(ctx context.Context, callerID, groupID uuid.UUID) error {
	g, err := s.GetGroup(ctx, callerID, groupID)
	if err != nil {
		return err
	}
	if callerID == g.OwnerID {
		return invalid("the owner cannot leave; transfer ownership or delete the group")
	}
	_, err = s.groups.RemoveMember(ctx, g.ID, callerID)
	return err
}

func (s *MembershipService) UpdateSettings(ctx context.Context, callerID, groupID uuid.UUID, patch group.SettingsPatch) (group.Group, error) {
	g, err := s.requireManager(ctx, callerID, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if patch.Empty() {
		return group.Group{}, invalid("nothing to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return group.Group{}, invalid("name cannot be empty")
		}
		patch.Name = &name
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		patch.Description = &description
	}
	if err := s.groups.UpdateSettings(ctx, g.ID, patch); err != nil {
		return group.Group{}, err
	}
	return s.groups.GetByID(ctx, g.ID)
}

// UpdateGroupPhoto checks size and sniffed content type before anything is
// sent to the object store.
func (s *MembershipService) UpdateGroupPhoto(ctx context.Context, callerID, groupID uuid.UUID, data []byte) (group.Group, error) {
	g, err := s.requireManager(ctx, callerID, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if len(data) == 0 {
		return group.Group{}, invalid("photo is required")
	}
	if s.cfg.PhotoMaxBytes > 0 && int64(len(data)) > s.cfg.PhotoMaxBytes {
		return group.Group{}, fmt.Errorf("%w: %w: photo exceeds %d bytes",
			cardcircle_errors.ErrTooLarge, cardcircle_errors.ErrInvalidInput, s.cfg.PhotoMaxBytes)
	}
	mtype := mimetype.Detect(data)
	if !allowedPhotoTypes[mtype.String()] {
		return group.Group{}, invalid(fmt.Sprintf("unsupported image type %q (jpeg, png, webp or gif)", mtype.String()))
	}

	key := fmt.Sprintf("groups/%s/%s%s", g.ID, uuid.New(), mtype.Extension())
	uploadCtx, cancel := withTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()
	url, err := s.objects.Store(uploadCtx, key, data, mtype.String())
	if err != nil {
		return group.Group{}, unavailableOnTimeout(err, "photo upload")
	}
	if err := s.groups.UpdatePhoto(ctx, g.ID, url); err != nil {
		return group.Group{}, err
	}
	return s.groups.GetByID(ctx, g.ID)
}

func (s *MembershipService) RegenerateJoinCode(ctx context.Context, callerID, groupID uuid.UUID) (group.Group, error) {
	g, err := s.requireManager(ctx, callerID, groupID)
	if err != nil {
		return group.Group{}, err
	}
	for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return group.Group{}, err
		}
		if code == g.JoinCode {
			continue
		}
		err = s.groups.UpdateJoinCode(ctx, g.ID, code)
		if errors.Is(err, cardcircle_errors.ErrConflict) {
			continue
		}
		if err != nil {
			return group.Group{}, err
		}
		return s.groups.GetByID(ctx, g.ID)
	}
	return group.Group{}, fmt.Errorf("%w: could not allocate a unique join code", cardcircle_errors.ErrServiceUnavailable)
}

// RepairAll restores owner ∈ members ∩ admins on every group and returns the
// ids of the groups that needed it.
func (s *MembershipService) RepairAll(ctx context.Context) ([]uuid.UUID, error) {
	groups, err := s.groups.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var repaired []uuid.UUID
	for _, g := range groups {
		if g.CheckInvariants() == nil {
			continue
		}
		fixed, err := s.groups.RestoreOwner(ctx, g.ID)
		if err != nil {
			return repaired, fmt.Errorf("repair group %s: %w", g.ID, err)
		}
		if fixed {
			s.logger.WithContext(ctx).Info("group repaired", zap.String("group_id", g.ID.String()))
			repaired = append(repaired, g.ID)
		}
	}
	return repaired, nil
}

// DeleteGroup is an administrative operation with no caller check; it is
// reachable only from the repair tool.
func (s *MembershipService) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	return s.groups.Delete(ctx, groupID)
}

func (s *MembershipService) load(ctx context.Context, groupID uuid.UUID) (group.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if errors.Is(err, cardcircle_errors.ErrNotFound) {
		return group.Group{}, notFound("group not found")
	}
	return g, err
}

func (s *MembershipService) requireManager(ctx context.Context, callerID, groupID uuid.UUID) (group.Group, error) {
	g, err := s.load(ctx, groupID)
	if err != nil {
		return group.Group{}, err
	}
	if !group.RoleOf(g, callerID).AtLeast(group.RoleAdmin) {
		return group.Group{}, forbidden("only owners or admins can do that")
	}
	return g, nil
}
