package proxy

import (
	"context"
	"errors"
	"fmt"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/message"
	"cardcircle/internal/repository"
	cardcircle_errors "cardcircle/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl answers "may this user read or write this container".
// Group access requires membership; direct access requires being one of
// the two participants.
type AccessControl struct {
	groups  repository.GroupRepository
	directs repository.DirectRepository
}

func NewAccessControl(groups repository.GroupRepository, directs repository.DirectRepository) *AccessControl {
	return &AccessControl{groups: groups, directs: directs}
}

// CanAccessContainer returns ErrNotFound when the container does not exist
// and ErrForbidden when userID is not a participant.
func (a *AccessControl) CanAccessContainer(ctx context.Context, userID uuid.UUID, containerType message.ContainerType, containerID uuid.UUID) error {
	switch containerType {
	case message.ContainerGroup:
		_, err := a.GroupMember(ctx, userID, containerID)
		return err
	case message.ContainerDirect:
		conv, err := a.directs.GetByID(ctx, containerID)
		if errors.Is(err, cardcircle_errors.ErrNotFound) {
			return fmt.Errorf("%w: conversation not found", cardcircle_errors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if !conv.HasParticipant(userID) {
			return fmt.Errorf("%w: not a participant of this conversation", cardcircle_errors.ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: %v", cardcircle_errors.ErrInvalidInput, message.ErrBadContainer)
	}
}

// GroupMember loads the group and checks that userID belongs to it.
func (a *AccessControl) GroupMember(ctx context.Context, userID, groupID uuid.UUID) (group.Group, error) {
	g, err := a.groups.GetByID(ctx, groupID)
	if errors.Is(err, cardcircle_errors.ErrNotFound) {
		return group.Group{}, fmt.Errorf("%w: group not found", cardcircle_errors.ErrNotFound)
	}
	if err != nil {
		return group.Group{}, err
	}
	if group.RoleOf(g, userID) == group.RoleNone {
		return group.Group{}, fmt.Errorf("%w: not a member of this group", cardcircle_errors.ErrForbidden)
	}
	return g, nil
}
