package repository

import (
	"context"
	"time"

	"cardcircle/internal/domain/direct"
	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupRepository mutates membership with single-entity atomic operations.
// No method performs a read-modify-write of the member set.
type GroupRepository interface {
	// Create persists g together with its owner membership. Returns
	// ErrConflict when the join code is taken.
	Create(ctx context.Context, g *group.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (group.Group, error)
	GetByJoinCode(ctx context.Context, code string) (group.Group, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]group.Group, error)
	ListAll(ctx context.Context) ([]group.Group, error)

	// AddMember is idempotent; added is false when userID already belonged.
	AddMember(ctx context.Context, groupID, userID uuid.UUID) (added bool, err error)
	// RemoveMember drops userID from members and admins. The owner row is
	// never removed; removed is false in that case or when userID was absent.
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) (removed bool, err error)
	// SetAdmin toggles admin status of an existing member. Returns
	// ErrNotFound when userID is not a member. Demoting the owner is a no-op.
	SetAdmin(ctx context.Context, groupID, userID uuid.UUID, isAdmin bool) error

	UpdateSettings(ctx context.Context, groupID uuid.UUID, patch group.SettingsPatch) error
	UpdatePhoto(ctx context.Context, groupID uuid.UUID, url string) error
	// UpdateJoinCode returns ErrConflict when code is taken.
	UpdateJoinCode(ctx context.Context, groupID uuid.UUID, code string) error
	UpdatePreview(ctx context.Context, groupID uuid.UUID, text string, at time.Time) error

	// RestoreOwner re-adds the owner to members and admins and drops admins
	// that are not members. Reports whether anything was repaired.
	RestoreOwner(ctx context.Context, groupID uuid.UUID) (bool, error)
	// Delete removes the group, its memberships and its messages.
	Delete(ctx context.Context, groupID uuid.UUID) error
}

type DirectRepository interface {
	// Create returns ErrConflict when a conversation for the pair exists.
	Create(ctx context.Context, c *direct.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (direct.Conversation, error)
	GetByPair(ctx context.Context, a, b uuid.UUID) (direct.Conversation, error)
	// ListByParticipant orders by last_message_at desc (nulls last), then updated_at desc.
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]direct.Conversation, error)
	UpdatePreview(ctx context.Context, id uuid.UUID, text string, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// List returns messages in ascending (created_at, id) order.
	List(ctx context.Context, q message.Query) ([]message.Message, error)
	DeleteByContainer(ctx context.Context, containerType message.ContainerType, containerID uuid.UUID) error
}

// Stores bundles one driver's repositories.
type Stores struct {
	Groups   GroupRepository
	Directs  DirectRepository
	Messages MessageRepository
}

// NewStores builds the Postgres repositories over db.
func NewStores(db *gorm.DB) Stores {
	return Stores{
		Groups:   NewGroupRepository(db),
		Directs:  NewDirectRepository(db),
		Messages: NewMessageRepository(db),
	}
}
