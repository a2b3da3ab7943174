package group

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Group represents the chat_groups table. Members and Admins are loaded from
// chat_group_members by the relational store and embedded by the document store.
type Group struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name            string     `gorm:"not null"`
	OwnerID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	JoinCode        string     `gorm:"size:16;not null;uniqueIndex"`
	Description     string     `gorm:"not null;default:''"`
	PhotoURL        string     `gorm:"not null;default:''"`
	LastMessageText string     `gorm:"not null;default:''"`
	LastMessageAt   *time.Time `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Members []uuid.UUID `gorm:"-"`
	Admins  []uuid.UUID `gorm:"-"`
}

// Member represents the chat_group_members table
type Member struct {
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	IsAdmin  bool      `gorm:"not null;default:false"`
	JoinedAt time.Time `gorm:"not null"`
}

func (Group) TableName() string {
	return "chat_groups"
}

func (Member) TableName() string {
	return "chat_group_members"
}

// SettingsPatch carries the optional fields of a settings update. Nil means
// "leave unchanged".
type SettingsPatch struct {
	Name        *string
	Description *string
}

func (p SettingsPatch) Empty() bool {
	return p.Name == nil && p.Description == nil
}

// New builds a group whose creator is owner, admin and sole member.
func New(ownerID uuid.UUID, name, joinCode string, now time.Time) Group {
	return Group{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		JoinCode:  joinCode,
		Members:   []uuid.UUID{ownerID},
		Admins:    []uuid.UUID{ownerID},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (g Group) IsMember(userID uuid.UUID) bool {
	return userID == g.OwnerID || contains(g.Members, userID)
}

func (g Group) IsAdmin(userID uuid.UUID) bool {
	return userID == g.OwnerID || contains(g.Admins, userID)
}

// CheckInvariants verifies owner ∈ members, owner ∈ admins and admins ⊆ members.
func (g Group) CheckInvariants() error {
	if !contains(g.Members, g.OwnerID) {
		return fmt.Errorf("group %s: owner %s missing from members", g.ID, g.OwnerID)
	}
	if !contains(g.Admins, g.OwnerID) {
		return fmt.Errorf("group %s: owner %s missing from admins", g.ID, g.OwnerID)
	}
	for _, admin := range g.Admins {
		if !contains(g.Members, admin) {
			return fmt.Errorf("group %s: admin %s is not a member", g.ID, admin)
		}
	}
	return nil
}

// RestoreOwner puts the owner back into members and admins and drops admins
// that are no longer members. Reports whether anything changed.
func (g *Group) RestoreOwner() bool {
	changed := false
	if !contains(g.Members, g.OwnerID) {
		g.Members = append([]uuid.UUID{g.OwnerID}, g.Members...)
		changed = true
	}
	if !contains(g.Admins, g.OwnerID) {
		g.Admins = append([]uuid.UUID{g.OwnerID}, g.Admins...)
		changed = true
	}
	kept := g.Admins[:0]
	for _, admin := range g.Admins {
		if contains(g.Members, admin) {
			kept = append(kept, admin)
		} else {
			changed = true
		}
	}
	g.Admins = kept
	return changed
}

// Clone returns a copy that shares no slices with g.
func (g Group) Clone() Group {
	out := g
	out.Members = append([]uuid.UUID(nil), g.Members...)
	out.Admins = append([]uuid.UUID(nil), g.Admins...)
	if g.LastMessageAt != nil {
		at := *g.LastMessageAt
		out.LastMessageAt = &at
	}
	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
