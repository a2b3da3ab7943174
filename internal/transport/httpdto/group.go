package httpdto

import (
	"time"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/services"

	"github.com/google/uuid"
)

type CreateGroupRequest struct {
	Name string `json:"name"`
}

type JoinGroupRequest struct {
	Code string `json:"code"`
}

type AddMemberRequest struct {
	Identifier string `json:"identifier"`
}

type AddMembersBulkRequest struct {
	Identifiers []string `json:"identifiers"`
}

type RemoveMemberRequest struct {
	UserID string `json:"userId"`
}

type ModifyAdminRequest struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
}

type UpdateSettingsRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type GroupDTO struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	OwnerID         uuid.UUID   `json:"ownerId"`
	JoinCode        string      `json:"joinCode,omitempty"`
	Description     string      `json:"description"`
	PhotoURL        string      `json:"photoUrl"`
	Members         []uuid.UUID `json:"members"`
	Admins          []uuid.UUID `json:"admins"`
	LastMessageText string      `json:"lastMessageText"`
	LastMessageAt   *time.Time  `json:"lastMessageAt"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	IsOwner         bool        `json:"isOwner"`
	IsAdmin         bool        `json:"isAdmin"`
}

// FromGroup renders g for viewer. The join code is only shown to admins.
func FromGroup(g group.Group, viewer uuid.UUID) GroupDTO {
	role := group.RoleOf(g, viewer)
	dto := GroupDTO{
		ID:              g.ID,
		Name:            g.Name,
		OwnerID:         g.OwnerID,
		Description:     g.Description,
		PhotoURL:        g.PhotoURL,
		Members:         nonNil(g.Members),
		Admins:          nonNil(g.Admins),
		LastMessageText: g.LastMessageText,
		LastMessageAt:   g.LastMessageAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
		IsOwner:         role == group.RoleOwner,
		IsAdmin:         role.AtLeast(group.RoleAdmin),
	}
	if dto.IsAdmin {
		dto.JoinCode = g.JoinCode
	}
	return dto
}

func FromGroupSlice(groups []group.Group, viewer uuid.UUID) []GroupDTO {
	out := make([]GroupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, FromGroup(g, viewer))
	}
	return out
}

type MemberDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
	Role  string    `json:"role"`
}

type MembersResponse struct {
	Group   GroupDTO    `json:"group"`
	Members []MemberDTO `json:"members"`
	IsOwner bool        `json:"isOwner"`
	IsAdmin bool        `json:"isAdmin"`
}

func FromMembersView(v services.MembersView, viewer uuid.UUID) MembersResponse {
	members := make([]MemberDTO, 0, len(v.Members))
	for _, m := range v.Members {
		members = append(members, MemberDTO{ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone, Role: m.Role.String()})
	}
	return MembersResponse{
		Group:   FromGroup(v.Group, viewer),
		Members: members,
		IsOwner: v.IsOwner,
		IsAdmin: v.IsAdmin,
	}
}

type AddMemberResponse struct {
	User  MemberDTO `json:"user"`
	Added bool      `json:"added"`
}

type BulkAddResponse struct {
	Added     int      `json:"added"`
	Matched   int      `json:"matched"`
	Unmatched []string `json:"unmatched"`
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
