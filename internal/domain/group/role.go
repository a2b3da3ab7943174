package group

import "github.com/google/uuid"

// Role is a position in the owner ⇒ admin ⇒ member chain.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	default:
		return "none"
	}
}

// AtLeast reports whether r grants every privilege of min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// RoleOf resolves the highest role userID holds in g. Every authorization
// decision on groups goes through here.
func RoleOf(g Group, userID uuid.UUID) Role {
	switch {
	case userID == uuid.Nil:
		return RoleNone
	case userID == g.OwnerID:
		return RoleOwner
	case contains(g.Admins, userID) && contains(g.Members, userID):
		return RoleAdmin
	case contains(g.Members, userID):
		return RoleMember
	default:
		return RoleNone
	}
}
