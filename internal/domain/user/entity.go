package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents the users table. The table belongs to the account
// subsystem; this side only reads the public columns.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	Email     string `gorm:"index"`
	Phone     string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

// PublicUser is the profile subset other members may see.
type PublicUser struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierPhone IdentifierKind = "phone"
)

var ErrEmptyIdentifier = errors.New("identifier is required")

// Identifier is a normalized lookup key for the user directory.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

func (i Identifier) String() string {
	return string(i.Kind) + ":" + i.Value
}

// ParseIdentifier treats anything containing "@" as an email (lower-cased)
// and everything else as a phone number reduced to its digits plus an
// optional leading "+".
func ParseIdentifier(raw string) (Identifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identifier{}, ErrEmptyIdentifier
	}
	if strings.Contains(raw, "@") {
		return Identifier{Kind: IdentifierEmail, Value: strings.ToLower(raw)}, nil
	}

	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if phone == "" || phone == "+" {
		return Identifier{}, ErrEmptyIdentifier
	}
	return Identifier{Kind: IdentifierPhone, Value: phone}, nil
}
