package services

import (
	"context"

	"cardcircle/internal/domain/user"

	"github.com/google/uuid"
)

// AuthVerifier resolves a bearer token to the caller's user id. Invalid or
// missing tokens yield ErrUnauthorized.
type AuthVerifier interface {
	ResolveCaller(token string) (uuid.UUID, error)
}

// UserDirectory reads public profile fields owned by the account subsystem.
type UserDirectory interface {
	// FindByIdentifier returns ErrNotFound when no user matches.
	FindByIdentifier(ctx context.Context, identifier user.Identifier) (user.PublicUser, error)
	// FindByIDs returns the users that exist; unknown ids are skipped.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.PublicUser, error)
}

// ObjectStore persists uploaded bytes and returns a public URL.
type ObjectStore interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
