package directory

import (
	"context"

	"cardcircle/internal/domain/user"
	"cardcircle/internal/redis"
	"cardcircle/internal/services"
	"cardcircle/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CachedDirectory puts a Redis profile cache in front of another directory.
// Cache failures fall through to the backing directory.
type CachedDirectory struct {
	next   services.UserDirectory
	cache  *redis.CacheStore
	logger *logger.Logger
}

func NewCachedDirectory(next services.UserDirectory, cache *redis.CacheStore, l *logger.Logger) *CachedDirectory {
	if l == nil {
		l = logger.NewNop()
	}
	return &CachedDirectory{next: next, cache: cache, logger: l}
}

func (d *CachedDirectory) FindByIdentifier(ctx context.Context, id user.Identifier) (user.PublicUser, error) {
	if userID, err := d.cache.GetIdentifier(ctx, id); err == nil && userID != uuid.Nil {
		if cached, err := d.cache.GetUser(ctx, userID); err == nil && cached != nil {
			return *cached, nil
		}
	}

	u, err := d.next.FindByIdentifier(ctx, id)
	if err != nil {
		return user.PublicUser{}, err
	}
	if err := d.cache.SetIdentifier(ctx, id, u.ID); err != nil {
		d.logger.WithContext(ctx).Debug("identifier cache write failed", zap.Error(err))
	}
	if err := d.cache.SetUsers(ctx, []user.PublicUser{u}); err != nil {
		d.logger.WithContext(ctx).Debug("profile cache write failed", zap.Error(err))
	}
	return u, nil
}

func (d *CachedDirectory) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.PublicUser, error) {
	hits, misses, err := d.cache.GetMultipleUsers(ctx, ids)
	if err != nil {
		return d.next.FindByIDs(ctx, ids)
	}

	if len(misses) > 0 {
		fetched, err := d.next.FindByIDs(ctx, misses)
		if err != nil {
			return nil, err
		}
		if err := d.cache.SetUsers(ctx, fetched); err != nil {
			d.logger.WithContext(ctx).Debug("profile cache write failed", zap.Error(err))
		}
		for _, u := range fetched {
			hits[u.ID] = u
		}
	}

	out := make([]user.PublicUser, 0, len(hits))
	for _, id := range ids {
		if u, ok := hits[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
