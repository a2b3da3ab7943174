package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cardcircle/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - user:{user_id} - profile cache
// - user:ident:{kind}:{value} - identifier -> user id

type CacheConfig struct {
	UserTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{UserTTL: 5 * time.Minute}
}

// CacheStore caches public profiles read from the user directory.
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

func identifierKey(id user.Identifier) string {
	return fmt.Sprintf("user:ident:%s:%s", id.Kind, id.Value)
}

// GetUser returns (nil, nil) on a cache miss.
func (c *CacheStore) GetUser(ctx context.Context, userID uuid.UUID) (*user.PublicUser, error) {
	data, err := c.client.Get(ctx, userKey(userID)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u user.PublicUser
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *CacheStore) SetUsers(ctx context.Context, users []user.PublicUser) error {
	if len(users) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, u := range users {
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		pipe.Set(ctx, userKey(u.ID), data, c.config.UserTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetMultipleUsers returns the cached profiles and the ids that missed.
func (c *CacheStore) GetMultipleUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]user.PublicUser, []uuid.UUID, error) {
	result := make(map[uuid.UUID]user.PublicUser)
	var misses []uuid.UUID
	if len(userIDs) == 0 {
		return result, misses, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*goredis.StringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Get(ctx, userKey(id))
	}
	_, _ = pipe.Exec(ctx)

	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			misses = append(misses, userIDs[i])
			continue
		}
		var u user.PublicUser
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			misses = append(misses, userIDs[i])
			continue
		}
		result[userIDs[i]] = u
	}
	return result, misses, nil
}

// GetIdentifier returns uuid.Nil on a cache miss.
func (c *CacheStore) GetIdentifier(ctx context.Context, id user.Identifier) (uuid.UUID, error) {
	data, err := c.client.Get(ctx, identifierKey(id)).Result()
	if err == goredis.Nil {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(data)
}

func (c *CacheStore) SetIdentifier(ctx context.Context, id user.Identifier, userID uuid.UUID) error {
	return c.client.Set(ctx, identifierKey(id), userID.String(), c.config.UserTTL).Err()
}

func (c *CacheStore) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, userKey(userID)).Err()
}
