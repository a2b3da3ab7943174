package bootstrap

import (
	"context"
	"time"

	"cardcircle/config"
	"cardcircle/internal/directory"
	"cardcircle/internal/events"
	"cardcircle/internal/redis"
	"cardcircle/internal/services"
	"cardcircle/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// Realtime groups what Redis provides: the event bus, the message rate
// limiter and the profile cache. Without Redis the bus is process local and
// the other two are absent.
type Realtime struct {
	Client  *goredis.Client
	Bus     events.Bus
	Limiter *redis.RateLimiter
	Cache   *redis.CacheStore
}

func OpenRealtime(ctx context.Context, cfg *config.Config, b *Backend, l *logger.Logger) (*Realtime, error) {
	if !cfg.RedisEnabled {
		return &Realtime{Bus: events.NewLocalBus(l)}, nil
	}

	client := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redis.Ping(ctx, client, 3*time.Second); err != nil {
		_ = client.Close()
		return nil, err
	}

	bus := events.NewRedisEventBus(client, events.NewContainerChannelResolver(), l)
	if err := bus.Start(); err != nil {
		_ = client.Close()
		return nil, err
	}

	b.AddCloser(client.Close)
	b.AddCloser(bus.Stop)
	b.AddCheck(func(ctx context.Context) error { return redis.Ping(ctx, client, 2*time.Second) })

	limits := redis.DefaultRateLimitConfig()
	if cfg.MessageRateLimit > 0 {
		limits.MessageLimit = cfg.MessageRateLimit
	}
	cache := redis.DefaultCacheConfig()
	if cfg.ProfileCacheTTL > 0 {
		cache.UserTTL = cfg.ProfileCacheTTL
	}

	return &Realtime{
		Client:  client,
		Bus:     bus,
		Limiter: redis.NewRateLimiter(client, limits),
		Cache:   redis.NewCacheStore(client, cache),
	}, nil
}

// Directory wraps next with the profile cache when one is available.
func (r *Realtime) Directory(next services.UserDirectory, l *logger.Logger) services.UserDirectory {
	if r.Cache == nil {
		return next
	}
	return directory.NewCachedDirectory(next, r.Cache, l)
}
