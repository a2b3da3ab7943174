// Package bootstrap opens the storage, cache and event backends selected by
// configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"cardcircle/config"
	"cardcircle/internal/directory"
	"cardcircle/internal/repository"
	"cardcircle/internal/repository/memory"
	"cardcircle/internal/repository/mongostore"
	"cardcircle/internal/services"
	"cardcircle/pkg/database"
	"cardcircle/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Backend is one driver's stores plus the user directory that reads the
// same database.
type Backend struct {
	Stores    repository.Stores
	Directory services.UserDirectory
	DB        *gorm.DB

	checks  []func(context.Context) error
	closers []func() error
}

func Open(ctx context.Context, cfg *config.Config, l *logger.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Stores:    repository.NewStores(db),
			Directory: directory.NewGormDirectory(db),
			DB:        db,
			checks:    []func(context.Context) error{func(ctx context.Context) error { return database.HealthCheck(ctx, db) }},
			closers:   []func() error{func() error { return database.Close(db) }},
		}, nil

	case config.StoreDriverMongo:
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return &Backend{
			Stores:    mongostore.New(db),
			Directory: directory.NewMongoDirectory(db),
			checks:    []func(context.Context) error{func(ctx context.Context) error { return database.MongoHealthCheck(ctx, client) }},
			closers:   []func() error{func() error { return client.Disconnect(context.Background()) }},
		}, nil

	case config.StoreDriverMemory:
		l.Logger.Warn("using in-memory stores, data is lost on exit")
		return &Backend{
			Stores:    memory.NewStores(),
			Directory: directory.NewMemoryDirectory(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Health runs every registered check and joins the failures.
func (b *Backend) Health(ctx context.Context) error {
	var errs []error
	for _, check := range b.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) AddCheck(check func(context.Context) error) {
	b.checks = append(b.checks, check)
}

func (b *Backend) AddCloser(closer func() error) {
	b.closers = append(b.closers, closer)
}

// Close releases resources in reverse registration order.
func (b *Backend) Close(l *logger.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && l != nil {
			l.Logger.Warn("close backend", zap.Error(err))
		}
	}
}
