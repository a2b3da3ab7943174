package bootstrap

import (
	"context"

	"cardcircle/config"
	"cardcircle/internal/services"
	"cardcircle/internal/storage"
	"cardcircle/pkg/logger"

	"go.uber.org/zap"
)

// OpenObjectStore returns the S3 store, or a store that rejects uploads when
// S3 is not configured.
func OpenObjectStore(ctx context.Context, cfg *config.Config, l *logger.Logger) services.ObjectStore {
	if !cfg.S3Configured() {
		l.Logger.Warn("s3 not configured, group photo uploads are disabled")
		return storage.DisabledStore{}
	}
	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
	})
	if err != nil {
		l.Logger.Warn("s3 client unavailable, group photo uploads are disabled", zap.Error(err))
		return storage.DisabledStore{}
	}
	return store
}
