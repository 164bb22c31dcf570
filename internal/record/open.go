package record

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/park285/grand-chess-realms/internal/config"
)

// Open builds the repository selected by cfg.Store.
func Open(ctx context.Context, cfg config.RecordConfig, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Store {
	case "", "memory":
		logger.Info("record_store", zap.String("store", "memory"))
		return NewMemoryStore(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("record_store", zap.String("store", "sqlite"), zap.String("path", cfg.SQLitePath))
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("record_store", zap.String("store", "postgres"))
		return s, nil
	case "redis":
		s, err := OpenRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, cfg.TTL)
		if err != nil {
			return nil, err
		}
		logger.Info("record_store", zap.String("store", "redis"), zap.String("prefix", s.prefix))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown record store %q", cfg.Store)
	}
}
