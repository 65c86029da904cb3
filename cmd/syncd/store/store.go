// Package store selects the snapshot storage backend of the daemon.
package store

import (
	"fmt"
	"log/slog"

	"github.com/HatiCode/tempalign/cmd/syncd/config"
	"github.com/HatiCode/tempalign/pkg/storage"
)

// New opens the configured backend. The caller closes it when it
// implements io.Closer.
func New(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case "redis":
		logger.Info("using Redis storage", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.SnapshotTTL)
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL)
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return rs, nil

	case "badger":
		logger.Info("using Badger storage", "dir", cfg.BadgerDir, "ttl", cfg.SnapshotTTL)
		bs, err := storage.NewBadgerStore(cfg.BadgerDir, cfg.SnapshotTTL)
		if err != nil {
			return nil, fmt.Errorf("create badger store: %w", err)
		}
		return bs, nil

	case "memory":
		logger.Info("using in-memory storage", "ttl", cfg.SnapshotTTL)
		if cfg.SnapshotTTL > 0 {
			return storage.NewMemoryStoreWithTTL(cfg.SnapshotTTL, cfg.SnapshotTTL/2), nil
		}
		return storage.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
