package table

import (
	"fmt"
	"path/filepath"

	"dashkeep/internal/config"
)

// NewStoreFromConfig creates a Store implementation based on the database
// config type. SQLite stores are migrated to the latest schema on open;
// the in-memory store has no schema to migrate.
func NewStoreFromConfig(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		store, err := NewSQLiteStore(filepath.Join(cfg.DataDir, "dashkeep.db"))
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
