package secrets

import (
	"fmt"

	"dashkeep/internal/config"
	"dashkeep/internal/core"
	"dashkeep/internal/encryption"
)

// NewStoreFromConfig creates a SecretStore implementation based on the
// secrets config type. The encryptor is only used by the filesystem store.
func NewStoreFromConfig(cfg config.SecretsConfig, encryptor encryption.Encryptor) (core.SecretStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem secret store requires dir to be set")
		}
		return NewFileSystemStore(cfg.Dir, encryptor)
	default:
		return nil, fmt.Errorf("unknown secret store type: %s", cfg.Type)
	}
}
