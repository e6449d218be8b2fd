package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/config"
)

// FromAppConfig picks the storage settings out of the process config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("backend: nil app config")
	}
	cfg := Config{
		Type:         BackendType(strings.ToLower(appConfig.DataBackend)),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			return errors.New("backend: sqlite needs SQLITE_DB_PATH")
		}
	case PostgresBackend:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("backend: postgres needs POSTGRES_DSN")
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("backend: unknown type %q, want one of %v", c.Type, GetBackendTypes())
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}
