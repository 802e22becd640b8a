package storage

import (
	"context"
	"fmt"

	"github.com/randalmurphal/wireflow/pkg/wireflow/config"
)

// Open returns the backend selected by settings.
func Open(ctx context.Context, s config.StorageSettings) (Store, error) {
	switch s.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if s.Path == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return NewSQLiteStore(s.Path)
	case "redis":
		if s.RedisAddr == "" {
			return nil, fmt.Errorf("redis storage requires an address")
		}
		return DialRedis(ctx, s.RedisAddr, s.RedisDB, s.Prefix)
	}
	return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
}
