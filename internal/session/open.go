package session

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Togather-Foundation/eventhive/internal/config"
)

// OpenBackend builds the Backend selected by cfg.
func OpenBackend(cfg config.SessionConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	case config.BackendSQLite, "":
		return NewSQLiteBackend(cfg.Path)
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return NewRedisBackend(redis.NewClient(opts)), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
