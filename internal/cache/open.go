package cache

import (
	"fmt"
	"time"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string        `yaml:"backend" validate:"oneof=sqlite redis memory"`
	Path          string        `yaml:"path"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" validate:"gte=0"`
	Retention     time.Duration `yaml:"retention" validate:"gte=0"`
}

// Open creates the configured Store.
func Open(o Options) (Store, error) {
	switch o.Backend {
	case "", "sqlite":
		if o.Path == "" {
			return nil, fmt.Errorf("sqlite cache needs a path")
		}
		return NewSQLiteStore(o.Path)
	case "redis":
		return NewRedisStore(o.RedisAddr, o.RedisPassword, o.RedisDB, o.Retention)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", o.Backend)
}
