package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache store is closed")

// Store is a byte-oriented key/value store with optional expiry.
type Store interface {
	// Get returns the value and true on a hit, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Close releases the underlying resources.
	Close() error
}

// Backend identifies a Store implementation.
type Backend string

const (
	BackendNone   Backend = ""
	BackendMemory Backend = "memory"
	BackendBadger Backend = "badger"
	BackendRedis  Backend = "redis"
)

// Config selects and configures a Store.
type Config struct {
	Backend Backend       `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	// Path is the badger directory. Ignored for memory and redis.
	Path string `mapstructure:"path"`
	// RedisURL is a redis:// URL. Used only by the redis backend.
	RedisURL string `mapstructure:"redis_url"`
}

// New builds the Store named by cfg.Backend. BackendNone returns nil, nil.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendMemory:
		return NewBadgerStore("")
	case BackendBadger:
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger cache requires a path")
		}
		return NewBadgerStore(cfg.Path)
	case BackendRedis:
		return NewRedisStoreFromURL(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
