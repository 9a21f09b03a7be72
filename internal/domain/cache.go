package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Supports two-phase
// caching: local LRU as L1 with Redis as distributed L2. Used to cache
// sanctions screening responses (short TTL, so retries and near-duplicate
// checks do not re-query the provider) and recent velocity sums.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetScreening retrieves a cached sanctions screening response for an
	// entity/list pair.
	GetScreening(ctx context.Context, entityID string, list ListIdentifier) (*ScreeningEntry, error)

	// SetScreening caches a sanctions screening response.
	SetScreening(ctx context.Context, entityID string, list ListIdentifier, entry *ScreeningEntry, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ScreeningEntry is a cached per-list sanctions screening response.
type ScreeningEntry struct {
	Hit       bool           `json:"hit"`
	List      ListIdentifier `json:"list"`
	RiskScore int            `json:"riskScore"`
	Flags     []Flag         `json:"flags,omitempty"`
	CheckedAt time.Time      `json:"checkedAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
