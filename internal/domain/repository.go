package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence: transaction history
// for the velocity check and the append-only audit trail of check results.
type Repository interface {
	// Transaction history (velocity lookups)
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactionsByEntity(ctx context.Context, entityID string, since time.Time) ([]*Transaction, error)

	// Audit records. SaveCheckResult is append-only: results are never
	// updated in place, so a past decision survives later rule changes.
	SaveCheckResult(ctx context.Context, result *CheckResult) error
	GetCheckResult(ctx context.Context, id string) (*CheckResult, error)
	ListCheckResultsByEntity(ctx context.Context, entityID string, limit int) ([]*CheckResult, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
