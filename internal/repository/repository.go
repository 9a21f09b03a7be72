// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ableka/lumina/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers. Amounts are stored as
// decimal strings so no float conversion touches monetary values.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transfer for the velocity history. Saving the
// same transaction ID again overwrites the row, so a re-submitted check
// never double-counts its own transfer.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, entity_id, counterparty_id, amount, currency,
			jurisdiction, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity_id = excluded.entity_id,
			counterparty_id = excluded.counterparty_id,
			amount = excluded.amount,
			currency = excluded.currency,
			jurisdiction = excluded.jurisdiction,
			timestamp = excluded.timestamp
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.EntityID, tx.CounterpartyID,
		tx.Amount.String(), tx.Currency,
		tx.Jurisdiction, tx.Timestamp.UTC(), tx.CreatedAt.UTC(),
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, entity_id, counterparty_id, amount, currency,
			   jurisdiction, timestamp, created_at
		FROM transactions
		WHERE id = ?
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactionsByEntity retrieves an entity's transactions since a
// point in time, newest first.
func (r *SQLRepository) ListTransactionsByEntity(ctx context.Context, entityID string, since time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT id, entity_id, counterparty_id, amount, currency,
			   jurisdiction, timestamp, created_at
		FROM transactions
		WHERE entity_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), entityID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// SaveCheckResult appends one decision to the audit trail. Results are
// never updated in place.
func (r *SQLRepository) SaveCheckResult(ctx context.Context, result *domain.CheckResult) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("%w: result ID is required", ErrInvalidInput)
	}

	flags, err := json.Marshal(result.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}

	query := `
		INSERT INTO check_results (
			id, request_id, entity_id, jurisdiction, status, risk_score,
			kyc_score, aml_score, velocity_score, flags, reasoning,
			rules_version, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		result.ID, result.RequestID, result.EntityID, result.JurisdictionCode,
		string(result.Status), result.RiskScore,
		result.SubScores.KYC, result.SubScores.AML, result.SubScores.Velocity,
		string(flags), result.Reasoning,
		result.RulesVersion, result.EvaluatedAt.UTC(),
	)
	return err
}

// GetCheckResult retrieves an audit record by ID.
func (r *SQLRepository) GetCheckResult(ctx context.Context, id string) (*domain.CheckResult, error) {
	query := `
		SELECT id, request_id, entity_id, jurisdiction, status, risk_score,
			   kyc_score, aml_score, velocity_score, flags, reasoning,
			   rules_version, evaluated_at
		FROM check_results
		WHERE id = ?
	`

	result, err := scanCheckResult(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return result, err
}

// ListCheckResultsByEntity retrieves an entity's recent decisions,
// newest first.
func (r *SQLRepository) ListCheckResultsByEntity(ctx context.Context, entityID string, limit int) ([]*domain.CheckResult, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, request_id, entity_id, jurisdiction, status, risk_score,
			   kyc_score, aml_score, velocity_score, flags, reasoning,
			   rules_version, evaluated_at
		FROM check_results
		WHERE entity_id = ?
		ORDER BY evaluated_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.CheckResult
	for rows.Next() {
		result, err := scanCheckResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount string

	if err := row.Scan(
		&tx.ID, &tx.EntityID, &tx.CounterpartyID,
		&amount, &tx.Currency,
		&tx.Jurisdiction, &tx.Timestamp, &tx.CreatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q for %s: %w", amount, tx.ID, err)
	}
	tx.Amount = parsed

	return &tx, nil
}

func scanCheckResult(row scanner) (*domain.CheckResult, error) {
	var result domain.CheckResult
	var status, flags string

	if err := row.Scan(
		&result.ID, &result.RequestID, &result.EntityID, &result.JurisdictionCode,
		&status, &result.RiskScore,
		&result.SubScores.KYC, &result.SubScores.AML, &result.SubScores.Velocity,
		&flags, &result.Reasoning,
		&result.RulesVersion, &result.EvaluatedAt,
	); err != nil {
		return nil, err
	}

	result.Status = domain.Status(status)
	if flags != "" && flags != "null" {
		if err := json.Unmarshal([]byte(flags), &result.Flags); err != nil {
			return nil, fmt.Errorf("stored flags for %s: %w", result.ID, err)
		}
	}

	return &result, nil
}

// rebind converts ? placeholders to $n for the postgres driver.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
