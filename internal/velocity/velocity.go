// Package velocity implements the sliding-window transfer volume check.
package velocity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ableka/lumina/internal/domain"
)

// Checker sums an entity's recent transfer amounts over the
// jurisdiction's sliding window and compares the total against the
// velocity threshold. Amounts are exact decimals end to end; the window
// slides from the moment of the check, it is not a calendar bucket.
type Checker struct {
	repo   domain.Repository
	logger *slog.Logger
}

// New creates a velocity checker backed by the transaction repository.
func New(repo domain.Repository, logger *slog.Logger) *Checker {
	return &Checker{repo: repo, logger: logger}
}

// Exceeded reports whether the entity's window total, including the
// transfer under check, exceeds the jurisdiction threshold. The
// transfer's own recorded row is excluded so re-running a check does
// not double-count it.
func (c *Checker) Exceeded(ctx context.Context, req *domain.CheckRequest, rules *domain.JurisdictionRules) (bool, error) {
	window := time.Duration(rules.VelocityWindowSeconds) * time.Second
	prior, err := c.Sum(ctx, req.EntityID, window, req.ID)
	if err != nil {
		return false, err
	}

	total := prior.Add(req.Amount)
	exceeded := total.GreaterThan(rules.VelocityThresholdAmount)
	if exceeded {
		c.logger.Info("velocity threshold exceeded",
			"entity", req.EntityID,
			"window_total", total.String(),
			"threshold", rules.VelocityThresholdAmount.String())
	}
	return exceeded, nil
}

// Sum returns the exact total of the entity's transfer amounts within
// the window ending now, excluding the transaction with excludeTxID.
func (c *Checker) Sum(ctx context.Context, entityID string, window time.Duration, excludeTxID string) (decimal.Decimal, error) {
	since := time.Now().UTC().Add(-window)
	txs, err := c.repo.ListTransactionsByEntity(ctx, entityID, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list transactions for %s: %w", entityID, err)
	}

	sum := decimal.Zero
	for _, tx := range txs {
		if tx.ID == excludeTxID {
			continue
		}
		sum = sum.Add(tx.Amount)
	}
	return sum, nil
}
