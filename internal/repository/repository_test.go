package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ableka/lumina/internal/domain"
)

func testRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTx(id string, amount string, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:             id,
		EntityID:       "entity-1",
		CounterpartyID: "entity-2",
		Amount:         decimal.RequireFromString(amount),
		Currency:       "USD",
		Jurisdiction:   "US",
		Timestamp:      ts,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestTransactions(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("save and get round-trips decimals", func(t *testing.T) {
		tx := sampleTx("tx-1", "1234.56", now)
		if err := repo.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("SaveTransaction: %v", err)
		}

		got, err := repo.GetTransaction(ctx, "tx-1")
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if !got.Amount.Equal(decimal.RequireFromString("1234.56")) {
			t.Errorf("amount = %s, want 1234.56", got.Amount)
		}
		if got.EntityID != "entity-1" || got.Currency != "USD" {
			t.Errorf("unexpected transaction %+v", got)
		}
	})

	t.Run("resaving same id overwrites", func(t *testing.T) {
		if err := repo.SaveTransaction(ctx, sampleTx("tx-1", "9999.99", now)); err != nil {
			t.Fatalf("SaveTransaction: %v", err)
		}
		got, err := repo.GetTransaction(ctx, "tx-1")
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if !got.Amount.Equal(decimal.RequireFromString("9999.99")) {
			t.Errorf("amount = %s, want updated 9999.99", got.Amount)
		}

		txs, err := repo.ListTransactionsByEntity(ctx, "entity-1", now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("ListTransactionsByEntity: %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("transactions = %d, want 1 after upsert", len(txs))
		}
	})

	t.Run("list honors the since bound", func(t *testing.T) {
		if err := repo.SaveTransaction(ctx, sampleTx("tx-old", "10.00", now.Add(-72*time.Hour))); err != nil {
			t.Fatalf("SaveTransaction: %v", err)
		}
		if err := repo.SaveTransaction(ctx, sampleTx("tx-new", "20.00", now.Add(-time.Hour))); err != nil {
			t.Fatalf("SaveTransaction: %v", err)
		}

		txs, err := repo.ListTransactionsByEntity(ctx, "entity-1", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("ListTransactionsByEntity: %v", err)
		}
		for _, tx := range txs {
			if tx.ID == "tx-old" {
				t.Error("transaction outside window returned")
			}
		}
	})

	t.Run("missing transaction", func(t *testing.T) {
		if _, err := repo.GetTransaction(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("empty id rejected", func(t *testing.T) {
		if err := repo.SaveTransaction(ctx, &domain.Transaction{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestCheckResults(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	result := &domain.CheckResult{
		ID:               "res-1",
		RequestID:        "req-1",
		EntityID:         "entity-1",
		JurisdictionCode: "AE",
		Status:           domain.StatusEscalated,
		RiskScore:        45,
		SubScores:        domain.SubScores{KYC: 20, AML: 60, Velocity: 0},
		Flags:            []domain.Flag{domain.FlagPEPMatch},
		Reasoning:        "risk score 45 in escalation band [30, 70)",
		RulesVersion:     "abc123def456",
		EvaluatedAt:      now,
	}

	t.Run("save and get", func(t *testing.T) {
		if err := repo.SaveCheckResult(ctx, result); err != nil {
			t.Fatalf("SaveCheckResult: %v", err)
		}

		got, err := repo.GetCheckResult(ctx, "res-1")
		if err != nil {
			t.Fatalf("GetCheckResult: %v", err)
		}
		if got.Status != domain.StatusEscalated || got.RiskScore != 45 {
			t.Errorf("result = %+v", got)
		}
		if got.SubScores != result.SubScores {
			t.Errorf("sub-scores = %+v, want %+v", got.SubScores, result.SubScores)
		}
		if len(got.Flags) != 1 || got.Flags[0] != domain.FlagPEPMatch {
			t.Errorf("flags = %v", got.Flags)
		}
		if got.RulesVersion != "abc123def456" {
			t.Errorf("rules version = %s", got.RulesVersion)
		}
	})

	t.Run("append only", func(t *testing.T) {
		dup := *result
		if err := repo.SaveCheckResult(ctx, &dup); err == nil {
			t.Error("re-inserting the same audit record must fail")
		}
	})

	t.Run("list by entity newest first", func(t *testing.T) {
		older := *result
		older.ID = "res-0"
		older.EvaluatedAt = now.Add(-time.Hour)
		if err := repo.SaveCheckResult(ctx, &older); err != nil {
			t.Fatalf("SaveCheckResult: %v", err)
		}

		results, err := repo.ListCheckResultsByEntity(ctx, "entity-1", 10)
		if err != nil {
			t.Fatalf("ListCheckResultsByEntity: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("results = %d, want 2", len(results))
		}
		if results[0].ID != "res-1" || results[1].ID != "res-0" {
			t.Errorf("order = [%s %s], want newest first", results[0].ID, results[1].ID)
		}
	})

	t.Run("missing result", func(t *testing.T) {
		if _, err := repo.GetCheckResult(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
