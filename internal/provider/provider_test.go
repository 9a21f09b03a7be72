package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ableka/lumina/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(url string) domain.ProviderConfig {
	return domain.ProviderConfig{
		BaseURL:    url,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
	}
}

type stubVelocity struct {
	exceeded bool
	err      error
	calls    int
}

func (s *stubVelocity) Exceeded(ctx context.Context, req *domain.CheckRequest, rules *domain.JurisdictionRules) (bool, error) {
	s.calls++
	return s.exceeded, s.err
}

type memScreeningCache struct {
	entries map[string]*domain.ScreeningEntry
}

func newMemScreeningCache() *memScreeningCache {
	return &memScreeningCache{entries: make(map[string]*domain.ScreeningEntry)}
}

func (m *memScreeningCache) Get(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (m *memScreeningCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (m *memScreeningCache) Delete(ctx context.Context, key string) error { return nil }
func (m *memScreeningCache) GetScreening(ctx context.Context, entityID string, list domain.ListIdentifier) (*domain.ScreeningEntry, error) {
	return m.entries[entityID+"/"+string(list)], nil
}
func (m *memScreeningCache) SetScreening(ctx context.Context, entityID string, list domain.ListIdentifier, entry *domain.ScreeningEntry, ttl time.Duration) error {
	m.entries[entityID+"/"+string(list)] = entry
	return nil
}
func (m *memScreeningCache) Ping(ctx context.Context) error { return nil }
func (m *memScreeningCache) Close() error                   { return nil }

func testRules() *domain.JurisdictionRules {
	return &domain.JurisdictionRules{
		Code:                    "AE",
		KYCDocRequirements:      []domain.DocumentType{"passport"},
		AMLSanctionsLists:       []domain.ListIdentifier{"OFAC", "UN", "EU"},
		VelocityWindowSeconds:   86400,
		VelocityThresholdAmount: decimal.NewFromInt(100000),
		RiskWeights:             domain.RiskWeights{KYC: 0.3, AML: 0.5, Velocity: 0.2},
		DecisionThresholds:      domain.DecisionThresholds{ApproveBelow: 30, RejectAbove: 70},
	}
}

func testRequest() *domain.CheckRequest {
	return &domain.CheckRequest{
		ID:               "req-1",
		EntityID:         "entity-1",
		JurisdictionCode: "AE",
		Amount:           decimal.NewFromInt(5000),
		Currency:         "AED",
		Timestamp:        time.Now().UTC(),
	}
}

func TestKYCVerify(t *testing.T) {
	t.Run("verified entity", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/verify" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var req kycRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if req.EntityID != "entity-1" || req.DocType != "passport" {
				t.Errorf("unexpected request %+v", req)
			}
			json.NewEncoder(w).Encode(kycResponse{Verified: true, Confidence: 0.95, Flags: []string{"INTERNAL_XYZ"}})
		}))
		defer srv.Close()

		client := NewKYCClient(fastConfig(srv.URL), testLogger())
		result, err := client.Verify(context.Background(), "entity-1", "passport", "AE")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !result.Verified || result.Confidence != 0.95 {
			t.Errorf("result = %+v", result)
		}
		if len(result.Flags) != 0 {
			t.Errorf("provider-specific flags not dropped: %v", result.Flags)
		}
	})

	t.Run("unverified adds flag", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(kycResponse{Verified: false, Confidence: 0.2})
		}))
		defer srv.Close()

		client := NewKYCClient(fastConfig(srv.URL), testLogger())
		result, err := client.Verify(context.Background(), "entity-1", "passport", "AE")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !result.HasFlag(domain.FlagKYCUnverified) {
			t.Errorf("expected KYC_UNVERIFIED, got %v", result.Flags)
		}
	})

	t.Run("bad request is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "unknown doc type", http.StatusBadRequest)
		}))
		defer srv.Close()

		client := NewKYCClient(fastConfig(srv.URL), testLogger())
		_, err := client.Verify(context.Background(), "entity-1", "hologram", "AE")
		if !domain.IsValidation(err) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("calls = %d, want 1", n)
		}
	})

	t.Run("outage retries then fails closed", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewKYCClient(fastConfig(srv.URL), testLogger())
		result, err := client.Verify(context.Background(), "entity-1", "passport", "AE")
		if err != nil {
			t.Fatalf("outage must not surface as error, got %v", err)
		}
		if n := calls.Load(); n != 3 {
			t.Errorf("calls = %d, want 3 (initial + 2 retries)", n)
		}
		if result.Verified || result.Confidence != 0 {
			t.Errorf("result = %+v, want unverified zero confidence", result)
		}
		if !result.HasFlag(domain.FlagProviderUnavailable) {
			t.Errorf("expected PROVIDER_UNAVAILABLE, got %v", result.Flags)
		}
	})

	t.Run("eventual success within retries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, "boom", http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(kycResponse{Verified: true, Confidence: 0.9})
		}))
		defer srv.Close()

		client := NewKYCClient(fastConfig(srv.URL), testLogger())
		result, err := client.Verify(context.Background(), "entity-1", "passport", "AE")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !result.Verified {
			t.Errorf("result = %+v, want verified", result)
		}
	})
}

func TestAMLScreen(t *testing.T) {
	t.Run("clean entity screens all lists", func(t *testing.T) {
		var lists []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req screenRequest
			json.NewDecoder(r.Body).Decode(&req)
			lists = append(lists, req.List)
			json.NewEncoder(w).Encode(screenResponse{Hit: false, RiskScore: 10})
		}))
		defer srv.Close()

		client := NewAMLClient(fastConfig(srv.URL), nil, &stubVelocity{}, testLogger())
		result, err := client.Screen(context.Background(), testRequest(), testRules())
		if err != nil {
			t.Fatalf("Screen: %v", err)
		}
		if result.SanctionsHit {
			t.Error("unexpected sanctions hit")
		}
		if result.RiskScore != 10 {
			t.Errorf("risk score = %d, want 10", result.RiskScore)
		}
		want := []string{"OFAC", "UN", "EU"}
		if len(lists) != len(want) {
			t.Fatalf("screened lists = %v, want %v", lists, want)
		}
		for i := range want {
			if lists[i] != want[i] {
				t.Errorf("list order %v, want %v", lists, want)
			}
		}
	})

	t.Run("hit short-circuits remaining lists", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			var req screenRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(screenResponse{Hit: req.List == "OFAC", RiskScore: 95})
		}))
		defer srv.Close()

		client := NewAMLClient(fastConfig(srv.URL), nil, &stubVelocity{}, testLogger())
		result, err := client.Screen(context.Background(), testRequest(), testRules())
		if err != nil {
			t.Fatalf("Screen: %v", err)
		}
		if !result.SanctionsHit || result.MatchedList != "OFAC" {
			t.Errorf("result = %+v, want OFAC hit", result)
		}
		if !result.HasFlag(domain.FlagSanctionsHit) {
			t.Errorf("expected SANCTIONS_HIT, got %v", result.Flags)
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("provider calls = %d, want 1 (short-circuit)", n)
		}
	})

	t.Run("cached screening skips provider", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			json.NewEncoder(w).Encode(screenResponse{Hit: false, RiskScore: 5})
		}))
		defer srv.Close()

		cache := newMemScreeningCache()
		client := NewAMLClient(fastConfig(srv.URL), cache, &stubVelocity{}, testLogger())

		if _, err := client.Screen(context.Background(), testRequest(), testRules()); err != nil {
			t.Fatalf("Screen: %v", err)
		}
		first := calls.Load()
		if _, err := client.Screen(context.Background(), testRequest(), testRules()); err != nil {
			t.Fatalf("Screen: %v", err)
		}
		if calls.Load() != first {
			t.Errorf("provider calls grew from %d to %d, want cache hits", first, calls.Load())
		}
	})

	t.Run("velocity exceeded sets flag", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(screenResponse{})
		}))
		defer srv.Close()

		client := NewAMLClient(fastConfig(srv.URL), nil, &stubVelocity{exceeded: true}, testLogger())
		result, err := client.Screen(context.Background(), testRequest(), testRules())
		if err != nil {
			t.Fatalf("Screen: %v", err)
		}
		if !result.VelocityExceeded || !result.HasFlag(domain.FlagVelocityExceeded) {
			t.Errorf("result = %+v, want velocity exceeded", result)
		}
	})

	t.Run("velocity store error fails closed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(screenResponse{})
		}))
		defer srv.Close()

		client := NewAMLClient(fastConfig(srv.URL), nil, &stubVelocity{err: errors.New("db down")}, testLogger())
		result, err := client.Screen(context.Background(), testRequest(), testRules())
		if err != nil {
			t.Fatalf("Screen: %v", err)
		}
		if !result.HasFlag(domain.FlagProviderUnavailable) {
			t.Errorf("expected PROVIDER_UNAVAILABLE, got %v", result.Flags)
		}
	})

	t.Run("provider outage flags unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewAMLClient(fastConfig(srv.URL), nil, &stubVelocity{}, testLogger())
		result, err := client.Screen(context.Background(), testRequest(), testRules())
		if err != nil {
			t.Fatalf("Screen: %v", err)
		}
		if !result.HasFlag(domain.FlagProviderUnavailable) {
			t.Errorf("expected PROVIDER_UNAVAILABLE, got %v", result.Flags)
		}
		if result.SanctionsHit {
			t.Error("outage must not read as a hit")
		}
	})
}
