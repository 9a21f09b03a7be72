package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/ableka/lumina/internal/domain"
)

const screeningCacheTTL = 2 * time.Minute

// VelocityChecker reports whether an entity's recent transfer volume
// exceeds the jurisdiction's velocity threshold.
type VelocityChecker interface {
	Exceeded(ctx context.Context, req *domain.CheckRequest, rules *domain.JurisdictionRules) (bool, error)
}

// AMLClient screens entities against sanctions lists via an external
// provider and folds in the local velocity check.
type AMLClient struct {
	http     *httpClient
	cache    domain.Cache
	velocity VelocityChecker
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewAMLClient creates an AML provider adapter. cache may be nil to
// disable screening-response caching.
func NewAMLClient(cfg domain.ProviderConfig, cache domain.Cache, velocity VelocityChecker, logger *slog.Logger) *AMLClient {
	return &AMLClient{
		http:     newHTTPClient("aml", cfg, logger),
		cache:    cache,
		velocity: velocity,
		cacheTTL: screeningCacheTTL,
		logger:   logger,
	}
}

type screenRequest struct {
	EntityID       string `json:"entity_id"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	List           string `json:"list"`
	Jurisdiction   string `json:"jurisdiction"`
}

type screenResponse struct {
	Hit       bool     `json:"hit"`
	RiskScore int      `json:"risk_score"`
	Flags     []string `json:"flags"`
}

// Screen runs sanctions screening over the jurisdiction's lists in their
// configured order, short-circuiting on the first hit, then the velocity
// check. A provider outage flags PROVIDER_UNAVAILABLE and fails closed;
// it never reads as a clean pass.
func (c *AMLClient) Screen(ctx context.Context, req *domain.CheckRequest, rules *domain.JurisdictionRules) (*domain.AMLResult, error) {
	result := &domain.AMLResult{}

	for _, list := range rules.AMLSanctionsLists {
		entry, err := c.screenList(ctx, req, list, rules.Code)
		if err != nil {
			if domain.IsValidation(err) {
				return nil, err
			}
			result.Flags = domain.MergeFlags(result.Flags, []domain.Flag{domain.FlagProviderUnavailable})
			break
		}

		if entry.RiskScore > result.RiskScore {
			result.RiskScore = entry.RiskScore
		}
		result.Flags = domain.MergeFlags(result.Flags, entry.Flags)

		if entry.Hit {
			result.SanctionsHit = true
			result.MatchedList = list
			result.Flags = domain.MergeFlags(result.Flags, []domain.Flag{domain.FlagSanctionsHit})
			break
		}
	}

	exceeded, err := c.velocity.Exceeded(ctx, req, rules)
	if err != nil {
		c.logger.Warn("velocity check failed, failing closed",
			"entity", req.EntityID, "error", err)
		result.Flags = domain.MergeFlags(result.Flags, []domain.Flag{domain.FlagProviderUnavailable})
	} else if exceeded {
		result.VelocityExceeded = true
		result.Flags = domain.MergeFlags(result.Flags, []domain.Flag{domain.FlagVelocityExceeded})
	}

	return result, nil
}

// screenList resolves one entity/list screening, consulting the cache
// first. Cache failures degrade to a provider call.
func (c *AMLClient) screenList(ctx context.Context, req *domain.CheckRequest, list domain.ListIdentifier, jurisdiction string) (*domain.ScreeningEntry, error) {
	if c.cache != nil {
		cached, err := c.cache.GetScreening(ctx, req.EntityID, list)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	var resp screenResponse
	err := c.http.postJSON(ctx, "/v1/screen", screenRequest{
		EntityID:       req.EntityID,
		CounterpartyID: req.CounterpartyID,
		List:           string(list),
		Jurisdiction:   jurisdiction,
	}, &resp)
	if err != nil {
		return nil, err
	}

	entry := &domain.ScreeningEntry{
		Hit:       resp.Hit,
		List:      list,
		RiskScore: clampScore(resp.RiskScore),
		Flags:     normalizeFlags(resp.Flags),
		CheckedAt: time.Now().UTC(),
	}

	if c.cache != nil {
		if err := c.cache.SetScreening(ctx, req.EntityID, list, entry, c.cacheTTL); err != nil {
			c.logger.Debug("screening cache write failed",
				"entity", req.EntityID, "list", list, "error", err)
		}
	}

	return entry, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
