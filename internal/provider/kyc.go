package provider

import (
	"context"
	"log/slog"

	"github.com/ableka/lumina/internal/domain"
)

// KYCClient verifies entity identity against an external KYC provider.
type KYCClient struct {
	http   *httpClient
	logger *slog.Logger
}

// NewKYCClient creates a KYC provider adapter.
func NewKYCClient(cfg domain.ProviderConfig, logger *slog.Logger) *KYCClient {
	return &KYCClient{
		http:   newHTTPClient("kyc", cfg, logger),
		logger: logger,
	}
}

type kycRequest struct {
	EntityID     string `json:"entity_id"`
	DocType      string `json:"doc_type"`
	Jurisdiction string `json:"jurisdiction"`
}

type kycResponse struct {
	Verified   bool     `json:"verified"`
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags"`
}

// Verify checks the entity's identity documents. A provider outage after
// retries yields an unverified zero-confidence result flagged
// PROVIDER_UNAVAILABLE rather than an error; only a validation rejection
// (bad input) surfaces as an error.
func (c *KYCClient) Verify(ctx context.Context, entityID string, docType domain.DocumentType, jurisdiction string) (*domain.KYCResult, error) {
	var resp kycResponse
	err := c.http.postJSON(ctx, "/v1/verify", kycRequest{
		EntityID:     entityID,
		DocType:      string(docType),
		Jurisdiction: jurisdiction,
	}, &resp)
	if err != nil {
		if domain.IsValidation(err) {
			return nil, err
		}
		return &domain.KYCResult{
			Verified:   false,
			Confidence: 0,
			Flags:      []domain.Flag{domain.FlagProviderUnavailable},
		}, nil
	}

	result := &domain.KYCResult{
		Verified:   resp.Verified,
		Confidence: clamp01(resp.Confidence),
		Flags:      normalizeFlags(resp.Flags),
	}
	if !result.Verified {
		result.Flags = domain.MergeFlags(result.Flags, []domain.Flag{domain.FlagKYCUnverified})
	}
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeFlags keeps only the flags this pipeline understands.
// Provider-specific extras are dropped.
func normalizeFlags(raw []string) []domain.Flag {
	known := map[domain.Flag]bool{
		domain.FlagSanctionsHit:     true,
		domain.FlagPEPMatch:         true,
		domain.FlagVelocityExceeded: true,
		domain.FlagKYCUnverified:    true,
	}
	var flags []domain.Flag
	for _, f := range raw {
		if known[domain.Flag(f)] {
			flags = append(flags, domain.Flag(f))
		}
	}
	return domain.MergeFlags(flags)
}
