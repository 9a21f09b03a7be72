// Package domain defines the core types and interfaces for Lumina.
package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the final verdict of a compliance check.
type Status string

const (
	StatusApproved  Status = "APPROVED"
	StatusEscalated Status = "ESCALATED"
	StatusRejected  Status = "REJECTED"
)

// Flag marks a risk signal raised during a check.
type Flag string

const (
	FlagSanctionsHit        Flag = "SANCTIONS_HIT"
	FlagPEPMatch            Flag = "PEP_MATCH"
	FlagVelocityExceeded    Flag = "VELOCITY_EXCEEDED"
	FlagProviderUnavailable Flag = "PROVIDER_UNAVAILABLE"
	FlagKYCUnverified       Flag = "KYC_UNVERIFIED"
)

// CheckRequest describes one transfer/entity compliance check.
type CheckRequest struct {
	// ID is the idempotency key for the check. Re-submitting the same ID
	// against the same rules version yields the same decision.
	ID string `json:"id"`

	EntityID         string `json:"entityId"`
	JurisdictionCode string `json:"jurisdictionCode"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	CounterpartyID string `json:"counterpartyId,omitempty"`

	// DocType selects the identity document presented for KYC verification.
	// When empty, the jurisdiction's first required document type is used.
	DocType DocumentType `json:"docType,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// SubScores breaks the aggregate risk score into its weighted inputs.
type SubScores struct {
	KYC      int `json:"kyc"`
	AML      int `json:"aml"`
	Velocity int `json:"velocity"`
}

// CheckResult is the decision record for one CheckRequest. It is immutable
// once constructed; every check produces a fresh result so a later rule
// change cannot retroactively alter a past decision.
type CheckResult struct {
	ID               string `json:"id"`
	RequestID        string `json:"requestId"`
	EntityID         string `json:"entityId"`
	JurisdictionCode string `json:"jurisdictionCode"`

	Status    Status    `json:"status"`
	RiskScore int       `json:"riskScore"`
	SubScores SubScores `json:"subScores"`
	Flags     []Flag    `json:"flags,omitempty"`
	Reasoning string    `json:"reasoning"`

	// RulesVersion identifies the jurisdiction config snapshot the decision
	// was made against, for regulatory replay.
	RulesVersion string    `json:"rulesVersion"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

// HasFlag reports whether the result carries the given flag.
func (r *CheckResult) HasFlag(f Flag) bool {
	for _, v := range r.Flags {
		if v == f {
			return true
		}
	}
	return false
}

// KYCResult is the normalized output of an identity-verification provider.
// Provider-specific response fields outside this shape are dropped.
type KYCResult struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"` // 0.0 - 1.0
	Flags      []Flag  `json:"flags,omitempty"`
}

// HasFlag reports whether the KYC result carries the given flag.
func (k *KYCResult) HasFlag(f Flag) bool {
	for _, v := range k.Flags {
		if v == f {
			return true
		}
	}
	return false
}

// AMLResult is the normalized output of sanctions screening plus the local
// velocity check.
type AMLResult struct {
	RiskScore        int            `json:"riskScore"` // 0-100
	SanctionsHit     bool           `json:"sanctionsHit"`
	MatchedList      ListIdentifier `json:"matchedList,omitempty"`
	VelocityExceeded bool           `json:"velocityExceeded"`
	Flags            []Flag         `json:"flags,omitempty"`
}

// HasFlag reports whether the AML result carries the given flag.
func (a *AMLResult) HasFlag(f Flag) bool {
	for _, v := range a.Flags {
		if v == f {
			return true
		}
	}
	return false
}

// MergeFlags combines flag sets, deduplicates, and sorts for deterministic
// results and audit reproducibility.
func MergeFlags(sets ...[]Flag) []Flag {
	seen := make(map[Flag]struct{})
	for _, set := range sets {
		for _, f := range set {
			seen[f] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	merged := make([]Flag, 0, len(seen))
	for f := range seen {
		merged = append(merged, f)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	return merged
}

// Transaction is one recorded transfer, kept as the history the velocity
// check sums over.
type Transaction struct {
	ID             string          `json:"id"`
	EntityID       string          `json:"entityId"`
	CounterpartyID string          `json:"counterpartyId,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Jurisdiction   string          `json:"jurisdiction"`
	Timestamp      time.Time       `json:"timestamp"`
	CreatedAt      time.Time       `json:"createdAt"`
}
