package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DocumentType identifies a KYC identity document class.
type DocumentType string

// ListIdentifier names a sanctions/watch list (e.g. "ofac_sdn",
// "un_consolidated", "eu_sanctions").
type ListIdentifier string

// RiskWeights distributes the aggregate risk score across the three
// sub-checks. The weights must sum to 1.0 within WeightEpsilon.
type RiskWeights struct {
	KYC      float64 `json:"kyc" yaml:"kyc"`
	AML      float64 `json:"aml" yaml:"aml"`
	Velocity float64 `json:"velocity" yaml:"velocity"`
}

// WeightEpsilon is the tolerance for the risk-weight sum check.
const WeightEpsilon = 0.001

// Sum returns the total of all weights.
func (w RiskWeights) Sum() float64 {
	return w.KYC + w.AML + w.Velocity
}

// Validate checks the weights are non-negative and sum to 1.0.
func (w RiskWeights) Validate() error {
	if w.KYC < 0 || w.AML < 0 || w.Velocity < 0 {
		return fmt.Errorf("risk weights must be non-negative")
	}
	if math.Abs(w.Sum()-1.0) > WeightEpsilon {
		return fmt.Errorf("risk weights sum to %.4f, want 1.0 ±%.3f", w.Sum(), WeightEpsilon)
	}
	return nil
}

// DecisionThresholds maps the 0-100 aggregate score onto a verdict.
// Scores below ApproveBelow approve; scores at or above RejectAbove reject;
// the band between escalates to manual review.
type DecisionThresholds struct {
	ApproveBelow int `json:"approveBelow" yaml:"approve_below"`
	RejectAbove  int `json:"rejectAbove" yaml:"reject_above"`
}

// Validate checks the thresholds form a proper band on the 0-100 scale.
func (t DecisionThresholds) Validate() error {
	if t.ApproveBelow < 0 || t.RejectAbove > 100 {
		return fmt.Errorf("decision thresholds must lie within 0-100")
	}
	if t.ApproveBelow >= t.RejectAbove {
		return fmt.Errorf("approve_below (%d) must be less than reject_above (%d)", t.ApproveBelow, t.RejectAbove)
	}
	return nil
}

// ScreeningRule is an optional jurisdiction-specific CEL expression evaluated
// over the check request. A rule that evaluates to true adds its flag to the
// check's flag set.
type ScreeningRule struct {
	ID         string `json:"id" yaml:"id"`
	Expression string `json:"expression" yaml:"expression"`
	Flag       Flag   `json:"flag" yaml:"flag"`
	Reason     string `json:"reason" yaml:"reason"`
}

// JurisdictionRules is the complete rule set for one regulatory region.
// Instances are immutable once loaded; a reload replaces the whole snapshot,
// never mutates rules in place.
type JurisdictionRules struct {
	Code string `json:"code"`

	KYCDocRequirements []DocumentType   `json:"kycDocRequirements"`
	AMLSanctionsLists  []ListIdentifier `json:"amlSanctionsLists"`

	VelocityWindowSeconds   int             `json:"velocityWindowSeconds"`
	VelocityThresholdAmount decimal.Decimal `json:"velocityThresholdAmount"`

	RiskWeights        RiskWeights        `json:"riskWeights"`
	DecisionThresholds DecisionThresholds `json:"decisionThresholds"`

	ScreeningRules []ScreeningRule `json:"screeningRules,omitempty"`
}

// Validate checks internal consistency of the rule set.
func (j *JurisdictionRules) Validate() error {
	if j.Code == "" {
		return fmt.Errorf("jurisdiction code is required")
	}
	if len(j.KYCDocRequirements) == 0 {
		return fmt.Errorf("at least one KYC document requirement is required")
	}
	if len(j.AMLSanctionsLists) == 0 {
		return fmt.Errorf("at least one sanctions list is required")
	}
	if j.VelocityWindowSeconds <= 0 {
		return fmt.Errorf("velocity_window_seconds must be positive")
	}
	if j.VelocityThresholdAmount.Sign() <= 0 {
		return fmt.Errorf("velocity_threshold_amount must be positive")
	}
	if err := j.RiskWeights.Validate(); err != nil {
		return err
	}
	if err := j.DecisionThresholds.Validate(); err != nil {
		return err
	}
	for _, r := range j.ScreeningRules {
		if r.ID == "" || r.Expression == "" || r.Flag == "" {
			return fmt.Errorf("screening rule requires id, expression, and flag")
		}
	}
	return nil
}

// DefaultDocType returns the first required document type, used when a
// request does not name one.
func (j *JurisdictionRules) DefaultDocType() DocumentType {
	if len(j.KYCDocRequirements) == 0 {
		return ""
	}
	return j.KYCDocRequirements[0]
}

// RequiresDoc reports whether the given document type satisfies the
// jurisdiction's KYC requirements.
func (j *JurisdictionRules) RequiresDoc(doc DocumentType) bool {
	for _, d := range j.KYCDocRequirements {
		if d == doc {
			return true
		}
	}
	return false
}
