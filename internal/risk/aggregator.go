// Package risk folds normalized sub-check results into one 0-100 score.
package risk

import (
	"math"

	"github.com/ableka/lumina/internal/domain"
)

// Assessment is the aggregated risk picture for one check.
// MatchedList carries the sanctions list that hit, when one did, so the
// decision reasoning can name it.
type Assessment struct {
	Score       int
	SubScores   domain.SubScores
	Flags       []domain.Flag
	MatchedList domain.ListIdentifier
}

// Aggregate combines the KYC, AML, and velocity sub-scores under the
// jurisdiction's weights. Pure: same inputs, same assessment.
//
// Sub-scores are each on a 0-100 risk scale: KYC risk is the inverse of
// verification confidence, AML risk comes straight from screening, and
// velocity contributes 100 when the window threshold is exceeded, else 0.
// If any input carries PROVIDER_UNAVAILABLE the score is floored at the
// jurisdiction's approve threshold, so a provider outage can never
// produce an automatic approval.
func Aggregate(kyc *domain.KYCResult, aml *domain.AMLResult, rules *domain.JurisdictionRules) Assessment {
	sub := domain.SubScores{
		KYC:      clamp(int(math.Round((1 - kyc.Confidence) * 100))),
		AML:      clamp(aml.RiskScore),
		Velocity: 0,
	}
	if aml.VelocityExceeded {
		sub.Velocity = 100
	}

	w := rules.RiskWeights
	weighted := w.KYC*float64(sub.KYC) + w.AML*float64(sub.AML) + w.Velocity*float64(sub.Velocity)
	score := clamp(int(math.Round(weighted)))

	flags := domain.MergeFlags(kyc.Flags, aml.Flags)
	for _, f := range flags {
		if f == domain.FlagProviderUnavailable && score < rules.DecisionThresholds.ApproveBelow {
			score = rules.DecisionThresholds.ApproveBelow
		}
	}

	return Assessment{
		Score:       score,
		SubScores:   sub,
		Flags:       flags,
		MatchedList: aml.MatchedList,
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
