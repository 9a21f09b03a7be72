// Package decision maps an aggregated risk assessment onto a verdict.
package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ableka/lumina/internal/domain"
	"github.com/ableka/lumina/internal/risk"
)

// Decide produces the final check result. Pure apart from the generated
// record ID: the same request, assessment, and rules always yield the
// same status and reasoning.
//
// Branch order: a sanctions hit rejects outright regardless of score;
// then score >= rejectAbove rejects, score >= approveBelow escalates,
// anything below approves. Both thresholds are inclusive toward the
// riskier branch.
func Decide(req *domain.CheckRequest, assessment risk.Assessment, rules *domain.JurisdictionRules, rulesVersion string, evaluatedAt time.Time) *domain.CheckResult {
	result := &domain.CheckResult{
		ID:               uuid.New().String(),
		RequestID:        req.ID,
		EntityID:         req.EntityID,
		JurisdictionCode: rules.Code,
		RiskScore:        assessment.Score,
		SubScores:        assessment.SubScores,
		Flags:            assessment.Flags,
		RulesVersion:     rulesVersion,
		EvaluatedAt:      evaluatedAt,
	}

	t := rules.DecisionThresholds
	switch {
	case hasFlag(assessment.Flags, domain.FlagSanctionsHit):
		result.Status = domain.StatusRejected
		matched := "sanctions screening matched"
		if assessment.MatchedList != "" {
			matched = fmt.Sprintf("sanctions screening matched list %s", assessment.MatchedList)
		}
		result.Reasoning = matched + "; rejected regardless of risk score " +
			scoreDetail(assessment)
	case assessment.Score >= t.RejectAbove:
		result.Status = domain.StatusRejected
		result.Reasoning = fmt.Sprintf("risk score %d at or above reject threshold %d %s",
			assessment.Score, t.RejectAbove, scoreDetail(assessment))
	case assessment.Score >= t.ApproveBelow:
		result.Status = domain.StatusEscalated
		result.Reasoning = fmt.Sprintf("risk score %d in escalation band [%d, %d) %s",
			assessment.Score, t.ApproveBelow, t.RejectAbove, scoreDetail(assessment))
	default:
		result.Status = domain.StatusApproved
		result.Reasoning = fmt.Sprintf("risk score %d below approve threshold %d %s",
			assessment.Score, t.ApproveBelow, scoreDetail(assessment))
	}

	return result
}

// scoreDetail names the dominant sub-score and any raised flags, so the
// audit trail explains the decision without replaying it.
func scoreDetail(a risk.Assessment) string {
	dominant := "kyc"
	high := a.SubScores.KYC
	if a.SubScores.AML > high {
		dominant, high = "aml", a.SubScores.AML
	}
	if a.SubScores.Velocity > high {
		dominant, high = "velocity", a.SubScores.Velocity
	}

	detail := fmt.Sprintf("(dominant sub-score %s=%d", dominant, high)
	if len(a.Flags) > 0 {
		parts := make([]string, len(a.Flags))
		for i, f := range a.Flags {
			parts[i] = string(f)
		}
		detail += "; flags: " + strings.Join(parts, ", ")
	}
	return detail + ")"
}

func hasFlag(flags []domain.Flag, f domain.Flag) bool {
	for _, v := range flags {
		if v == f {
			return true
		}
	}
	return false
}
