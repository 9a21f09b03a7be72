// Package orchestrator runs the full compliance check pipeline.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ableka/lumina/internal/decision"
	"github.com/ableka/lumina/internal/domain"
	"github.com/ableka/lumina/internal/jurisdiction"
	"github.com/ableka/lumina/internal/metrics"
	"github.com/ableka/lumina/internal/risk"
)

var tracer = otel.Tracer("lumina-orchestrator")

const defaultOverallTimeout = 10 * time.Second

// KYCVerifier verifies an entity's identity documents.
type KYCVerifier interface {
	Verify(ctx context.Context, entityID string, docType domain.DocumentType, jurisdiction string) (*domain.KYCResult, error)
}

// AMLScreener screens an entity against sanctions lists and the
// velocity threshold.
type AMLScreener interface {
	Screen(ctx context.Context, req *domain.CheckRequest, rules *domain.JurisdictionRules) (*domain.AMLResult, error)
}

// RuleSource resolves jurisdiction rule snapshots. The returned
// Compiled carries the snapshot version it belongs to.
type RuleSource interface {
	Get(code string) (*jurisdiction.Compiled, error)
}

// Orchestrator coordinates one compliance check end to end: resolve
// rules, run both providers in parallel under a deadline, aggregate,
// decide, persist the audit record, and publish the outcome.
type Orchestrator struct {
	rules   RuleSource
	kyc     KYCVerifier
	aml     AMLScreener
	repo    domain.Repository
	bus     domain.EventBus
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Rules          RuleSource
	KYC            KYCVerifier
	AML            AMLScreener
	Repository     domain.Repository
	Bus            domain.EventBus
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	OverallTimeout time.Duration
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	timeout := cfg.OverallTimeout
	if timeout <= 0 {
		timeout = defaultOverallTimeout
	}
	return &Orchestrator{
		rules:   cfg.Rules,
		kyc:     cfg.KYC,
		aml:     cfg.AML,
		repo:    cfg.Repository,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		timeout: timeout,
	}
}

// Check runs one compliance check. Every request that names a loaded
// jurisdiction and passes validation yields a CheckResult; provider
// outages surface as flags on the result, never as errors.
func (o *Orchestrator) Check(ctx context.Context, req *domain.CheckRequest) (*domain.CheckResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "check",
		trace.WithAttributes(
			attribute.String("request.id", req.ID),
			attribute.String("entity.id", req.EntityID),
			attribute.String("jurisdiction", req.JurisdictionCode),
		))
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	compiled, err := o.rules.Get(req.JurisdictionCode)
	if err != nil {
		return nil, err
	}
	rules := compiled.Rules

	docType := req.DocType
	if docType == "" {
		docType = rules.DefaultDocType()
	} else if !rules.RequiresDoc(docType) {
		return nil, &domain.ValidationError{
			Source: "request",
			Reason: fmt.Sprintf("document type %q not accepted in %s", docType, rules.Code),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// Record the transfer before screening so the velocity window sees
	// attempted volume. The velocity check excludes this row by ID, and
	// re-submitting the same request ID overwrites rather than
	// duplicates.
	if err := o.repo.SaveTransaction(checkCtx, transactionFromRequest(req)); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	kycResult, amlResult, err := o.screen(checkCtx, req, docType, rules)
	if err != nil {
		return nil, err
	}

	assessment := risk.Aggregate(kycResult, amlResult, rules)

	screenFlags, screenReasons := jurisdiction.Evaluate(compiled.Screening, jurisdiction.ScreeningInput{
		Amount:         req.Amount.InexactFloat64(),
		Currency:       req.Currency,
		EntityID:       req.EntityID,
		CounterpartyID: req.CounterpartyID,
		Jurisdiction:   rules.Code,
	})
	if len(screenFlags) > 0 {
		assessment.Flags = domain.MergeFlags(assessment.Flags, screenFlags)
	}

	result := decision.Decide(req, assessment, rules, compiled.Version, time.Now().UTC())
	for _, reason := range screenReasons {
		result.Reasoning += "; " + reason
	}

	if err := o.repo.SaveCheckResult(ctx, result); err != nil {
		return nil, fmt.Errorf("persist audit record: %w", err)
	}

	o.publish(ctx, result)

	o.metrics.IncrementOutcome(string(result.Status), result.JurisdictionCode)
	o.metrics.ObserveCheckLatency(time.Since(start))
	span.SetAttributes(
		attribute.String("check.status", string(result.Status)),
		attribute.Int("check.risk_score", result.RiskScore),
	)

	o.logger.Info("check completed",
		"request", req.ID,
		"entity", req.EntityID,
		"jurisdiction", result.JurisdictionCode,
		"status", result.Status,
		"risk_score", result.RiskScore,
		"rules_version", result.RulesVersion,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// screen runs the KYC and AML adapters in parallel. If an adapter is
// still pending when the overall deadline passes, its result is
// replaced with a PROVIDER_UNAVAILABLE outcome.
func (o *Orchestrator) screen(ctx context.Context, req *domain.CheckRequest, docType domain.DocumentType, rules *domain.JurisdictionRules) (*domain.KYCResult, *domain.AMLResult, error) {
	var kycResult *domain.KYCResult
	var amlResult *domain.AMLResult

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		res, err := o.kyc.Verify(gctx, req.EntityID, docType, rules.Code)
		o.metrics.ObserveProviderLatency("kyc", time.Since(start))
		if err != nil {
			return err
		}
		if res.HasFlag(domain.FlagProviderUnavailable) {
			o.metrics.IncrementProviderError("kyc")
		}
		kycResult = res
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		res, err := o.aml.Screen(gctx, req, rules)
		o.metrics.ObserveProviderLatency("aml", time.Since(start))
		if err != nil {
			return err
		}
		if res.HasFlag(domain.FlagProviderUnavailable) {
			o.metrics.IncrementProviderError("aml")
		}
		amlResult = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if kycResult == nil {
		kycResult = &domain.KYCResult{Flags: []domain.Flag{domain.FlagProviderUnavailable}}
	}
	if amlResult == nil {
		amlResult = &domain.AMLResult{Flags: []domain.Flag{domain.FlagProviderUnavailable}}
	}

	return kycResult, amlResult, nil
}

func (o *Orchestrator) publish(ctx context.Context, result *domain.CheckResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		o.logger.Error("encode result for publish", "result", result.ID, "error", err)
		return
	}

	topics := []string{domain.TopicCheckCompleted}
	switch result.Status {
	case domain.StatusEscalated:
		topics = append(topics, domain.TopicCheckEscalated)
	case domain.StatusRejected:
		topics = append(topics, domain.TopicCheckRejected)
	}

	for _, topic := range topics {
		if err := o.bus.Publish(ctx, topic, payload); err != nil {
			o.logger.Warn("publish check result", "topic", topic, "result", result.ID, "error", err)
		}
	}
}

func validateRequest(req *domain.CheckRequest) error {
	switch {
	case req.ID == "":
		return &domain.ValidationError{Source: "request", Reason: "id is required"}
	case req.EntityID == "":
		return &domain.ValidationError{Source: "request", Reason: "entityId is required"}
	case req.JurisdictionCode == "":
		return &domain.ValidationError{Source: "request", Reason: "jurisdictionCode is required"}
	case req.Currency == "":
		return &domain.ValidationError{Source: "request", Reason: "currency is required"}
	case req.Amount.Sign() <= 0:
		return &domain.ValidationError{Source: "request", Reason: "amount must be positive"}
	}
	return nil
}

func transactionFromRequest(req *domain.CheckRequest) *domain.Transaction {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &domain.Transaction{
		ID:             req.ID,
		EntityID:       req.EntityID,
		CounterpartyID: req.CounterpartyID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Jurisdiction:   req.JurisdictionCode,
		Timestamp:      ts,
		CreatedAt:      time.Now().UTC(),
	}
}
