// Package worker provides async check processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ableka/lumina/internal/domain"
)

// Checker runs a compliance check end to end. Satisfied by the orchestrator.
type Checker interface {
	Check(ctx context.Context, req *domain.CheckRequest) (*domain.CheckResult, error)
}

// Worker consumes check requests from the EventBus and runs them through
// the pipeline. Results are persisted and published by the pipeline itself,
// so the worker only drives execution and reports failures.
type Worker struct {
	bus     domain.EventBus
	checker Checker
	logger  *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, checker Checker, logger *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		checker: checker,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the check request topic and to escalations,
// which get a report filed on the report topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicCheckRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	escSub, err := w.bus.Subscribe(w.ctx, domain.TopicCheckEscalated, w.handleEscalation)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, escSub)

	w.logger.Info("worker started",
		"topics", []string{domain.TopicCheckRequested, domain.TopicCheckEscalated})
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var req domain.CheckRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("failed to parse check request message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	result, err := w.checker.Check(ctx, &req)
	if err != nil {
		w.logger.Error("async check failed",
			"request_id", req.ID,
			"entity_id", req.EntityID,
			"error", err,
		)
		return err
	}

	w.logger.Info("async check processed",
		"request_id", req.ID,
		"status", result.Status,
		"risk_score", result.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Report is the filing record published for an escalated check.
type Report struct {
	ID           string    `json:"id"`
	CheckID      string    `json:"checkId"`
	RequestID    string    `json:"requestId"`
	EntityID     string    `json:"entityId"`
	Jurisdiction string    `json:"jurisdiction"`
	RiskScore    int       `json:"riskScore"`
	Reasoning    string    `json:"reasoning"`
	FiledAt      time.Time `json:"filedAt"`
}

// handleEscalation files a report for an escalated check on the report
// topic, where downstream filing systems pick it up.
func (w *Worker) handleEscalation(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	var result domain.CheckResult
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		w.logger.Error("failed to parse escalated check",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	report := Report{
		ID:           uuid.NewString(),
		CheckID:      result.ID,
		RequestID:    result.RequestID,
		EntityID:     result.EntityID,
		Jurisdiction: result.JurisdictionCode,
		RiskScore:    result.RiskScore,
		Reasoning:    result.Reasoning,
		FiledAt:      time.Now().UTC(),
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := w.bus.Publish(ctx, domain.TopicReportFiled, payload); err != nil {
		w.logger.Error("failed to publish filed report",
			"check_id", result.ID,
			"error", err,
		)
		return err
	}

	w.logger.Info("report filed",
		"report_id", report.ID,
		"check_id", result.ID,
		"entity_id", result.EntityID,
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
