// Package worker processes batches submitted over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/adjudication"
	"github.com/opensource-finance/harrier/internal/batch"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/source"
)

// ErrNoTenants is returned by Start when no tenant is configured.
var ErrNoTenants = errors.New("worker: at least one tenant is required")

// BatchStore persists finished batch reports.
type BatchStore interface {
	SaveBatchReport(ctx context.Context, tenantID string, report *domain.BatchReport) error
}

// Worker runs submitted batches asynchronously and, when given a responder,
// answers adjudication requests for the same tenants.
type Worker struct {
	bus          domain.EventBus
	orchestrator *batch.Orchestrator
	store        BatchStore
	responder    *adjudication.Responder

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to serve. It must not be empty.
	TenantIDs []string
}

// NewWorker creates a new async worker. store and responder may be nil.
func NewWorker(bus domain.EventBus, orchestrator *batch.Orchestrator, store BatchStore, responder *adjudication.Responder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		orchestrator: orchestrator,
		store:        store,
		responder:    responder,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// BatchMessage is the payload published on domain.TopicBatchSubmitted.
type BatchMessage struct {
	BatchID  string                  `json:"batchId,omitempty"`
	TenantID string                  `json:"tenantId,omitempty"`
	TraceID  string                  `json:"traceId,omitempty"`
	Messages []domain.PaymentMessage `json:"messages"`
}

// BatchCompleted is the payload published on domain.TopicBatchCompleted.
type BatchCompleted struct {
	BatchID  string              `json:"batchId"`
	TenantID string              `json:"tenantId"`
	TraceID  string              `json:"traceId,omitempty"`
	Canceled bool                `json:"canceled,omitempty"`
	Summary  domain.BatchSummary `json:"summary"`
}

// Start begins processing batches for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return ErrNoTenants
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenant(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
		"responder", w.responder != nil,
	)

	return nil
}

func (w *Worker) startTenant(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicBatchSubmitted, w.handleBatch)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicBatchSubmitted, err)
	}
	w.track(sub)

	if w.responder != nil {
		rsub, err := w.responder.Serve(w.ctx, tenantID)
		if err != nil {
			return err
		}
		w.track(rsub)
	}

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicBatchSubmitted,
	)
	return nil
}

func (w *Worker) track(sub domain.Subscription) {
	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()
}

// handleBatch runs one submitted batch through the orchestrator.
func (w *Worker) handleBatch(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var payload BatchMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	tenantID := msg.TenantID
	if payload.TenantID != "" {
		tenantID = payload.TenantID
	}
	traceID := payload.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	report, err := w.orchestrator.RunTenant(ctx, tenantID, source.NewSlice(payload.Messages))
	if report == nil {
		slog.Error("batch failed",
			"batch_id", payload.BatchID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}
	if err != nil {
		slog.Error("batch results not persisted",
			"batch_id", payload.BatchID,
			"tenant_id", tenantID,
			"error", err,
		)
	}
	if payload.BatchID != "" {
		report.ID = payload.BatchID
	}

	if w.store != nil {
		if err := w.store.SaveBatchReport(ctx, tenantID, report); err != nil {
			slog.Error("failed to save batch report",
				"batch_id", report.ID,
				"error", err,
			)
		}
	}

	w.publishDecisions(ctx, tenantID, report)

	done, _ := json.Marshal(BatchCompleted{
		BatchID:  report.ID,
		TenantID: tenantID,
		TraceID:  traceID,
		Canceled: report.Canceled,
		Summary:  report.Summary,
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicBatchCompleted, done); err != nil {
		slog.Error("failed to publish batch completion",
			"batch_id", report.ID,
			"error", err,
		)
	}

	slog.Info("batch processed",
		"batch_id", report.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
		"total", report.Summary.Total,
		"failed", report.Summary.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// publishDecisions emits every routing decision, and an alert for each
// message that was rejected or held.
func (w *Worker) publishDecisions(ctx context.Context, tenantID string, report *domain.BatchReport) {
	for _, r := range report.Results {
		if r.Decision == nil {
			continue
		}
		payload, err := json.Marshal(r.Decision)
		if err != nil {
			continue
		}

		if err := w.bus.Publish(ctx, tenantID, domain.TopicDecision, payload); err != nil {
			slog.Error("failed to publish decision",
				"message_id", r.MessageID,
				"error", err,
			)
		}

		if r.Decision.Status == domain.StatusRejected || r.Decision.Status == domain.StatusHeld {
			if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
				slog.Error("failed to publish alert",
					"message_id", r.MessageID,
					"error", err,
				)
			}
		}
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
