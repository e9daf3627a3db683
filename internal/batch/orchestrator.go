// Package batch runs validation, scoring, routing and splitting over a batch
// of payment messages.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harrier/internal/benford"
	"github.com/opensource-finance/harrier/internal/correction"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/routing"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/splitter"
	"github.com/opensource-finance/harrier/internal/validator"
)

const (
	defaultMaxWorkers          = 8
	defaultAdjudicationWorkers = 4
	defaultTenant              = "default"
	instrumentationName        = "github.com/opensource-finance/harrier/internal/batch"
)

// Components are the pipeline stages every run needs.
type Components struct {
	Validator *validator.Validator
	Scorer    *scoring.Engine
	Benford   *benford.Analyzer
	Router    *routing.Router
	Splitter  *splitter.Splitter
}

// Orchestrator runs batches. It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	cfg        domain.BatchConfig
	components Components
	correction *correction.Service
	resolver   *routing.Resolver
	sink       domain.ResultSink
	tenantID   string
	now        func() time.Time

	tracer       trace.Tracer
	dispositions metric.Int64Counter
	failures     metric.Int64Counter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCorrection enables automatic correction of invalid messages.
func WithCorrection(svc *correction.Service) Option {
	return func(o *Orchestrator) { o.correction = svc }
}

// WithResolver settles REFER decisions through adjudication. Without one,
// referred messages stay PENDING.
func WithResolver(r *routing.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithSink persists the finished artifacts of every run.
func WithSink(sink domain.ResultSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithTenant sets the tenant used by Run.
func WithTenant(tenantID string) Option {
	return func(o *Orchestrator) { o.tenantID = tenantID }
}

// WithClock overrides the report clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(cfg domain.BatchConfig, c Components, opts ...Option) (*Orchestrator, error) {
	if c.Validator == nil || c.Scorer == nil || c.Benford == nil || c.Router == nil || c.Splitter == nil {
		return nil, errors.New("batch: all pipeline components are required")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.AdjudicationWorkers <= 0 {
		cfg.AdjudicationWorkers = defaultAdjudicationWorkers
	}
	if cfg.AnomalyFactor <= 0 {
		cfg.AnomalyFactor = defaultAnomalyFactor
	}

	o := &Orchestrator{
		cfg:        cfg,
		components: c,
		tenantID:   defaultTenant,
		now:        time.Now,
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if o.dispositions, err = meter.Int64Counter("harrier.batch.dispositions",
		metric.WithDescription("Routed messages by disposition and final status")); err != nil {
		return nil, fmt.Errorf("failed to create dispositions counter: %w", err)
	}
	if o.failures, err = meter.Int64Counter("harrier.batch.failures",
		metric.WithDescription("Messages that ended in an error")); err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}

	return o, nil
}

// work is the mutable per-message state of one run. Each slot is written by
// exactly one goroutine per stage.
type work struct {
	msg       domain.PaymentMessage
	result    domain.MessageResult
	validated bool
}

// Run processes every message of source for the configured tenant.
func (o *Orchestrator) Run(ctx context.Context, source domain.MessageSource) (*domain.BatchReport, error) {
	return o.RunTenant(ctx, o.tenantID, source)
}

// RunTenant processes every message of source for tenantID.
//
// Per-message failures never abort the run; they are recorded on the
// message's result. When ctx is canceled, messages not yet started are tagged
// with domain.ErrCanceled and work already started completes. An error is
// returned only when the source cannot be read or the sink rejects the
// results; in the latter case the report is still returned.
func (o *Orchestrator) RunTenant(ctx context.Context, tenantID string, source domain.MessageSource) (*domain.BatchReport, error) {
	ctx, span := o.tracer.Start(ctx, "batch.Run", trace.WithAttributes(attribute.String("tenant_id", tenantID)))
	defer span.End()

	msgs, err := source.Messages(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "source failed")
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	report := &domain.BatchReport{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		StartedAt: o.now().UTC(),
	}
	span.SetAttributes(attribute.String("batch_id", report.ID), attribute.Int("messages", len(msgs)))

	items := o.scoreAll(ctx, msgs)

	// Benford reads the scored snapshot only after the pool has drained.
	var amounts []string
	var scored []domain.PaymentMessage
	for i := range items {
		if items[i].result.Score != nil {
			amounts = append(amounts, items[i].msg.Amount)
			scored = append(scored, items[i].msg)
		}
	}
	report.Benford = o.components.Benford.AnalyzeAmounts(amounts)
	th := o.components.Router.ForBatch(report.Benford)
	if report.Benford.Significant {
		slog.Warn("benford deviation significant, thresholds lowered",
			"batch_id", report.ID,
			"tenant_id", tenantID,
			"p_value", report.Benford.PValue,
			"review_threshold", th.Review,
			"reject_threshold", th.Reject,
		)
	}

	var referred []int
	for i := range items {
		if items[i].result.Score == nil {
			continue
		}
		d := o.components.Router.Decide(*items[i].result.Score, th)
		items[i].result.Decision = &d
		if d.Disposition == domain.DispositionRefer {
			referred = append(referred, i)
		}
	}

	if o.resolver != nil && len(referred) > 0 {
		o.adjudicateAll(ctx, tenantID, items, referred)
	}

	var txs []domain.ProcessedTransaction
	for i := range items {
		if tx, ok := o.split(&items[i]); ok {
			txs = append(txs, tx)
		}
	}

	report.Canceled = ctx.Err() != nil
	o.summarize(ctx, report, items, txs, scored)

	if o.sink != nil {
		var scores []domain.FraudScore
		var decisions []domain.RoutingDecision
		for i := range items {
			if items[i].result.Score != nil {
				scores = append(scores, *items[i].result.Score)
			}
			if items[i].result.Decision != nil {
				decisions = append(decisions, *items[i].result.Decision)
			}
		}
		// Finished work is kept even when the run was canceled.
		if err := o.sink.SaveResults(context.WithoutCancel(ctx), tenantID, txs, scores, decisions); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sink failed")
			return report, fmt.Errorf("failed to save results: %w", err)
		}
	}

	slog.Info("batch completed",
		"batch_id", report.ID,
		"tenant_id", tenantID,
		"total", report.Summary.Total,
		"failed", report.Summary.Failed,
		"processed", report.Summary.Processed,
		"canceled", report.Canceled,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

// scoreAll validates, corrects and scores msgs on a bounded pool.
func (o *Orchestrator) scoreAll(ctx context.Context, msgs []domain.PaymentMessage) []work {
	items := make([]work, len(msgs))
	sem := make(chan struct{}, o.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for i, msg := range msgs {
		items[i] = work{
			msg:    msg,
			result: domain.MessageResult{Index: i, MessageID: msg.ID},
		}

		if ctx.Err() != nil {
			items[i].result.Err = domain.ErrCanceled
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			items[i].result.Err = domain.ErrCanceled
			continue
		}
		// The slot may have been freed by the worker that saw the cancel.
		if ctx.Err() != nil {
			<-sem
			items[i].result.Err = domain.ErrCanceled
			continue
		}

		wg.Add(1)
		go func(w *work) {
			defer wg.Done()
			defer func() { <-sem }()
			o.scoreOne(ctx, w)
		}(&items[i])
	}

	wg.Wait()
	return items
}

func (o *Orchestrator) scoreOne(ctx context.Context, w *work) {
	defer func() {
		if r := recover(); r != nil {
			w.result.Err = fmt.Errorf("panic processing message %s: %v", w.msg.ID, r)
			slog.Error("recovered panic in batch worker", "message_id", w.msg.ID, "panic", r)
		}
	}()

	res := o.components.Validator.Validate(w.msg)
	if !res.IsValid && o.correction != nil && o.cfg.AutoCorrect {
		corrected, cres, err := o.correction.Correct(ctx, w.msg, res)
		if err != nil {
			slog.Debug("correction not applied", "message_id", w.msg.ID, "error", err)
		} else {
			w.msg, res = corrected, cres
			w.result.Corrected = true
		}
	}
	w.result.Validation = res
	w.validated = true

	if !res.IsValid {
		w.result.Err = validationError(w.msg.ID, res)
		return
	}
	if amount, ok := validator.CanonicalAmount(w.msg.Amount); ok {
		w.msg.Amount = amount
	}

	score := o.components.Scorer.Score(ctx, w.msg)
	batchScore := o.components.Scorer.ScoreUnweighted(w.msg)
	w.result.Score = &score
	w.result.BatchScore = &batchScore
}

// adjudicateAll resolves referrals on their own pool so a slow adjudicator
// never occupies scoring workers.
func (o *Orchestrator) adjudicateAll(ctx context.Context, tenantID string, items []work, referred []int) {
	sem := make(chan struct{}, o.cfg.AdjudicationWorkers)
	var wg sync.WaitGroup

	for _, idx := range referred {
		wg.Add(1)
		go func(w *work) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			defer func() {
				if r := recover(); r != nil {
					held := *w.result.Decision
					held.Status = domain.StatusHeld
					w.result.Decision = &held
					w.result.Err = fmt.Errorf("panic adjudicating message %s: %v", w.msg.ID, r)
					slog.Error("recovered panic in adjudication worker", "message_id", w.msg.ID, "panic", r)
				}
			}()

			req := domain.AdjudicationRequest{
				TenantID:   tenantID,
				Message:    w.msg,
				FraudScore: *w.result.Score,
				Indicators: w.result.Score.Indicators,
			}
			resolved, err := o.resolver.Resolve(ctx, *w.result.Decision, req)
			w.result.Decision = &resolved
			if err != nil {
				w.result.Err = err
				slog.Warn("adjudication did not settle referral",
					"tenant_id", tenantID,
					"message_id", w.msg.ID,
					"status", resolved.Status,
					"error", err,
				)
			}
		}(&items[idx])
	}

	wg.Wait()
}

// split decomposes an admitted message. A transaction that cannot be
// balanced is dropped whole and the message is tagged with the BalanceError.
func (o *Orchestrator) split(w *work) (domain.ProcessedTransaction, bool) {
	if w.result.Err != nil || w.result.Decision == nil || !w.result.Decision.Admitted() {
		return domain.ProcessedTransaction{}, false
	}

	tx, err := o.components.Splitter.Split(w.msg, *w.result.Decision)
	if err != nil {
		w.result.Err = err
		return domain.ProcessedTransaction{}, false
	}

	if !tx.Balanced {
		fixed, _, err := o.components.Splitter.FixBalance(tx)
		if err != nil {
			w.result.Err = err
			return domain.ProcessedTransaction{}, false
		}
		tx = fixed
	}

	w.result.Transaction = &tx
	return tx, true
}

func (o *Orchestrator) summarize(ctx context.Context, report *domain.BatchReport, items []work, txs []domain.ProcessedTransaction, scored []domain.PaymentMessage) {
	summary := domain.BatchSummary{
		Total:        len(items),
		Dispositions: make(map[domain.Disposition]int),
		Statuses:     make(map[domain.FinalStatus]int),
		Processed:    len(txs),
	}

	var validations []domain.ValidationResult
	report.Results = make([]domain.MessageResult, len(items))
	for i := range items {
		r := items[i].result
		if r.Err != nil {
			r.Error = r.Err.Error()
			summary.Failed++
		}
		if r.Decision != nil {
			summary.Dispositions[r.Decision.Disposition]++
			summary.Statuses[r.Decision.Status]++
			o.dispositions.Add(ctx, 1, metric.WithAttributes(
				attribute.String("disposition", string(r.Decision.Disposition)),
				attribute.String("status", string(r.Decision.Status)),
			))
		}
		if items[i].validated {
			validations = append(validations, r.Validation)
		}
		report.Results[i] = r
	}
	if summary.Failed > 0 {
		o.failures.Add(ctx, int64(summary.Failed))
	}

	report.Summary = summary
	report.Validation = validator.Summarize(validations)
	report.Balance = o.components.Splitter.ValidateBatch(txs)
	report.Patterns = AnalyzePatterns(scored, o.cfg.AnomalyFactor)
	report.FinishedAt = o.now().UTC()
}

// validationError joins the field errors so errors.Is matches each code sentinel.
func validationError(id string, res domain.ValidationResult) error {
	errs := make([]error, len(res.Errors))
	for i, e := range res.Errors {
		errs[i] = e
	}
	return fmt.Errorf("message %s failed validation: %w", id, errors.Join(errs...))
}
