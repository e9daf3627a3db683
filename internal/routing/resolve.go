package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Resolver settles REFER decisions through an adjudication collaborator.
type Resolver struct {
	adjudicator domain.Adjudicator
	timeout     time.Duration
}

// NewResolver creates a resolver. Every call to Resolve is bounded by timeout.
func NewResolver(adjudicator domain.Adjudicator, timeout time.Duration) *Resolver {
	return &Resolver{adjudicator: adjudicator, timeout: timeout}
}

type verdict struct {
	resp domain.AdjudicationResponse
	err  error
}

// Resolve asks the adjudicator about a referred message.
// APPROVE admits it, REJECT rejects it and HOLD holds it. A collaborator
// error holds the message and is returned wrapped. A timeout holds the
// message and returns *domain.AdjudicationTimeout. The message is never
// admitted without an explicit APPROVE.
func (r *Resolver) Resolve(ctx context.Context, decision domain.RoutingDecision, req domain.AdjudicationRequest) (domain.RoutingDecision, error) {
	if decision.Disposition != domain.DispositionRefer {
		return decision, fmt.Errorf("%w: %s is %s", domain.ErrNotReferred, decision.MessageID, decision.Disposition)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Buffered so the goroutine never leaks when the deadline wins.
	ch := make(chan verdict, 1)
	go func() {
		resp, err := r.adjudicator.Adjudicate(ctx, req)
		ch <- verdict{resp: resp, err: err}
	}()

	var v verdict
	select {
	case v = <-ch:
	case <-ctx.Done():
		v.err = ctx.Err()
	}

	if v.err != nil {
		decision.Status = domain.StatusHeld
		if errors.Is(v.err, context.DeadlineExceeded) {
			decision.Reason = fmt.Sprintf("adjudication timed out after %s", r.timeout)
			return decision, &domain.AdjudicationTimeout{MessageID: decision.MessageID, Timeout: r.timeout}
		}
		decision.Reason = fmt.Sprintf("adjudication failed: %v", v.err)
		return decision, fmt.Errorf("adjudicate %s: %w", decision.MessageID, v.err)
	}

	resp := v.resp
	decision.Adjudication = &resp
	decision.Status = StatusFor(resp.Decision)
	decision.Reason = fmt.Sprintf("adjudicated %s (confidence %.2f)", resp.Decision, resp.Confidence)
	return decision, nil
}
