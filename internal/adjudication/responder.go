package adjudication

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Responder answers adjudication requests arriving on the event bus.
type Responder struct {
	bus         domain.EventBus
	adjudicator domain.Adjudicator
}

// NewResponder creates a responder that delegates to adjudicator.
func NewResponder(bus domain.EventBus, adjudicator domain.Adjudicator) *Responder {
	return &Responder{bus: bus, adjudicator: adjudicator}
}

// Serve subscribes to adjudication requests for one tenant.
func (r *Responder) Serve(ctx context.Context, tenantID string) (domain.Subscription, error) {
	sub, err := r.bus.Subscribe(ctx, tenantID, domain.TopicAdjudicationRequest, r.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to adjudication requests: %w", err)
	}
	return sub, nil
}

func (r *Responder) handle(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var out reply
	var req domain.AdjudicationRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		out.Error = fmt.Sprintf("invalid request: %v", err)
	} else {
		req.TenantID = msg.TenantID
		resp, err := r.adjudicator.Adjudicate(ctx, req)
		if err != nil {
			out.Error = err.Error()
		} else {
			out.Response = &resp
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal adjudication reply: %w", err)
	}

	if err := r.bus.Reply(ctx, msg, data); err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}

	if out.Response != nil {
		slog.Debug("adjudicated",
			"tenant_id", msg.TenantID,
			"message_id", req.Message.ID,
			"decision", out.Response.Decision,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		slog.Warn("adjudication failed",
			"tenant_id", msg.TenantID,
			"message_id", req.Message.ID,
			"error", out.Error,
		)
	}
	return nil
}
