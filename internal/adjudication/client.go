package adjudication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("adjudication service unavailable")

// reply is the wire form of an adjudication answer.
type reply struct {
	Response *domain.AdjudicationResponse `json:"response,omitempty"`
	Error    string                       `json:"error,omitempty"`
}

// BusClient sends adjudication requests over the event bus and waits for the
// responder's verdict. Calls go through a circuit breaker so a dead responder
// fails fast instead of holding every referral until its timeout.
type BusClient struct {
	bus     domain.EventBus
	breaker *gobreaker.CircuitBreaker
}

// NewBusClient creates a bus-backed adjudicator.
func NewBusClient(bus domain.EventBus, cfg domain.AdjudicationConfig) *BusClient {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        "adjudication",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller abandoning the wait says nothing about the responder.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BusClient{
		bus:     bus,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Adjudicate implements domain.Adjudicator.
func (c *BusClient) Adjudicate(ctx context.Context, req domain.AdjudicationRequest) (domain.AdjudicationResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.AdjudicationResponse{}, fmt.Errorf("failed to marshal adjudication request: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.bus.Request(ctx, req.TenantID, domain.TopicAdjudicationRequest, payload)
		if err != nil {
			return nil, err
		}

		var r reply
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal adjudication reply: %w", err)
		}
		if r.Error != "" {
			return nil, fmt.Errorf("responder: %s", r.Error)
		}
		if r.Response == nil {
			return nil, errors.New("responder returned an empty reply")
		}
		return *r.Response, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.AdjudicationResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return domain.AdjudicationResponse{}, err
	}

	return out.(domain.AdjudicationResponse), nil
}

// State reports the breaker state: "closed", "half-open" or "open".
func (c *BusClient) State() string {
	return c.breaker.State().String()
}
