package domain

import "context"

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks -source=collaborators.go

// Adjudicator reviews referred messages and returns a verdict.
// Implementations must honor ctx cancellation; the caller owns the timeout.
type Adjudicator interface {
	Adjudicate(ctx context.Context, req AdjudicationRequest) (AdjudicationResponse, error)
}

// Corrector proposes a corrected message for one that failed validation.
// Candidates are never trusted: the caller re-validates them.
type Corrector interface {
	Correct(ctx context.Context, msg PaymentMessage, errs []ValidationError) (PaymentMessage, error)
}

// ResultSink persists finished batch artifacts.
type ResultSink interface {
	SaveResults(ctx context.Context, tenantID string, txs []ProcessedTransaction, scores []FraudScore, decisions []RoutingDecision) error
}

// MessageSource supplies a finite sequence of messages.
// Calling Messages again restarts the sequence from the beginning.
type MessageSource interface {
	Messages(ctx context.Context) ([]PaymentMessage, error)
}
