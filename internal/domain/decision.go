package domain

import (
	"time"
)

// Disposition is the routing outcome for a message.
type Disposition string

const (
	DispositionAdmit  Disposition = "ADMIT"
	DispositionRefer  Disposition = "REFER"
	DispositionReject Disposition = "REJECT"
)

// AdjudicationDecision is the verdict returned by an adjudication collaborator.
type AdjudicationDecision string

const (
	DecisionApprove AdjudicationDecision = "APPROVE"
	DecisionHold    AdjudicationDecision = "HOLD"
	DecisionReject  AdjudicationDecision = "REJECT"
)

// FinalStatus is the terminal state of a message after routing and adjudication.
type FinalStatus string

const (
	StatusClean    FinalStatus = "CLEAN"    // admitted for processing
	StatusHeld     FinalStatus = "HELD"     // awaiting manual handling
	StatusRejected FinalStatus = "REJECTED" // blocked as fraudulent
	StatusPending  FinalStatus = "PENDING"  // referred, adjudication not yet resolved
)

// RoutingDecision records how a message was routed.
type RoutingDecision struct {
	MessageID       string                `json:"messageId"`
	Disposition     Disposition           `json:"disposition"`
	Status          FinalStatus           `json:"status"`
	Score           float64               `json:"score"`
	Reason          string                `json:"reason,omitempty"`
	ReviewThreshold float64               `json:"reviewThreshold"`
	RejectThreshold float64               `json:"rejectThreshold"`
	Escalated       bool                  `json:"escalated,omitempty"`
	Adjudication    *AdjudicationResponse `json:"adjudication,omitempty"`
	DecidedAt       time.Time             `json:"decidedAt"`
}

// Admitted reports whether the message may proceed to splitting.
func (d RoutingDecision) Admitted() bool {
	return d.Status == StatusClean
}

// AdjudicationRequest is emitted for every REFER decision.
type AdjudicationRequest struct {
	TenantID   string         `json:"tenantId"`
	Message    PaymentMessage `json:"message"`
	FraudScore FraudScore     `json:"fraudScore"`
	Indicators []string       `json:"indicators"`
}

// AdjudicationResponse carries the collaborator's verdict and narrative.
// Narrative fields are informational only; routing reads Decision alone.
type AdjudicationResponse struct {
	Decision           AdjudicationDecision `json:"decision"`
	Confidence         float64              `json:"confidence"`
	Reasoning          string               `json:"reasoning"`
	RiskFactors        []string             `json:"riskFactors,omitempty"`
	RecommendedActions []string             `json:"recommendedActions,omitempty"`
}
