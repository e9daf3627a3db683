// Package adjudication provides adjudicators for referred messages.
package adjudication

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// RiskLevel buckets a fraud score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Level cutoffs.
const (
	mediumFrom = 0.3
	highFrom   = 0.7

	// rejectIndicators is how many indicators a high-risk message needs to be rejected outright.
	rejectIndicators = 3
)

// LevelFor returns the risk level of a score.
func LevelFor(score float64) RiskLevel {
	switch {
	case score < mediumFrom:
		return RiskLow
	case score < highFrom:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Policy is a deterministic local adjudicator.
//
// Critical findings are always held for a human. High-risk messages are
// rejected when they carry enough indicators and held otherwise. Everything
// else is approved.
type Policy struct{}

// NewPolicy creates a policy adjudicator.
func NewPolicy() *Policy {
	return &Policy{}
}

// Adjudicate implements domain.Adjudicator.
func (p *Policy) Adjudicate(ctx context.Context, req domain.AdjudicationRequest) (domain.AdjudicationResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.AdjudicationResponse{}, err
	}

	score := req.FraudScore.Score
	level := LevelFor(score)
	indicators := req.Indicators
	if len(indicators) == 0 {
		indicators = req.FraudScore.Indicators
	}

	resp := domain.AdjudicationResponse{
		RiskFactors: append([]string(nil), indicators...),
	}

	switch {
	case req.FraudScore.Critical:
		resp.Decision = domain.DecisionHold
		resp.Confidence = 0.9
		resp.Reasoning = fmt.Sprintf("critical indicator present (%s risk, score %.3f)", level, score)
		resp.RecommendedActions = []string{"verify counterparty identity", "confirm message origin with sender bank"}
	case level == RiskHigh && len(indicators) >= rejectIndicators:
		resp.Decision = domain.DecisionReject
		resp.Confidence = 0.8
		resp.Reasoning = fmt.Sprintf("high risk score %.3f with %d indicators", score, len(indicators))
		resp.RecommendedActions = []string{"notify compliance", "return funds to sender"}
	case level == RiskHigh:
		resp.Decision = domain.DecisionHold
		resp.Confidence = 0.6
		resp.Reasoning = fmt.Sprintf("high risk score %.3f", score)
		resp.RecommendedActions = []string{"manual review"}
	default:
		resp.Decision = domain.DecisionApprove
		resp.Confidence = 0.7
		resp.Reasoning = fmt.Sprintf("%s risk score %.3f without critical findings", level, score)
	}

	return resp, nil
}
