package domain

import "time"

// Analyzer names used as keys in weight vectors and contributions.
const (
	AnalyzerAmount     = "amount"
	AnalyzerPattern    = "pattern"
	AnalyzerStructural = "structural"
	AnalyzerReference  = "reference"
	AnalyzerTiming     = "timing"
)

// ScoringMode identifies the combination formula used for a FraudScore.
type ScoringMode string

const (
	// ScoringWeighted is the weighted average used on the routing path.
	ScoringWeighted ScoringMode = "weighted"

	// ScoringUnweighted is the plain mean used for batch fraud context.
	ScoringUnweighted ScoringMode = "unweighted"
)

// FraudIndicatorResult is the output of one analyzer for one message.
type FraudIndicatorResult struct {
	Analyzer   string   `json:"analyzer"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`

	// Critical marks a finding that must never be admitted without review.
	Critical bool `json:"critical,omitempty"`

	// Err is a *ScoringError when the analyzer degraded on unparseable input.
	Err error `json:"-"`
}

// Contribution shows how a single analyzer contributed to a combined score.
type Contribution struct {
	Analyzer     string  `json:"analyzer"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"` // score * weight
}

// FraudScore is the immutable audit artifact produced once per message.
type FraudScore struct {
	MessageID     string             `json:"messageId"`
	Score         float64            `json:"score"`
	Mode          ScoringMode        `json:"mode"`
	Weights       map[string]float64 `json:"weights"`
	Contributions []Contribution     `json:"contributions"`
	Indicators    []string           `json:"indicators"`
	RuleResults   []RuleResult       `json:"ruleResults,omitempty"`
	Critical      bool               `json:"critical"`
	ScoredAt      time.Time          `json:"scoredAt"`
}
