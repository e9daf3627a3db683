// Package scoring combines analyzer outputs into an auditable fraud score.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// analyzerOrder fixes the order of contributions and indicators in a FraudScore.
var analyzerOrder = []string{
	domain.AnalyzerAmount,
	domain.AnalyzerPattern,
	domain.AnalyzerStructural,
	domain.AnalyzerReference,
	domain.AnalyzerTiming,
}

// Engine scores messages with the weighted and unweighted combination formulas.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	analyzers      map[string]rules.Analyzer
	weights        map[string]float64
	weightTotal    float64
	batchAnalyzers []string
	custom         *rules.Engine
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules attaches a custom CEL rule engine. Rule outcomes add indicators
// and may mark a score critical; they never change the numeric score.
func WithRules(custom *rules.Engine) Option {
	return func(e *Engine) {
		e.custom = custom
	}
}

// WithClock overrides the clock used for timing analysis and ScoredAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a scoring engine.
func New(cfg domain.ScoringConfig, analyzerCfg domain.AnalyzerConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		weights:        make(map[string]float64, len(cfg.Weights)),
		batchAnalyzers: append([]string(nil), cfg.BatchAnalyzers...),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	// Analyzers read the clock through the engine so WithClock covers them too.
	analyzers, err := rules.NewAnalyzers(analyzerCfg, func() time.Time { return e.now() })
	if err != nil {
		return nil, err
	}
	e.analyzers = analyzers

	for name, w := range cfg.Weights {
		if _, ok := analyzers[name]; !ok {
			return nil, fmt.Errorf("unknown analyzer in weights: %s", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative weight for analyzer %s: %f", name, w)
		}
		e.weights[name] = w
	}
	// Summed in analyzer order so every engine divides by the same float.
	for _, name := range analyzerOrder {
		e.weightTotal += e.weights[name]
	}
	if e.weightTotal == 0 {
		return nil, fmt.Errorf("weights must not all be zero")
	}

	if len(e.batchAnalyzers) == 0 {
		return nil, fmt.Errorf("at least one batch analyzer is required")
	}
	for _, name := range e.batchAnalyzers {
		if _, ok := analyzers[name]; !ok {
			return nil, fmt.Errorf("unknown batch analyzer: %s", name)
		}
	}

	return e, nil
}

// Weights returns a copy of the routing-path weight vector.
func (e *Engine) Weights() map[string]float64 {
	return copyWeights(e.weights)
}

// Score computes the weighted score used on the routing path.
func (e *Engine) Score(ctx context.Context, msg domain.PaymentMessage) domain.FraudScore {
	score := domain.FraudScore{
		MessageID: msg.ID,
		Mode:      domain.ScoringWeighted,
		Weights:   copyWeights(e.weights),
	}

	var total float64
	for _, name := range analyzerOrder {
		w, ok := e.weights[name]
		if !ok {
			continue
		}
		result := e.analyzers[name].Analyze(msg)
		contribution := result.Score * w
		total += contribution

		score.Contributions = append(score.Contributions, domain.Contribution{
			Analyzer:     name,
			Score:        result.Score,
			Weight:       w,
			Contribution: contribution,
		})
		score.Indicators = append(score.Indicators, result.Indicators...)
		score.Critical = score.Critical || result.Critical
	}
	score.Score = clamp(total / e.weightTotal)

	e.applyRules(ctx, msg, &score)
	score.ScoredAt = e.now()
	return score
}

// ScoreUnweighted computes the arithmetic mean of the batch analyzers.
func (e *Engine) ScoreUnweighted(msg domain.PaymentMessage) domain.FraudScore {
	n := float64(len(e.batchAnalyzers))
	score := domain.FraudScore{
		MessageID: msg.ID,
		Mode:      domain.ScoringUnweighted,
		Weights:   make(map[string]float64, len(e.batchAnalyzers)),
	}

	var total float64
	for _, name := range e.batchAnalyzers {
		result := e.analyzers[name].Analyze(msg)
		total += result.Score

		score.Weights[name] = 1 / n
		score.Contributions = append(score.Contributions, domain.Contribution{
			Analyzer:     name,
			Score:        result.Score,
			Weight:       1 / n,
			Contribution: result.Score / n,
		})
		score.Indicators = append(score.Indicators, result.Indicators...)
		score.Critical = score.Critical || result.Critical
	}
	score.Score = clamp(total / n)
	score.ScoredAt = e.now()
	return score
}

// Analyze runs a single named analyzer.
func (e *Engine) Analyze(name string, msg domain.PaymentMessage) (domain.FraudIndicatorResult, bool) {
	a, ok := e.analyzers[name]
	if !ok {
		return domain.FraudIndicatorResult{}, false
	}
	return a.Analyze(msg), true
}

func (e *Engine) applyRules(ctx context.Context, msg domain.PaymentMessage, score *domain.FraudScore) {
	if e.custom == nil {
		return
	}

	results, err := e.custom.EvaluateAll(ctx, msg)
	if err != nil {
		score.Indicators = append(score.Indicators, fmt.Sprintf("custom rules not evaluated: %v", err))
		return
	}

	indicators, critical := rules.Findings(results)
	score.RuleResults = results
	score.Indicators = append(score.Indicators, indicators...)
	score.Critical = score.Critical || critical
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
