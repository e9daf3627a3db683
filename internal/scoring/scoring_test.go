package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	cfg := domain.DefaultConfig()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	e, err := New(cfg.Scoring, cfg.Analyzers, opts...)
	require.NoError(t, err)
	return e
}

func scenarioMessage() domain.PaymentMessage {
	return domain.PaymentMessage{
		ID:          "msg-scenario",
		Type:        domain.MessageTypeMT202,
		Reference:   "PAYREF2025",
		Amount:      "15000.00",
		Currency:    "USD",
		SenderBIC:   "TESTUS33",
		ReceiverBIC: "CHASUS33",
		ValueDate:   "250312",
	}
}

func contributionOf(score domain.FraudScore, analyzer string) (domain.Contribution, bool) {
	for _, c := range score.Contributions {
		if c.Analyzer == analyzer {
			return c, true
		}
	}
	return domain.Contribution{}, false
}

func TestScoreWeighted(t *testing.T) {
	e := newTestEngine(t)

	score := e.Score(context.Background(), scenarioMessage())

	assert.Equal(t, domain.ScoringWeighted, score.Mode)
	assert.Equal(t, "msg-scenario", score.MessageID)
	assert.Equal(t, domain.DefaultWeights(), score.Weights)
	assert.Len(t, score.Contributions, 4)

	amount, ok := contributionOf(score, domain.AnalyzerAmount)
	require.True(t, ok)
	assert.InDelta(t, 0.35, amount.Score, 1e-9) // structuring + "000" run
	assert.InDelta(t, 0.14, amount.Contribution, 1e-9)

	pattern, ok := contributionOf(score, domain.AnalyzerPattern)
	require.True(t, ok)
	assert.InDelta(t, 0.4, pattern.Score, 1e-9)
	assert.InDelta(t, 0.12, pattern.Contribution, 1e-9)

	_, ok = contributionOf(score, domain.AnalyzerReference)
	assert.False(t, ok, "reference analyzer is not part of the routing weights")

	assert.InDelta(t, 0.26, score.Score, 1e-9)
	assert.True(t, score.Critical, "test-marker BIC must mark the score critical")
	assert.Equal(t, fixedNow, score.ScoredAt)
}

func TestScoreDeterministicAcrossEngines(t *testing.T) {
	msg := scenarioMessage()
	want := newTestEngine(t).Score(context.Background(), msg).Score

	for i := 0; i < 200; i++ {
		got := newTestEngine(t).Score(context.Background(), msg).Score
		if got != want {
			t.Fatalf("expected identical score %.20f on engine %d, got %.20f", want, i, got)
		}
	}
}

func TestScoreUnweighted(t *testing.T) {
	e := newTestEngine(t)

	score := e.ScoreUnweighted(scenarioMessage())

	assert.Equal(t, domain.ScoringUnweighted, score.Mode)
	require.Len(t, score.Contributions, 4)
	for _, c := range score.Contributions {
		assert.InDelta(t, 0.25, c.Weight, 1e-9)
	}
	assert.NotContains(t, score.Weights, domain.AnalyzerTiming)

	// amount 0.35, pattern 0.4, structural 0, reference 0
	assert.InDelta(t, 0.1875, score.Score, 1e-9)
}

func TestScoreModesDiffer(t *testing.T) {
	e := newTestEngine(t)
	msg := scenarioMessage()

	weighted := e.Score(context.Background(), msg)
	unweighted := e.ScoreUnweighted(msg)

	assert.NotEqual(t, weighted.Score, unweighted.Score)
	assert.NotEqual(t, weighted.Weights, unweighted.Weights)
}

func TestScoreClean(t *testing.T) {
	e := newTestEngine(t)
	msg := scenarioMessage()
	msg.SenderBIC = "DEUTDEFF"
	msg.Amount = "1523.47"

	score := e.Score(context.Background(), msg)

	assert.Zero(t, score.Score)
	assert.False(t, score.Critical)
	assert.Empty(t, score.Indicators)
}

func TestScoreBounded(t *testing.T) {
	e := newTestEngine(t)
	msg := domain.PaymentMessage{
		ID:          "msg-worst",
		Type:        domain.MessageTypeMT103,
		Reference:   "TEST",
		Amount:      "not-a-number",
		Currency:    "??",
		SenderBIC:   "TEST999",
		ReceiverBIC: "TEST999",
		ValueDate:   "garbage",
	}

	score := e.Score(context.Background(), msg)
	assert.GreaterOrEqual(t, score.Score, 0.0)
	assert.LessOrEqual(t, score.Score, 1.0)
	assert.Contains(t, score.Indicators, "invalid amount format")
}

func TestScoreCustomWeights(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Scoring.Weights = map[string]float64{domain.AnalyzerPattern: 2}

	e, err := New(cfg.Scoring, cfg.Analyzers, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	score := e.Score(context.Background(), scenarioMessage())
	assert.InDelta(t, 0.4, score.Score, 1e-9)
	assert.Equal(t, map[string]float64{domain.AnalyzerPattern: 2}, score.Weights)
}

func TestNewRejectsBadWeights(t *testing.T) {
	cfg := domain.DefaultConfig()

	t.Run("UnknownAnalyzer", func(t *testing.T) {
		s := cfg.Scoring
		s.Weights = map[string]float64{"velocity": 1}
		_, err := New(s, cfg.Analyzers)
		assert.Error(t, err)
	})

	t.Run("AllZero", func(t *testing.T) {
		s := cfg.Scoring
		s.Weights = map[string]float64{domain.AnalyzerAmount: 0}
		_, err := New(s, cfg.Analyzers)
		assert.Error(t, err)
	})

	t.Run("Negative", func(t *testing.T) {
		s := cfg.Scoring
		s.Weights = map[string]float64{domain.AnalyzerAmount: -1, domain.AnalyzerPattern: 2}
		_, err := New(s, cfg.Analyzers)
		assert.Error(t, err)
	})
}

func TestScoreWithCustomRules(t *testing.T) {
	custom, err := rules.NewEngine(4)
	require.NoError(t, err)
	defer custom.Close()

	require.NoError(t, custom.LoadRule(&domain.RuleConfig{
		ID:         "us-corridor",
		Expression: "receiver_country == 'US' && amount >= 10000.0",
		Weight:     1,
		Enabled:    true,
	}))

	e := newTestEngine(t, WithRules(custom))
	msg := scenarioMessage()
	msg.SenderBIC = "DEUTDEFF"

	withRules := e.Score(context.Background(), msg)
	without := newTestEngine(t).Score(context.Background(), msg)

	require.Len(t, withRules.RuleResults, 1)
	assert.Equal(t, domain.RuleOutcomeFail, withRules.RuleResults[0].SubRuleRef)
	assert.True(t, withRules.Critical)
	assert.False(t, without.Critical)
	assert.Equal(t, without.Score, withRules.Score, "custom rules never change the numeric score")
}
