package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/validator"
	"github.com/shopspring/decimal"
)

// Analyzer scores one message for one class of fraud indicator.
// Implementations are pure and safe for concurrent use.
type Analyzer interface {
	Name() string
	Analyze(msg domain.PaymentMessage) domain.FraudIndicatorResult
}

const invalidAmountScore = 0.8

var thousand = decimal.NewFromInt(1000)

// AmountAnalyzer flags suspicious amount magnitudes and shapes.
type AmountAnalyzer struct {
	cfg domain.AnalyzerConfig
}

// NewAmountAnalyzer creates an amount analyzer.
func NewAmountAnalyzer(cfg domain.AnalyzerConfig) *AmountAnalyzer {
	return &AmountAnalyzer{cfg: cfg}
}

func (a *AmountAnalyzer) Name() string { return domain.AnalyzerAmount }

func (a *AmountAnalyzer) Analyze(msg domain.PaymentMessage) domain.FraudIndicatorResult {
	result := domain.FraudIndicatorResult{Analyzer: domain.AnalyzerAmount}

	amount, err := validator.ParseAmount(msg.Amount)
	if err != nil {
		result.Score = invalidAmountScore
		result.Indicators = []string{"invalid amount format"}
		result.Err = &domain.ScoringError{Analyzer: domain.AnalyzerAmount, Input: msg.Amount, Err: err}
		return result
	}

	var score float64
	if amount.GreaterThan(a.cfg.HighAmount) {
		result.Indicators = append(result.Indicators, fmt.Sprintf("very high amount: %s", amount.StringFixed(2)))
		score += 0.25
	}
	if amount.GreaterThanOrEqual(a.cfg.RoundAmount) && amount.Mod(thousand).IsZero() {
		result.Indicators = append(result.Indicators, fmt.Sprintf("round amount suggesting structuring: %s", amount.StringFixed(2)))
		score += 0.20
	}
	if amount.GreaterThan(a.cfg.PrecisionAmount) && unusualCents(amount) {
		result.Indicators = append(result.Indicators, "unusual precision for large amount")
		score += 0.10
	}
	if amount.LessThan(a.cfg.LowAmountFloor) {
		result.Indicators = append(result.Indicators, "suspiciously low amount for international transfer")
		score += 0.20
	}
	if hasRepeatedDigits(amount.Abs().Truncate(0).String(), 3) {
		result.Indicators = append(result.Indicators, "amount contains repeated digit patterns")
		score += 0.15
	}

	result.Score = clamp(score)
	return result
}

// PatternAnalyzer flags high-risk BIC markers and suspicious references.
type PatternAnalyzer struct {
	cfg      domain.AnalyzerConfig
	patterns []*regexp.Regexp
}

// NewPatternAnalyzer compiles the configured high-risk patterns case-insensitively.
func NewPatternAnalyzer(cfg domain.AnalyzerConfig) (*PatternAnalyzer, error) {
	a := &PatternAnalyzer{cfg: cfg}
	for _, p := range cfg.HighRiskPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid high-risk pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, re)
	}
	return a, nil
}

func (a *PatternAnalyzer) Name() string { return domain.AnalyzerPattern }

func (a *PatternAnalyzer) Analyze(msg domain.PaymentMessage) domain.FraudIndicatorResult {
	result := domain.FraudIndicatorResult{Analyzer: domain.AnalyzerPattern}

	var score float64
	for _, side := range []struct{ label, bic string }{
		{"sender", msg.SenderBIC},
		{"receiver", msg.ReceiverBIC},
	} {
		if pattern, ok := a.match(side.bic); ok {
			result.Indicators = append(result.Indicators, fmt.Sprintf("%s BIC matches high-risk pattern: %s", side.label, pattern))
			result.Critical = true
			score += 0.4
		}
	}

	if msg.SenderBIC != "" && msg.SenderBIC == msg.ReceiverBIC {
		result.Indicators = append(result.Indicators, "sender and receiver are identical")
		score += 0.5
	}
	if hasMarkerPrefix(msg.Reference, a.cfg.TestMarkers) {
		result.Indicators = append(result.Indicators, "reference contains test patterns")
		score += 0.3
	}
	if hasSequentialRun(msg.Reference, 3) {
		result.Indicators = append(result.Indicators, "reference contains sequential patterns")
		score += 0.2
	}

	result.Score = clamp(score)
	return result
}

// match returns the first configured pattern found in bic.
func (a *PatternAnalyzer) match(bic string) (string, bool) {
	if bic == "" {
		return "", false
	}
	for i, re := range a.patterns {
		if re.MatchString(bic) {
			return a.cfg.HighRiskPatterns[i], true
		}
	}
	return "", false
}

// StructuralAnalyzer re-checks field structure with the validator predicates.
type StructuralAnalyzer struct{}

// NewStructuralAnalyzer creates a structural analyzer.
func NewStructuralAnalyzer() *StructuralAnalyzer {
	return &StructuralAnalyzer{}
}

func (a *StructuralAnalyzer) Name() string { return domain.AnalyzerStructural }

func (a *StructuralAnalyzer) Analyze(msg domain.PaymentMessage) domain.FraudIndicatorResult {
	result := domain.FraudIndicatorResult{Analyzer: domain.AnalyzerStructural}

	var score float64
	if !validator.ValidBIC(msg.SenderBIC) {
		result.Indicators = append(result.Indicators, "invalid sender BIC structure")
		score += 0.3
	}
	if !validator.ValidBIC(msg.ReceiverBIC) {
		result.Indicators = append(result.Indicators, "invalid receiver BIC structure")
		score += 0.3
	}
	if _, err := validator.ParseValueDate(msg.ValueDate); err != nil {
		result.Indicators = append(result.Indicators, "invalid value date")
		score += 0.2
	}
	if !validator.ValidCurrencyFormat(msg.Currency) {
		result.Indicators = append(result.Indicators, "invalid currency code")
		score += 0.2
	}
	if msg.Type == domain.MessageTypeMT103 && strings.TrimSpace(msg.OrderingCustomer) == "" {
		result.Indicators = append(result.Indicators, "MT103 missing ordering customer information")
		score += 0.1
	}

	result.Score = clamp(score)
	return result
}

// ReferenceAnalyzer flags low-entropy and keyboard-pattern references.
type ReferenceAnalyzer struct {
	cfg domain.AnalyzerConfig
}

// NewReferenceAnalyzer creates a reference analyzer.
func NewReferenceAnalyzer(cfg domain.AnalyzerConfig) *ReferenceAnalyzer {
	return &ReferenceAnalyzer{cfg: cfg}
}

func (a *ReferenceAnalyzer) Name() string { return domain.AnalyzerReference }

func (a *ReferenceAnalyzer) Analyze(msg domain.PaymentMessage) domain.FraudIndicatorResult {
	result := domain.FraudIndicatorResult{Analyzer: domain.AnalyzerReference}
	ref := msg.Reference

	var score float64
	if distinctRunes(ref) <= 2 {
		result.Indicators = append(result.Indicators, "reference has very low entropy")
		score += 0.2
	}
	if isAllDigits(ref) && len(ref) > 8 {
		result.Indicators = append(result.Indicators, "reference is all numeric")
		score += 0.1
	}
	if isAllLetters(ref) && len(ref) > 6 {
		result.Indicators = append(result.Indicators, "reference is all alphabetic")
		score += 0.1
	}
	if containsAny(strings.ToUpper(ref), a.cfg.KeyboardPatterns) {
		result.Indicators = append(result.Indicators, "reference contains keyboard patterns")
		score += 0.15
	}

	result.Score = clamp(score)
	return result
}

// TimingAnalyzer flags stale or unparseable value dates.
type TimingAnalyzer struct {
	cfg domain.AnalyzerConfig
	now func() time.Time
}

// NewTimingAnalyzer creates a timing analyzer. A nil clock means time.Now.
func NewTimingAnalyzer(cfg domain.AnalyzerConfig, now func() time.Time) *TimingAnalyzer {
	if now == nil {
		now = time.Now
	}
	return &TimingAnalyzer{cfg: cfg, now: now}
}

func (a *TimingAnalyzer) Name() string { return domain.AnalyzerTiming }

func (a *TimingAnalyzer) Analyze(msg domain.PaymentMessage) domain.FraudIndicatorResult {
	result := domain.FraudIndicatorResult{Analyzer: domain.AnalyzerTiming}

	date, err := validator.ParseValueDate(msg.ValueDate)
	if err != nil {
		result.Indicators = []string{"unparseable value date"}
		result.Score = 0.1
		return result
	}

	if days := validator.DaysBetween(a.now(), date); days < -a.cfg.StaleAfterDays {
		result.Indicators = []string{fmt.Sprintf("value date is %d days in the past", -days)}
		result.Score = 0.2
	}
	return result
}

// NewAnalyzers builds the full analyzer set keyed by name.
func NewAnalyzers(cfg domain.AnalyzerConfig, now func() time.Time) (map[string]Analyzer, error) {
	pattern, err := NewPatternAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	set := []Analyzer{
		NewAmountAnalyzer(cfg),
		pattern,
		NewStructuralAnalyzer(),
		NewReferenceAnalyzer(cfg),
		NewTimingAnalyzer(cfg, now),
	}

	out := make(map[string]Analyzer, len(set))
	for _, a := range set {
		out[a.Name()] = a
	}
	return out, nil
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
