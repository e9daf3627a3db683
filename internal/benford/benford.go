// Package benford tests the leading-digit distribution of a batch of amounts.
package benford

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/opensource-finance/harrier/internal/domain"
)

// degreesOfFreedom for nine digit categories.
const degreesOfFreedom = 8

// Expected holds the Benford probabilities log10(1 + 1/d) for d = 1..9.
var Expected = func() [9]float64 {
	var e [9]float64
	for d := 1; d <= 9; d++ {
		e[d-1] = math.Log10(1 + 1/float64(d))
	}
	return e
}()

// Analyzer runs the first-digit test over a batch snapshot.
type Analyzer struct {
	cfg domain.BenfordConfig
}

// New creates a Benford analyzer.
func New(cfg domain.BenfordConfig) *Analyzer {
	if cfg.MinSample <= 0 {
		cfg.MinSample = 10
	}
	if cfg.SignificanceLevel <= 0 {
		cfg.SignificanceLevel = 0.05
	}
	return &Analyzer{cfg: cfg}
}

// Analyze runs the test over the amounts of msgs.
func (a *Analyzer) Analyze(msgs []domain.PaymentMessage) domain.BenfordReport {
	amounts := make([]string, len(msgs))
	for i, m := range msgs {
		amounts[i] = m.Amount
	}
	return a.AnalyzeAmounts(amounts)
}

// AnalyzeAmounts runs the test over raw amount strings. Amounts without a
// non-zero digit are skipped. A sample smaller than MinSample yields an
// advisory report with InsufficientSample set.
func (a *Analyzer) AnalyzeAmounts(amounts []string) domain.BenfordReport {
	report := domain.BenfordReport{Expected: Expected}

	var counts [9]int
	for _, amount := range amounts {
		if d := domain.LeadingDigit(amount); d > 0 {
			counts[d-1]++
			report.SampleSize++
		}
	}

	if report.SampleSize < a.cfg.MinSample {
		report.InsufficientSample = true
		report.PValue = 1
		return report
	}

	n := float64(report.SampleSize)
	for i := range counts {
		report.Observed[i] = float64(counts[i]) / n

		expectedCount := Expected[i] * n
		diff := float64(counts[i]) - expectedCount
		report.ChiSquare += diff * diff / expectedCount

		report.Deviation += math.Abs(report.Observed[i] - Expected[i])
	}

	report.PValue = ChiSquareSurvival(report.ChiSquare, degreesOfFreedom)
	report.FraudProbability = math.Min(1, 2*report.Deviation)
	report.Significant = report.PValue < a.cfg.SignificanceLevel
	return report
}

// ChiSquareSurvival returns P(X > x) for a chi-square variable with k degrees
// of freedom.
func ChiSquareSurvival(x float64, k int) float64 {
	if x <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: float64(k)}.Survival(x)
}
