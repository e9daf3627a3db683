package batch

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
)

const defaultAnomalyFactor = 10

// AnalyzePatterns describes the amount population of msgs. Amounts that do
// not parse are left out. A message is anomalous when its amount exceeds
// factor times the batch average.
func AnalyzePatterns(msgs []domain.PaymentMessage, factor int) domain.PatternAnalysis {
	if factor <= 0 {
		factor = defaultAnomalyFactor
	}

	analysis := domain.PatternAnalysis{Currencies: make(map[string]domain.CurrencyStats)}

	type sample struct {
		id     string
		amount decimal.Decimal
	}
	var samples []sample
	for _, m := range msgs {
		amount, err := m.AmountDecimal()
		if err != nil {
			continue
		}
		samples = append(samples, sample{id: m.ID, amount: amount})
		analysis.Total = analysis.Total.Add(amount)

		stats := analysis.Currencies[m.Currency]
		stats.Count++
		stats.Amount = stats.Amount.Add(amount)
		analysis.Currencies[m.Currency] = stats
	}

	analysis.Count = len(samples)
	if analysis.Count == 0 {
		return analysis
	}

	analysis.Average = analysis.Total.Div(decimal.NewFromInt(int64(analysis.Count))).Round(2)

	sorted := make([]decimal.Decimal, len(samples))
	for i, s := range samples {
		sorted[i] = s.amount
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	analysis.Min = sorted[0]
	analysis.Max = sorted[len(sorted)-1]
	analysis.Median = sorted[len(sorted)/2]

	if analysis.Average.IsZero() {
		return analysis
	}
	limit := analysis.Average.Mul(decimal.NewFromInt(int64(factor)))
	for _, s := range samples {
		if s.amount.GreaterThan(limit) {
			analysis.Anomalies = append(analysis.Anomalies, domain.AmountAnomaly{
				MessageID: s.id,
				Amount:    s.amount,
				Ratio:     s.amount.Div(analysis.Average).Round(2),
			})
		}
	}
	return analysis
}
