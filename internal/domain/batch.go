package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MessageResult is the tagged per-message outcome of a batch run.
// Err is set when processing of this message failed; other fields hold
// whatever was completed before the failure.
type MessageResult struct {
	Index       int                   `json:"index"`
	MessageID   string                `json:"messageId"`
	Corrected   bool                  `json:"corrected,omitempty"`
	Validation  ValidationResult      `json:"validation"`
	Score       *FraudScore           `json:"score,omitempty"`
	BatchScore  *FraudScore           `json:"batchScore,omitempty"`
	Decision    *RoutingDecision      `json:"decision,omitempty"`
	Transaction *ProcessedTransaction `json:"transaction,omitempty"`
	Err         error                 `json:"-"`
	Error       string                `json:"error,omitempty"`
}

// Failed reports whether the message ended in an error.
func (r MessageResult) Failed() bool {
	return r.Err != nil
}

// BatchSummary counts outcomes across a batch.
type BatchSummary struct {
	Total        int                 `json:"total"`
	Failed       int                 `json:"failed"`
	Dispositions map[Disposition]int `json:"dispositions"`
	Statuses     map[FinalStatus]int `json:"statuses"`
	Processed    int                 `json:"processed"`
}

// CurrencyStats is the per-currency part of a pattern analysis.
type CurrencyStats struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// AmountAnomaly flags a message whose amount dwarfs the batch average.
type AmountAnomaly struct {
	MessageID string          `json:"messageId"`
	Amount    decimal.Decimal `json:"amount"`
	Ratio     decimal.Decimal `json:"ratio"`
}

// PatternAnalysis describes the amount population of a batch.
type PatternAnalysis struct {
	Count      int                      `json:"count"`
	Total      decimal.Decimal          `json:"total"`
	Average    decimal.Decimal          `json:"average"`
	Min        decimal.Decimal          `json:"min"`
	Max        decimal.Decimal          `json:"max"`
	Median     decimal.Decimal          `json:"median"`
	Currencies map[string]CurrencyStats `json:"currencies"`
	Anomalies  []AmountAnomaly          `json:"anomalies,omitempty"`
}

// BatchReport is the complete result of one orchestrated batch run.
type BatchReport struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenantId"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	Canceled   bool              `json:"canceled,omitempty"`
	Results    []MessageResult   `json:"results"`
	Summary    BatchSummary      `json:"summary"`
	Benford    BenfordReport     `json:"benford"`
	Validation ValidationSummary `json:"validation"`
	Balance    BalanceSummary    `json:"balance"`
	Patterns   PatternAnalysis   `json:"patterns"`
}

// Partition splits results by tag, preserving input order within each side.
func (b *BatchReport) Partition() (succeeded, failed []MessageResult) {
	for _, r := range b.Results {
		if r.Failed() {
			failed = append(failed, r)
		} else {
			succeeded = append(succeeded, r)
		}
	}
	return succeeded, failed
}
