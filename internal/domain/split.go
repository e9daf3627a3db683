package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitKind is the ledger leg a split represents.
type SplitKind string

const (
	SplitFee    SplitKind = "FEE"
	SplitCredit SplitKind = "CREDIT"
	SplitDebit  SplitKind = "DEBIT"
)

// TransactionSplit is one directional monetary movement derived from a message.
type TransactionSplit struct {
	ID          string          `json:"id"`
	Kind        SplitKind       `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Account     string          `json:"account,omitempty"`
	Description string          `json:"description"`
}

// ProcessedTransaction is the terminal artifact of the core for an admitted message.
type ProcessedTransaction struct {
	ID             string             `json:"id"`
	MessageID      string             `json:"messageId"`
	OriginalAmount decimal.Decimal    `json:"originalAmount"`
	Currency       string             `json:"currency"`
	Splits         []TransactionSplit `json:"splits"`
	Balanced       bool               `json:"balanced"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// SplitsOf returns the splits of the given kind in order.
func (t ProcessedTransaction) SplitsOf(kind SplitKind) []TransactionSplit {
	var out []TransactionSplit
	for _, s := range t.Splits {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy so callers can adjust splits without aliasing.
func (t ProcessedTransaction) Clone() ProcessedTransaction {
	c := t
	c.Splits = append([]TransactionSplit(nil), t.Splits...)
	return c
}

// BalanceResult reports whether the split legs reconcile to the original amount.
type BalanceResult struct {
	IsBalanced bool            `json:"isBalanced"`
	Difference decimal.Decimal `json:"difference"` // original - legs
	Tolerance  decimal.Decimal `json:"tolerance"`
}

// BalanceSummary aggregates balance checks across many transactions.
type BalanceSummary struct {
	Total           int             `json:"total"`
	Balanced        int             `json:"balanced"`
	Unbalanced      int             `json:"unbalanced"`
	TotalDifference decimal.Decimal `json:"totalDifference"`
	UnbalancedIDs   []string        `json:"unbalancedIds,omitempty"`
}
