// Package splitter decomposes admitted messages into balanced ledger legs.
package splitter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
)

const places = 2

var one = decimal.NewFromInt(1)

// Splitter builds fee, credit and debit splits and checks that they reconcile.
// It holds no mutable state and is safe for concurrent use.
type Splitter struct {
	feeRate   decimal.Decimal
	tolerance decimal.Decimal
	policy    domain.BalancePolicy
	now       func() time.Time
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Splitter) {
		s.now = now
	}
}

// New creates a splitter. The fee rate must lie within [0, 1].
func New(cfg domain.SplitterConfig, opts ...Option) (*Splitter, error) {
	if cfg.FeeRate.IsNegative() || cfg.FeeRate.GreaterThan(one) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFeeRate, cfg.FeeRate)
	}
	if cfg.Tolerance.IsNegative() {
		return nil, fmt.Errorf("splitter: negative tolerance %s", cfg.Tolerance)
	}

	policy := cfg.Policy
	switch policy {
	case domain.PolicyFeeCredit, domain.PolicyDebit:
	case "":
		policy = domain.PolicyFeeCredit
	default:
		return nil, fmt.Errorf("splitter: unknown balance policy %q", policy)
	}

	s := &Splitter{
		feeRate:   cfg.FeeRate,
		tolerance: cfg.Tolerance,
		policy:    policy,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Split turns an admitted message into a transaction with three legs:
// FEE = round(A*r), CREDIT = round(A*(1-r)) to the receiver, DEBIT = A from
// the sender. Rounding is half-up to two places.
func (s *Splitter) Split(msg domain.PaymentMessage, decision domain.RoutingDecision) (domain.ProcessedTransaction, error) {
	if !decision.Admitted() {
		return domain.ProcessedTransaction{}, fmt.Errorf("%w: %s is %s", domain.ErrNotAdmitted, msg.ID, decision.Status)
	}

	amount, err := msg.AmountDecimal()
	if err != nil {
		return domain.ProcessedTransaction{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidAmount, msg.Amount, err)
	}
	if !amount.IsPositive() {
		return domain.ProcessedTransaction{}, fmt.Errorf("%w: %s must be positive", domain.ErrInvalidAmount, amount)
	}

	// Rounding on a positive amount is half away from zero, i.e. half-up.
	fee := amount.Mul(s.feeRate).Round(places)
	credit := amount.Mul(one.Sub(s.feeRate)).Round(places)

	tx := domain.ProcessedTransaction{
		ID:             uuid.New().String(),
		MessageID:      msg.ID,
		OriginalAmount: amount,
		Currency:       msg.Currency,
		Splits: []domain.TransactionSplit{
			{
				ID:          uuid.New().String(),
				Kind:        domain.SplitFee,
				Amount:      fee,
				Currency:    msg.Currency,
				Description: fmt.Sprintf("processing fee %s%%", s.feeRate.Shift(2).String()),
			},
			{
				ID:          uuid.New().String(),
				Kind:        domain.SplitCredit,
				Amount:      credit,
				Currency:    msg.Currency,
				Account:     msg.ReceiverBIC,
				Description: "credit to receiver",
			},
			{
				ID:          uuid.New().String(),
				Kind:        domain.SplitDebit,
				Amount:      amount,
				Currency:    msg.Currency,
				Account:     msg.SenderBIC,
				Description: "debit from sender",
			},
		},
		CreatedAt: s.now().UTC(),
	}
	tx.Balanced = s.ValidateBalance(tx).IsBalanced
	return tx, nil
}

// ValidateBalance compares the policy legs against the original amount.
// Difference is signed: original minus the sum of legs.
func (s *Splitter) ValidateBalance(tx domain.ProcessedTransaction) domain.BalanceResult {
	sum := decimal.Zero
	for _, split := range tx.Splits {
		if s.counts(split.Kind) {
			sum = sum.Add(split.Amount)
		}
	}

	diff := tx.OriginalAmount.Sub(sum)
	return domain.BalanceResult{
		IsBalanced: diff.Abs().LessThanOrEqual(s.tolerance),
		Difference: diff,
		Tolerance:  s.tolerance,
	}
}

// FixBalance absorbs the difference into the FEE split and re-validates.
// A balanced transaction is returned exactly as passed, Balanced flag included. When the adjustment cannot
// balance the legs, the original is returned untouched with a *BalanceError.
func (s *Splitter) FixBalance(tx domain.ProcessedTransaction) (domain.ProcessedTransaction, domain.BalanceResult, error) {
	before := s.ValidateBalance(tx)
	if before.IsBalanced {
		return tx, before, nil
	}

	fixed := tx.Clone()
	adjusted := false
	for i := range fixed.Splits {
		if fixed.Splits[i].Kind != domain.SplitFee {
			continue
		}
		amount := fixed.Splits[i].Amount.Add(before.Difference)
		if amount.IsNegative() {
			break
		}
		fixed.Splits[i].Amount = amount
		adjusted = true
		break
	}

	if adjusted {
		after := s.ValidateBalance(fixed)
		if after.IsBalanced {
			fixed.Balanced = true
			return fixed, after, nil
		}
	}

	return tx, before, &domain.BalanceError{TransactionID: tx.ID, Difference: before.Difference}
}

// ValidateBatch checks every transaction and aggregates the absolute differences
// of the unbalanced ones.
func (s *Splitter) ValidateBatch(txs []domain.ProcessedTransaction) domain.BalanceSummary {
	summary := domain.BalanceSummary{
		Total:           len(txs),
		TotalDifference: decimal.Zero,
	}
	for _, tx := range txs {
		res := s.ValidateBalance(tx)
		if res.IsBalanced {
			summary.Balanced++
			continue
		}
		summary.Unbalanced++
		summary.TotalDifference = summary.TotalDifference.Add(res.Difference.Abs())
		summary.UnbalancedIDs = append(summary.UnbalancedIDs, tx.ID)
	}
	return summary
}

func (s *Splitter) counts(kind domain.SplitKind) bool {
	if s.policy == domain.PolicyDebit {
		return kind == domain.SplitDebit
	}
	return kind == domain.SplitFee || kind == domain.SplitCredit
}
