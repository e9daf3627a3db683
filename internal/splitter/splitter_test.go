package splitter

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

var fixedNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func newTestSplitter(t *testing.T, mutate ...func(*domain.SplitterConfig)) *Splitter {
	t.Helper()
	cfg := domain.DefaultConfig().Splitter
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

func admitted(msgID string) domain.RoutingDecision {
	return domain.RoutingDecision{MessageID: msgID, Disposition: domain.DispositionAdmit, Status: domain.StatusClean}
}

func message(amount string) domain.PaymentMessage {
	return domain.PaymentMessage{
		ID:          "msg-001",
		Type:        domain.MessageTypeMT103,
		Reference:   "INV2025REF",
		Amount:      amount,
		Currency:    "USD",
		SenderBIC:   "DEUTDEFF",
		ReceiverBIC: "CHASUS33XXX",
		ValueDate:   "250312",
	}
}

func legAmount(t *testing.T, tx domain.ProcessedTransaction, kind domain.SplitKind) decimal.Decimal {
	t.Helper()
	legs := tx.SplitsOf(kind)
	require.Len(t, legs, 1)
	return legs[0].Amount
}

func TestSplit(t *testing.T) {
	s := newTestSplitter(t)

	tx, err := s.Split(message("15000.00"), admitted("msg-001"))
	require.NoError(t, err)

	assert.Equal(t, "msg-001", tx.MessageID)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, fixedNow, tx.CreatedAt)
	assert.True(t, tx.Balanced)
	assert.Len(t, tx.Splits, 3)

	assert.Equal(t, "1500.00", legAmount(t, tx, domain.SplitFee).StringFixed(2))
	assert.Equal(t, "13500.00", legAmount(t, tx, domain.SplitCredit).StringFixed(2))
	assert.Equal(t, "15000.00", legAmount(t, tx, domain.SplitDebit).StringFixed(2))

	t.Run("Attribution", func(t *testing.T) {
		assert.Empty(t, tx.SplitsOf(domain.SplitFee)[0].Account)
		assert.Equal(t, "CHASUS33XXX", tx.SplitsOf(domain.SplitCredit)[0].Account)
		assert.Equal(t, "DEUTDEFF", tx.SplitsOf(domain.SplitDebit)[0].Account)
	})

	t.Run("UniqueIDs", func(t *testing.T) {
		seen := map[string]bool{tx.ID: true}
		for _, split := range tx.Splits {
			assert.False(t, seen[split.ID], "duplicate id %s", split.ID)
			seen[split.ID] = true
		}
	})
}

func TestSplitRoundsHalfUp(t *testing.T) {
	s := newTestSplitter(t)

	tx, err := s.Split(message("100.05"), admitted("msg-001"))
	require.NoError(t, err)

	// 10.005 and 90.045 both round up
	assert.Equal(t, "10.01", legAmount(t, tx, domain.SplitFee).StringFixed(2))
	assert.Equal(t, "90.05", legAmount(t, tx, domain.SplitCredit).StringFixed(2))

	res := s.ValidateBalance(tx)
	assert.True(t, res.IsBalanced)
	assert.Equal(t, "-0.01", res.Difference.StringFixed(2))
}

func TestSplitAlwaysWithinTolerance(t *testing.T) {
	tolerance := decimal.RequireFromString("0.01")
	maxAmount := domain.DefaultConfig().Validation.MaxAmount

	amounts := []decimal.Decimal{
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("0.99"),
		decimal.RequireFromString("123456789.45"),
		decimal.RequireFromString("500000000.05"),
		maxAmount,
	}
	// Geometric walk from cents to the ceiling with odd cents at every scale.
	for a := decimal.RequireFromString("0.37"); a.LessThan(maxAmount); a = a.Mul(decimal.NewFromInt(3)).Add(decimal.RequireFromString("0.13")).Round(2) {
		amounts = append(amounts, a)
	}

	for step := int64(0); step <= 80; step++ {
		rate := decimal.New(step*125, -4) // 0 to 1 in 0.0125 steps
		s := newTestSplitter(t, func(c *domain.SplitterConfig) { c.FeeRate = rate })

		for _, amount := range amounts {
			tx, err := s.Split(message(amount.StringFixed(2)), admitted("msg-001"))
			require.NoError(t, err, "amount %s rate %s", amount, rate)

			sum := legAmount(t, tx, domain.SplitFee).Add(legAmount(t, tx, domain.SplitCredit))
			diff := tx.OriginalAmount.Sub(sum).Abs()
			if diff.GreaterThan(tolerance) {
				t.Fatalf("expected difference within %s for amount %s at rate %s, got %s", tolerance, amount, rate, diff)
			}
			if !tx.Balanced {
				t.Fatalf("expected balanced transaction for amount %s at rate %s", amount, rate)
			}
		}
	}
}

func TestSplitRejectsNonAdmitted(t *testing.T) {
	s := newTestSplitter(t)

	for _, status := range []domain.FinalStatus{domain.StatusHeld, domain.StatusRejected, domain.StatusPending} {
		t.Run(string(status), func(t *testing.T) {
			_, err := s.Split(message("100.00"), domain.RoutingDecision{MessageID: "msg-001", Status: status})
			assert.ErrorIs(t, err, domain.ErrNotAdmitted)
		})
	}
}

func TestSplitInvalidAmount(t *testing.T) {
	s := newTestSplitter(t)

	for _, amount := range []string{"abc", "", "0.00", "-5.00"} {
		t.Run(fmt.Sprintf("Amount%q", amount), func(t *testing.T) {
			_, err := s.Split(message(amount), admitted("msg-001"))
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		})
	}
}

func TestSplitFeeRateBounds(t *testing.T) {
	for _, rate := range []string{"-0.01", "1.01"} {
		cfg := domain.DefaultConfig().Splitter
		cfg.FeeRate = decimal.RequireFromString(rate)
		_, err := New(cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidFeeRate, rate)
	}

	t.Run("FullFee", func(t *testing.T) {
		s := newTestSplitter(t, func(c *domain.SplitterConfig) { c.FeeRate = decimal.NewFromInt(1) })
		tx, err := s.Split(message("250.00"), admitted("msg-001"))
		require.NoError(t, err)
		assert.Equal(t, "250.00", legAmount(t, tx, domain.SplitFee).StringFixed(2))
		assert.True(t, legAmount(t, tx, domain.SplitCredit).IsZero())
		assert.True(t, tx.Balanced)
	})
}

func TestFixBalance(t *testing.T) {
	s := newTestSplitter(t)

	t.Run("AlreadyBalanced", func(t *testing.T) {
		tx, err := s.Split(message("15000.00"), admitted("msg-001"))
		require.NoError(t, err)

		fixed, res, err := s.FixBalance(tx)
		require.NoError(t, err)
		assert.True(t, res.IsBalanced)
		assert.Equal(t, tx, fixed)
	})

	t.Run("BalancedReturnedUnchanged", func(t *testing.T) {
		tx, err := s.Split(message("15000.00"), admitted("msg-001"))
		require.NoError(t, err)
		tx.Balanced = false

		out, res, err := s.FixBalance(tx)
		require.NoError(t, err)
		assert.True(t, res.IsBalanced)
		assert.False(t, out.Balanced)
		assert.Equal(t, tx, out)
	})

	t.Run("AdjustsFee", func(t *testing.T) {
		tx, err := s.Split(message("15000.00"), admitted("msg-001"))
		require.NoError(t, err)
		tx.Splits[1].Amount = decimal.RequireFromString("13499.00")
		tx.Balanced = false

		fixed, res, err := s.FixBalance(tx)
		require.NoError(t, err)
		assert.True(t, res.IsBalanced)
		assert.True(t, fixed.Balanced)
		assert.Equal(t, "1501.00", legAmount(t, fixed, domain.SplitFee).StringFixed(2))

		// input untouched
		assert.Equal(t, "1500.00", legAmount(t, tx, domain.SplitFee).StringFixed(2))

		again, _, err := s.FixBalance(fixed)
		require.NoError(t, err)
		assert.Equal(t, fixed, again)
	})

	t.Run("Unfixable", func(t *testing.T) {
		tx, err := s.Split(message("15000.00"), admitted("msg-001"))
		require.NoError(t, err)
		tx.Splits[1].Amount = decimal.RequireFromString("15100.00")

		out, res, err := s.FixBalance(tx)

		var balanceErr *domain.BalanceError
		require.ErrorAs(t, err, &balanceErr)
		assert.Equal(t, tx.ID, balanceErr.TransactionID)
		assert.Equal(t, "-1600.00", balanceErr.Difference.StringFixed(2))
		assert.False(t, res.IsBalanced)
		assert.Equal(t, tx, out)
	})

	t.Run("NoFeeLeg", func(t *testing.T) {
		tx, err := s.Split(message("100.00"), admitted("msg-001"))
		require.NoError(t, err)
		tx.Splits = tx.Splits[1:]

		_, _, err = s.FixBalance(tx)
		var balanceErr *domain.BalanceError
		assert.ErrorAs(t, err, &balanceErr)
	})
}

func TestDebitPolicy(t *testing.T) {
	s := newTestSplitter(t, func(c *domain.SplitterConfig) { c.Policy = domain.PolicyDebit })

	tx, err := s.Split(message("500.00"), admitted("msg-001"))
	require.NoError(t, err)
	assert.True(t, s.ValidateBalance(tx).IsBalanced)

	tx.Splits[2].Amount = decimal.RequireFromString("499.00")
	res := s.ValidateBalance(tx)
	assert.False(t, res.IsBalanced)
	assert.Equal(t, "1.00", res.Difference.StringFixed(2))

	t.Run("UnknownPolicy", func(t *testing.T) {
		cfg := domain.DefaultConfig().Splitter
		cfg.Policy = "both"
		_, err := New(cfg)
		assert.Error(t, err)
	})
}

func TestValidateBatch(t *testing.T) {
	s := newTestSplitter(t)

	var txs []domain.ProcessedTransaction
	for _, amount := range []string{"100.00", "2500.50", "75.25"} {
		tx, err := s.Split(message(amount), admitted("msg-001"))
		require.NoError(t, err)
		txs = append(txs, tx)
	}
	txs[1].Splits[0].Amount = txs[1].Splits[0].Amount.Add(decimal.RequireFromString("0.50"))

	summary := s.ValidateBatch(txs)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Balanced)
	assert.Equal(t, 1, summary.Unbalanced)
	assert.Equal(t, "0.50", summary.TotalDifference.StringFixed(2))
	assert.Equal(t, []string{txs[1].ID}, summary.UnbalancedIDs)

	t.Run("Empty", func(t *testing.T) {
		summary := s.ValidateBatch(nil)
		assert.Zero(t, summary.Total)
		assert.True(t, summary.TotalDifference.IsZero())
	})
}
