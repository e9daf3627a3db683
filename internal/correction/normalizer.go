// Package correction repairs common formatting defects in payment messages.
package correction

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Normalizer is a deterministic corrector for formatting defects only.
// It never invents missing values.
type Normalizer struct {
	maxReferenceLength int
}

// NewNormalizer creates a normalizer. References longer than maxReferenceLength
// are truncated; zero disables truncation.
func NewNormalizer(maxReferenceLength int) *Normalizer {
	return &Normalizer{maxReferenceLength: maxReferenceLength}
}

// Correct implements domain.Corrector.
func (n *Normalizer) Correct(ctx context.Context, msg domain.PaymentMessage, _ []domain.ValidationError) (domain.PaymentMessage, error) {
	if err := ctx.Err(); err != nil {
		return msg, err
	}
	out, _ := n.Normalize(msg)
	return out, nil
}

// Normalize returns a corrected copy of msg and a description of each change.
func (n *Normalizer) Normalize(msg domain.PaymentMessage) (domain.PaymentMessage, []string) {
	var changes []string
	note := func(format string, args ...any) {
		changes = append(changes, fmt.Sprintf(format, args...))
	}

	if bic := normalizeBIC(msg.SenderBIC); bic != msg.SenderBIC {
		msg.SenderBIC = bic
		note("normalized sender BIC")
	}
	if bic := normalizeBIC(msg.ReceiverBIC); bic != msg.ReceiverBIC {
		msg.ReceiverBIC = bic
		note("normalized receiver BIC")
	}

	if amount, ok := normalizeAmount(msg.Amount); ok && amount != msg.Amount {
		msg.Amount = amount
		note("formatted amount to 2 decimal places")
	}

	if ccy := strings.ToUpper(strings.ReplaceAll(msg.Currency, " ", "")); ccy != msg.Currency {
		msg.Currency = ccy
		note("normalized currency code")
	}

	ref := strings.ToUpper(strings.TrimSpace(msg.Reference))
	if n.maxReferenceLength > 0 && len(ref) > n.maxReferenceLength {
		ref = ref[:n.maxReferenceLength]
		note("truncated reference to %d characters", n.maxReferenceLength)
	}
	if ref != msg.Reference {
		msg.Reference = ref
		note("normalized reference")
	}

	if date := normalizeValueDate(msg.ValueDate); date != msg.ValueDate {
		msg.ValueDate = date
		note("reformatted value date to YYMMDD")
	}

	return msg, changes
}

func normalizeBIC(bic string) string {
	return strings.ToUpper(strings.Join(strings.Fields(bic), ""))
}

// normalizeAmount strips thousands separators and blanks and renders two places.
// Unparseable amounts are left for the validator to report.
func normalizeAmount(amount string) (string, bool) {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(amount)
	if cleaned == "" {
		return amount, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return amount, false
	}
	return d.StringFixed(2), true
}

// normalizeValueDate keeps digits only and shortens YYYYMMDD to YYMMDD.
func normalizeValueDate(date string) string {
	var b strings.Builder
	for _, r := range date {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch len(digits) {
	case 8:
		return digits[2:]
	case 6:
		return digits
	default:
		return date
	}
}
