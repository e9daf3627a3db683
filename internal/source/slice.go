// Package source supplies finite, restartable sequences of payment messages.
package source

import (
	"context"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Slice serves messages held in memory.
type Slice struct {
	msgs []domain.PaymentMessage
}

// NewSlice copies msgs into a new source.
func NewSlice(msgs []domain.PaymentMessage) *Slice {
	return &Slice{msgs: append([]domain.PaymentMessage(nil), msgs...)}
}

// Messages returns a fresh copy on every call so callers cannot disturb later runs.
func (s *Slice) Messages(ctx context.Context) ([]domain.PaymentMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.PaymentMessage(nil), s.msgs...), nil
}
