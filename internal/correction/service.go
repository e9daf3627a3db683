package correction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Validator re-checks a corrected candidate.
type Validator interface {
	Validate(msg domain.PaymentMessage) domain.ValidationResult
}

// Service runs a corrector and accepts its candidate only if it validates.
type Service struct {
	corrector domain.Corrector
	validator Validator
}

// NewService creates a correction service.
func NewService(corrector domain.Corrector, validator Validator) *Service {
	return &Service{corrector: corrector, validator: validator}
}

// Correct asks the corrector for a candidate and re-validates it.
// On success the candidate and its clean result are returned. Otherwise the
// original message and result come back with an error wrapping
// domain.ErrCorrectionRefused or the corrector's failure.
func (s *Service) Correct(ctx context.Context, msg domain.PaymentMessage, result domain.ValidationResult) (domain.PaymentMessage, domain.ValidationResult, error) {
	if result.IsValid {
		return msg, result, nil
	}

	candidate, err := s.corrector.Correct(ctx, msg, result.Errors)
	if err != nil {
		return msg, result, fmt.Errorf("correct %s: %w", msg.ID, err)
	}

	// The corrector may not rename the message.
	candidate.ID = msg.ID

	revalidated := s.validator.Validate(candidate)
	if !revalidated.IsValid {
		slog.Debug("correction refused",
			"message_id", msg.ID,
			"errors_before", len(result.Errors),
			"errors_after", len(revalidated.Errors),
		)
		return msg, result, fmt.Errorf("%w: %s still has %d errors", domain.ErrCorrectionRefused, msg.ID, len(revalidated.Errors))
	}

	slog.Debug("message corrected", "message_id", msg.ID, "errors_fixed", len(result.Errors))
	return candidate, revalidated, nil
}
