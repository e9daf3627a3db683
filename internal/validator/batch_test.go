package validator

import (
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestValidateBatch(t *testing.T) {
	v := newTestValidator(t)

	bad := cleanMessage()
	bad.ID = "msg-002"
	bad.Currency = "usd"
	bad.SenderBIC = "BAD"

	unknown := cleanMessage()
	unknown.ID = "msg-003"
	unknown.Currency = "XYZ"

	results, summary := v.ValidateBatch([]domain.PaymentMessage{cleanMessage(), bad, unknown, cleanMessage()})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[1].MessageID != "msg-002" {
		t.Errorf("expected results in input order, got %s at index 1", results[1].MessageID)
	}
	if summary.TotalMessages != 4 {
		t.Errorf("expected 4 total, got %d", summary.TotalMessages)
	}
	if summary.ValidMessages != 3 || summary.InvalidMessages != 1 {
		t.Errorf("expected 3 valid and 1 invalid, got %d and %d", summary.ValidMessages, summary.InvalidMessages)
	}
	if summary.TotalErrors != 2 {
		t.Errorf("expected 2 errors, got %d", summary.TotalErrors)
	}
	if summary.TotalWarnings != 1 {
		t.Errorf("expected 1 warning, got %d", summary.TotalWarnings)
	}
	if summary.ValidationRate != 75 {
		t.Errorf("expected validation rate 75, got %f", summary.ValidationRate)
	}
}

func TestValidateBatchEmpty(t *testing.T) {
	v := newTestValidator(t)

	results, summary := v.ValidateBatch(nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if summary.ValidationRate != 0 {
		t.Errorf("expected zero validation rate, got %f", summary.ValidationRate)
	}
}

func TestCommonIssues(t *testing.T) {
	results := []domain.ValidationResult{
		{
			Errors: []domain.ValidationError{
				{Code: domain.CodeMalformedBIC, Field: "sender_bic"},
				{Code: domain.CodeInvalidCurrency, Field: "currency"},
			},
			Warnings: []string{"Uncommon or invalid currency code: XYZ"},
		},
		{
			Errors:   []domain.ValidationError{{Code: domain.CodeMalformedBIC, Field: "sender_bic"}},
			Warnings: []string{"Uncommon or invalid currency code: ABC", "Value date falls on weekend"},
		},
	}

	issues := CommonIssues(results)

	if len(issues.Errors) != 2 {
		t.Fatalf("expected 2 error groups, got %d", len(issues.Errors))
	}
	if issues.Errors[0].Issue != "MalformedBIC (sender_bic)" || issues.Errors[0].Count != 2 {
		t.Errorf("expected MalformedBIC x2 first, got %+v", issues.Errors[0])
	}

	if len(issues.Warnings) != 2 {
		t.Fatalf("expected 2 warning groups, got %d", len(issues.Warnings))
	}
	if issues.Warnings[0].Issue != "Uncommon or invalid currency code" || issues.Warnings[0].Count != 2 {
		t.Errorf("expected currency warning x2 first, got %+v", issues.Warnings[0])
	}
}
