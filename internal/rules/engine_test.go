package rules

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func testMessage() domain.PaymentMessage {
	return domain.PaymentMessage{
		ID:          "msg-001",
		Type:        domain.MessageTypeMT103,
		Reference:   "INV2025REF",
		Amount:      "500.00",
		Currency:    "USD",
		SenderBIC:   "DEUTDEFF",
		ReceiverBIC: "CHASUS33",
		ValueDate:   "250312",
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "test-rule-001",
		Name:       "Test Rule",
		Expression: "amount > 100.0",
		Weight:     1.0,
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	t.Run("Syntax", func(t *testing.T) {
		rule := &domain.RuleConfig{ID: "invalid-rule", Expression: "this is not valid CEL !!!", Enabled: true}
		if err := engine.LoadRule(rule); err == nil {
			t.Error("expected error for invalid CEL expression")
		}
	})

	t.Run("StringOutput", func(t *testing.T) {
		rule := &domain.RuleConfig{ID: "string-rule", Expression: "currency", Enabled: true}
		if err := engine.ValidateRule(rule); err == nil {
			t.Error("expected error for string-valued expression")
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		rule := &domain.RuleConfig{ID: "velocity-rule", Expression: "velocity_count > 10", Enabled: true}
		if err := engine.ValidateRule(rule); err == nil {
			t.Error("expected error for undeclared variable")
		}
	})
}

func TestEvaluateBandedRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	zero := 0.0
	one := 1.0

	rule := &domain.RuleConfig{
		ID:         "amount-check",
		Name:       "Amount Check",
		Expression: "amount > 1000.0 ? 1.0 : 0.0",
		Bands: []domain.RuleBand{
			{LowerLimit: &zero, UpperLimit: &one, SubRuleRef: domain.RuleOutcomePass, Reason: "Low amount"},
			{LowerLimit: &one, UpperLimit: nil, SubRuleRef: domain.RuleOutcomeReview, Reason: "High amount"},
		},
		Weight:  1.0,
		Enabled: true,
	}
	engine.LoadRule(rule)

	ctx := context.Background()
	msg := testMessage()

	results, err := engine.EvaluateAll(ctx, msg)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].SubRuleRef != domain.RuleOutcomePass {
		t.Errorf("expected PASS for low amount, got %s", results[0].SubRuleRef)
	}

	msg.Amount = "5000.00"
	results, _ = engine.EvaluateAll(ctx, msg)
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 for high amount, got %.2f", results[0].Score)
	}
	if results[0].SubRuleRef != domain.RuleOutcomeReview {
		t.Errorf("expected REVIEW, got %s", results[0].SubRuleRef)
	}
	if results[0].MessageID != "msg-001" {
		t.Errorf("expected message id msg-001, got %s", results[0].MessageID)
	}
}

func TestEvaluateBooleanRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "corridor-check",
		Name:       "Sanctioned Corridor",
		Expression: "sender_country == 'IR' || receiver_country == 'IR'",
		Weight:     1.0,
		Enabled:    true,
	}
	engine.LoadRule(rule)

	ctx := context.Background()
	msg := testMessage()

	results, _ := engine.EvaluateAll(ctx, msg)
	if results[0].SubRuleRef != domain.RuleOutcomePass {
		t.Errorf("expected PASS for DE to US, got %s", results[0].SubRuleRef)
	}

	msg.ReceiverBIC = "BMJIIRTH"
	results, _ = engine.EvaluateAll(ctx, msg)
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 for IR receiver, got %.2f", results[0].Score)
	}
	if results[0].SubRuleRef != domain.RuleOutcomeFail {
		t.Errorf("expected FAIL for matched bool rule, got %s", results[0].SubRuleRef)
	}
}

func TestValueDateAge(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.SetClock(func() time.Time { return time.Date(2025, 4, 21, 9, 0, 0, 0, time.UTC) })

	rule := &domain.RuleConfig{
		ID:         "stale-date",
		Expression: "value_date_age_days > 30",
		Enabled:    true,
	}
	engine.LoadRule(rule)

	results, _ := engine.EvaluateAll(context.Background(), testMessage())
	if results[0].SubRuleRef != domain.RuleOutcomeFail {
		t.Errorf("expected FAIL for 40 day old value date, got %s", results[0].SubRuleRef)
	}
}

func TestMessageMapAccess(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "mt103-without-remittance",
		Expression: "message_type == 'MT103' && msg.remittance_info == ''",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	results, _ := engine.EvaluateAll(context.Background(), testMessage())
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0, got %.2f", results[0].Score)
	}
}

func TestParallelExecution(t *testing.T) {
	engine, _ := NewEngine(3)
	defer engine.Close()

	for i := 0; i < 10; i++ {
		rule := &domain.RuleConfig{
			ID:         fmt.Sprintf("rule-%d", i),
			Name:       fmt.Sprintf("Rule %d", i),
			Expression: "amount > 0.0",
			Weight:     1.0,
			Enabled:    true,
		}
		engine.LoadRule(rule)
	}

	if engine.RulesCount() != 10 {
		t.Fatalf("expected 10 rules, got %d", engine.RulesCount())
	}

	results, err := engine.EvaluateAll(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("parallel evaluation failed: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}

	for i, r := range results {
		if r.Score != 1.0 {
			t.Errorf("rule %d: expected score 1.0, got %.2f", i, r.Score)
		}
		if i > 0 && results[i-1].RuleID > r.RuleID {
			t.Errorf("expected results ordered by rule id, got %s before %s", results[i-1].RuleID, r.RuleID)
		}
	}
}

func TestEvaluateCanceled(t *testing.T) {
	engine, _ := NewEngine(2)
	defer engine.Close()
	engine.LoadRule(&domain.RuleConfig{ID: "r1", Expression: "amount > 0.0", Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.EvaluateAll(ctx, testMessage()); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{ID: "old", Expression: "amount > 0.0", Enabled: true})

	err := engine.ReloadRules([]*domain.RuleConfig{
		{ID: "b-new", Expression: "amount > 1.0", Enabled: true},
		{ID: "a-new", Expression: "amount > 2.0", Enabled: true},
		{ID: "disabled", Expression: "amount > 3.0", Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	loaded := engine.GetLoadedRules()
	if len(loaded) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(loaded))
	}
	if loaded[0].ID != "a-new" || loaded[1].ID != "b-new" {
		t.Errorf("expected [a-new b-new], got [%s %s]", loaded[0].ID, loaded[1].ID)
	}

	// A bad rule leaves the loaded set untouched
	err = engine.ReloadRules([]*domain.RuleConfig{{ID: "bad", Expression: "!!!", Enabled: true}})
	if err == nil {
		t.Fatal("expected reload error")
	}
	if engine.RulesCount() != 2 {
		t.Errorf("expected 2 rules after failed reload, got %d", engine.RulesCount())
	}
}

func TestFindings(t *testing.T) {
	results := []domain.RuleResult{
		{RuleID: "r1", SubRuleRef: domain.RuleOutcomePass},
		{RuleID: "r2", SubRuleRef: domain.RuleOutcomeReview, Reason: "elevated"},
		{RuleID: "r3", SubRuleRef: domain.RuleOutcomeError, Reason: "evaluation error"},
	}

	indicators, critical := Findings(results)
	if critical {
		t.Error("expected no critical finding without a fail outcome")
	}
	if len(indicators) != 1 {
		t.Fatalf("expected 1 indicator, got %v", indicators)
	}

	results = append(results, domain.RuleResult{RuleID: "r4", SubRuleRef: domain.RuleOutcomeFail, Reason: "blocked"})
	indicators, critical = Findings(results)
	if !critical {
		t.Error("expected critical finding for fail outcome")
	}
	if len(indicators) != 2 {
		t.Errorf("expected 2 indicators, got %v", indicators)
	}
}

func TestMatchBand(t *testing.T) {
	zero, half, one := 0.0, 0.5, 1.0
	bands := []domain.RuleBand{
		{LowerLimit: &zero, UpperLimit: &half, SubRuleRef: domain.RuleOutcomePass},
		{LowerLimit: &half, UpperLimit: &one, SubRuleRef: domain.RuleOutcomeReview},
		{LowerLimit: &one, SubRuleRef: domain.RuleOutcomeFail},
	}

	tests := []struct {
		score    float64
		expected string
	}{
		{0.0, domain.RuleOutcomePass},
		{0.49, domain.RuleOutcomePass},
		{0.5, domain.RuleOutcomeReview},
		{0.99, domain.RuleOutcomeReview},
		{1.0, domain.RuleOutcomeFail},
		{7.0, domain.RuleOutcomeFail},
		{-1.0, domain.RuleOutcomePass},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("Score%.2f", tt.score), func(t *testing.T) {
			got, _ := matchBand(tt.score, bands)
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
