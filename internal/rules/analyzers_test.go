package rules

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var analyzerNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newTestAnalyzers(t *testing.T) map[string]Analyzer {
	t.Helper()
	set, err := NewAnalyzers(domain.DefaultAnalyzerConfig(), func() time.Time { return analyzerNow })
	if err != nil {
		t.Fatalf("failed to create analyzers: %v", err)
	}
	return set
}

func TestAmountAnalyzer(t *testing.T) {
	a := NewAmountAnalyzer(domain.DefaultAnalyzerConfig())

	tests := []struct {
		name     string
		amount   string
		expected float64
	}{
		{"Ordinary", "1523.47", 0},
		{"RoundStructuring", "25000.00", 0.35}, // round + "000" run
		{"NotRoundEnough", "10500.00", 0},
		{"BelowFloor", "9.99", 0.20},
		{"UnusualCents", "150123.37", 0.10},
		{"HalfCents", "150123.50", 0},
		{"VeryHigh", "2500000.00", 0.60}, // high + round + "00000" run
		{"RepeatedDigits", "1777.25", 0.15},
		{"Minimum", "0.01", 0.20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage()
			msg.Amount = tt.amount
			result := a.Analyze(msg)
			if !approxEqual(result.Score, tt.expected) {
				t.Errorf("expected score %.2f for %s, got %.4f (%v)", tt.expected, tt.amount, result.Score, result.Indicators)
			}
			if result.Analyzer != domain.AnalyzerAmount {
				t.Errorf("expected analyzer %s, got %s", domain.AnalyzerAmount, result.Analyzer)
			}
		})
	}
}

func TestAmountAnalyzerInvalid(t *testing.T) {
	a := NewAmountAnalyzer(domain.DefaultAnalyzerConfig())

	msg := testMessage()
	msg.Amount = "12,50O"

	result := a.Analyze(msg)
	if result.Score != 0.8 {
		t.Errorf("expected score 0.8, got %.2f", result.Score)
	}
	if len(result.Indicators) != 1 || result.Indicators[0] != "invalid amount format" {
		t.Errorf("expected single invalid amount indicator, got %v", result.Indicators)
	}

	var scoringErr *domain.ScoringError
	if !errors.As(result.Err, &scoringErr) {
		t.Fatalf("expected ScoringError, got %v", result.Err)
	}
	if scoringErr.Input != "12,50O" {
		t.Errorf("expected input 12,50O, got %s", scoringErr.Input)
	}
}

func TestPatternAnalyzer(t *testing.T) {
	a, err := NewPatternAnalyzer(domain.DefaultAnalyzerConfig())
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}

	t.Run("Clean", func(t *testing.T) {
		result := a.Analyze(testMessage())
		if result.Score != 0 || result.Critical {
			t.Errorf("expected clean result, got %.2f %v", result.Score, result.Indicators)
		}
	})

	t.Run("TestSenderOncePerSide", func(t *testing.T) {
		msg := testMessage()
		msg.SenderBIC = "TEST9990"
		result := a.Analyze(msg)
		if !approxEqual(result.Score, 0.4) {
			t.Errorf("expected 0.4 for one matching side, got %.2f", result.Score)
		}
		if !result.Critical {
			t.Error("expected critical result for high-risk BIC")
		}
	})

	t.Run("BothSides", func(t *testing.T) {
		msg := testMessage()
		msg.SenderBIC = "FAKEUS33"
		msg.ReceiverBIC = "BANK000000"
		result := a.Analyze(msg)
		if !approxEqual(result.Score, 0.8) {
			t.Errorf("expected 0.8 for two matching sides, got %.2f", result.Score)
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		msg := testMessage()
		msg.ReceiverBIC = "demoGB2L"
		result := a.Analyze(msg)
		if !approxEqual(result.Score, 0.4) {
			t.Errorf("expected 0.4, got %.2f", result.Score)
		}
	})

	t.Run("IdenticalParties", func(t *testing.T) {
		msg := testMessage()
		msg.ReceiverBIC = msg.SenderBIC
		result := a.Analyze(msg)
		if !approxEqual(result.Score, 0.5) {
			t.Errorf("expected 0.5, got %.2f", result.Score)
		}
	})

	t.Run("TestReferenceWithSequence", func(t *testing.T) {
		msg := testMessage()
		msg.Reference = "TEST123"
		result := a.Analyze(msg)
		if !approxEqual(result.Score, 0.5) {
			t.Errorf("expected 0.5, got %.2f (%v)", result.Score, result.Indicators)
		}
	})

	t.Run("Clamped", func(t *testing.T) {
		msg := testMessage()
		msg.SenderBIC = "TESTUS33"
		msg.ReceiverBIC = "TESTUS33"
		msg.Reference = "FAKEABC"
		result := a.Analyze(msg)
		if result.Score != 1.0 {
			t.Errorf("expected clamped score 1.0, got %.2f", result.Score)
		}
	})
}

func TestStructuralAnalyzer(t *testing.T) {
	a := NewStructuralAnalyzer()

	t.Run("Clean", func(t *testing.T) {
		msg := testMessage()
		msg.OrderingCustomer = "ACME CORP"
		if result := a.Analyze(msg); result.Score != 0 {
			t.Errorf("expected 0, got %.2f (%v)", result.Score, result.Indicators)
		}
	})

	t.Run("MissingOrderingCustomer", func(t *testing.T) {
		if result := a.Analyze(testMessage()); !approxEqual(result.Score, 0.1) {
			t.Errorf("expected 0.1, got %.2f", result.Score)
		}
	})

	t.Run("EveryDefect", func(t *testing.T) {
		msg := testMessage()
		msg.Type = domain.MessageTypeMT202
		msg.SenderBIC = "bad"
		msg.ValueDate = "251340"
		msg.Currency = "Usd"
		result := a.Analyze(msg)
		if !approxEqual(result.Score, 0.7) {
			t.Errorf("expected 0.7, got %.2f", result.Score)
		}
		if len(result.Indicators) != 3 {
			t.Errorf("expected 3 indicators, got %v", result.Indicators)
		}
	})
}

func TestReferenceAnalyzer(t *testing.T) {
	a := NewReferenceAnalyzer(domain.DefaultAnalyzerConfig())

	tests := []struct {
		name      string
		reference string
		expected  float64
	}{
		{"Ordinary", "INV2025REF", 0},
		{"LowEntropy", "AAAABBBB", 0.30}, // low entropy + all alphabetic
		{"LongNumeric", "987654321", 0.10},
		{"Keyboard", "PAYQWERTY1", 0.15},
		{"KeyboardDigits", "REF-1234", 0.15},
		{"ShortAlpha", "PAYREF", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage()
			msg.Reference = tt.reference
			result := a.Analyze(msg)
			if !approxEqual(result.Score, tt.expected) {
				t.Errorf("expected %.2f for %s, got %.2f (%v)", tt.expected, tt.reference, result.Score, result.Indicators)
			}
		})
	}
}

func TestTimingAnalyzer(t *testing.T) {
	a := NewTimingAnalyzer(domain.DefaultAnalyzerConfig(), func() time.Time { return analyzerNow })

	tests := []struct {
		name     string
		date     string
		expected float64
	}{
		{"Today", "250312", 0},
		{"ThirtyDaysAgo", "250210", 0},
		{"ThirtyOneDaysAgo", "250209", 0.2},
		{"Future", "250601", 0},
		{"Unparseable", "25-03-12", 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage()
			msg.ValueDate = tt.date
			if result := a.Analyze(msg); !approxEqual(result.Score, tt.expected) {
				t.Errorf("expected %.2f for %s, got %.2f", tt.expected, tt.date, result.Score)
			}
		})
	}
}

func TestAnalyzersArePure(t *testing.T) {
	set := newTestAnalyzers(t)
	msg := testMessage()
	msg.Amount = "25000.00"
	msg.SenderBIC = "TESTUS33"

	for name, a := range set {
		first := a.Analyze(msg)
		second := a.Analyze(msg)
		if first.Score != second.Score || len(first.Indicators) != len(second.Indicators) {
			t.Errorf("%s: expected identical results, got %v and %v", name, first, second)
		}
		if first.Score < 0 || first.Score > 1 {
			t.Errorf("%s: score %.2f outside [0,1]", name, first.Score)
		}
	}

	if len(set) != 5 {
		t.Errorf("expected 5 analyzers, got %d", len(set))
	}
}

func TestSequentialRun(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"A1B2C3", true},
		{"XYZ", true},
		{"xyz", true},
		{"REF135", false},
		{"INV2025REF", false},
		{"789", true},
		{"12", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := hasSequentialRun(tt.input, 3); got != tt.expected {
				t.Errorf("expected %v for %s, got %v", tt.expected, tt.input, got)
			}
		})
	}
}
