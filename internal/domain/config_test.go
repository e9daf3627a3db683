package domain

import "testing"

func TestDefaultValidationConfigIsolated(t *testing.T) {
	first := DefaultValidationConfig()
	first.KnownCurrencies[0] = "XXX"
	first.HighRiskCountries[0] = "ZZ"

	second := DefaultValidationConfig()
	if second.KnownCurrencies[0] != "USD" {
		t.Errorf("expected USD, got %s", second.KnownCurrencies[0])
	}
	if second.HighRiskCountries[0] != "AF" {
		t.Errorf("expected AF, got %s", second.HighRiskCountries[0])
	}
	if KnownCurrencies()[0] != "USD" || HighRiskCountries()[0] != "AF" {
		t.Error("expected package defaults unaffected by config mutation")
	}
}
