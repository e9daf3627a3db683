package rules

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var half = decimal.RequireFromString("0.5")

// unusualCents reports a fractional part other than .00 or .50.
func unusualCents(amount decimal.Decimal) bool {
	frac := amount.Sub(amount.Truncate(0)).Abs()
	return !frac.IsZero() && !frac.Equal(half)
}

// hasRepeatedDigits reports n or more consecutive identical characters.
func hasRepeatedDigits(s string, n int) bool {
	if len(s) < n {
		return false
	}
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return n <= 1
}

// hasSequentialRun reports an ascending run of n digits or n letters.
// Digits and letters are extracted separately first, so "A1B2C3" contains
// both 1-2-3 and A-B-C.
func hasSequentialRun(s string, n int) bool {
	var digits, letters []rune
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, r)
		case unicode.IsLetter(r):
			letters = append(letters, unicode.ToUpper(r))
		}
	}
	return ascending(digits, n) || ascending(letters, n)
}

func ascending(rs []rune, n int) bool {
	if n < 2 || len(rs) < n {
		return false
	}
	run := 1
	for i := 1; i < len(rs); i++ {
		if rs[i] == rs[i-1]+1 {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func hasMarkerPrefix(s string, markers []string) bool {
	upper := strings.ToUpper(s)
	for _, m := range markers {
		if m != "" && strings.HasPrefix(upper, strings.ToUpper(m)) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func distinctRunes(s string) int {
	seen := make(map[rune]struct{})
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isAllLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
