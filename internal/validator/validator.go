// Package validator checks interbank payment messages for structural correctness.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	bicPattern      = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	valueDateFormat = regexp.MustCompile(`^[0-9]{6}$`)
	amountFormat    = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)
	swiftCharset    = regexp.MustCompile(`^[A-Za-z0-9/\-\?\:\(\)\.\,\'\+\s]*$`)
	testReference   = regexp.MustCompile(`^(TEST|FAKE|DEMO)`)
)

var (
	largeAmount    = decimal.NewFromInt(1000000)
	structuringMin = decimal.NewFromInt(10000)
	thousand       = decimal.NewFromInt(1000)
)

// Validator checks payment messages against SWIFT formatting and business rules.
// It is safe for concurrent use.
type Validator struct {
	cfg          domain.ValidationConfig
	now          func() time.Time
	currencies   map[string]bool
	highRisk     map[string]bool
	riskPatterns []*regexp.Regexp
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for value date windows.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// New creates a Validator. It fails only if a configured risk pattern does not compile.
func New(cfg domain.ValidationConfig, opts ...Option) (*Validator, error) {
	v := &Validator{
		cfg:        cfg,
		now:        time.Now,
		currencies: toSet(cfg.KnownCurrencies),
		highRisk:   toSet(cfg.HighRiskCountries),
	}

	for _, p := range cfg.RiskPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid risk pattern %q: %w", p, err)
		}
		v.riskPatterns = append(v.riskPatterns, re)
	}

	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate runs every check against msg and collects all errors and warnings.
// A blank field only reports MissingField; its format checks are skipped.
func (v *Validator) Validate(msg domain.PaymentMessage) domain.ValidationResult {
	result := domain.ValidationResult{MessageID: msg.ID, IsValid: true}

	v.checkRequired(msg, &result)
	v.checkMessageType(msg, &result)
	v.checkBICs(msg, &result)
	v.checkAmount(msg, &result)
	v.checkCurrency(msg, &result)
	v.checkValueDate(msg, &result)
	v.checkReference(msg, &result)
	v.checkCharset(msg, &result)
	v.checkRiskPatterns(msg, &result)

	return result
}

func (v *Validator) checkRequired(msg domain.PaymentMessage, r *domain.ValidationResult) {
	for _, name := range v.cfg.RequiredFields {
		if isBlank(fieldValue(msg, name)) {
			r.AddError(domain.CodeMissingField, name, fmt.Sprintf("required field %q is missing or empty", name))
		}
	}
}

func (v *Validator) checkMessageType(msg domain.PaymentMessage, r *domain.ValidationResult) {
	if isBlank(string(msg.Type)) {
		return
	}

	switch msg.Type {
	case domain.MessageTypeMT103:
		if isBlank(msg.OrderingCustomer) {
			r.AddWarning("MT103 should include ordering customer information")
		}
		if isBlank(msg.Beneficiary) {
			r.AddWarning("MT103 should include beneficiary information")
		}
		if isBlank(msg.RemittanceInfo) {
			r.AddWarning("MT103 should include remittance information")
		}
	case domain.MessageTypeMT202:
	default:
		r.AddError(domain.CodeInvalidMessageType, "type", fmt.Sprintf("unsupported message type: %s", msg.Type))
	}
}

func (v *Validator) checkBICs(msg domain.PaymentMessage, r *domain.ValidationResult) {
	for _, side := range []struct {
		field, label, bic string
	}{
		{"sender_bic", "Sender", msg.SenderBIC},
		{"receiver_bic", "Receiver", msg.ReceiverBIC},
	} {
		if isBlank(side.bic) {
			continue
		}
		if err := CheckBIC(side.bic); err != nil {
			r.AddError(domain.CodeMalformedBIC, side.field, err.Error())
		}
		if country := countryOf(side.bic); v.highRisk[country] {
			r.AddWarning(fmt.Sprintf("%s BIC from high-risk country: %s", side.label, country))
		}
	}

	if !isBlank(msg.SenderBIC) && msg.SenderBIC == msg.ReceiverBIC {
		r.AddError(domain.CodeIdenticalParties, "receiver_bic", "sender and receiver BIC codes cannot be identical")
	}
}

func (v *Validator) checkAmount(msg domain.PaymentMessage, r *domain.ValidationResult) {
	if isBlank(msg.Amount) {
		return
	}

	if trimmed := strings.TrimSpace(msg.Amount); strings.HasPrefix(trimmed, "-") {
		r.AddError(domain.CodeInvalidAmount, "amount", "amount must not be negative")
		return
	}

	amount, err := ParseAmount(msg.Amount)
	if err != nil {
		r.AddError(domain.CodeInvalidAmount, "amount", fmt.Sprintf("invalid amount format: %s", msg.Amount))
		return
	}

	if amount.LessThan(v.cfg.MinAmount) {
		r.AddError(domain.CodeInvalidAmount, "amount", fmt.Sprintf("amount %s below minimum %s", amount, v.cfg.MinAmount))
	}
	if amount.GreaterThan(v.cfg.MaxAmount) {
		r.AddError(domain.CodeInvalidAmount, "amount", fmt.Sprintf("amount %s exceeds maximum %s", amount, v.cfg.MaxAmount))
	}
	if amount.GreaterThanOrEqual(structuringMin) && amount.Mod(thousand).IsZero() {
		r.AddWarning(fmt.Sprintf("Round amount may indicate structuring: %s", amount.StringFixed(2)))
	}
	if amount.GreaterThanOrEqual(largeAmount) {
		r.AddWarning(fmt.Sprintf("Very large transaction amount: %s", amount.StringFixed(2)))
	}
}

func (v *Validator) checkCurrency(msg domain.PaymentMessage, r *domain.ValidationResult) {
	if isBlank(msg.Currency) {
		return
	}
	if !ValidCurrencyFormat(msg.Currency) {
		r.AddError(domain.CodeInvalidCurrency, "currency", fmt.Sprintf("currency code must be 3 uppercase letters: %s", msg.Currency))
		return
	}
	if !v.currencies[msg.Currency] {
		r.AddWarning(fmt.Sprintf("Uncommon or invalid currency code: %s", msg.Currency))
	}
}

func (v *Validator) checkValueDate(msg domain.PaymentMessage, r *domain.ValidationResult) {
	if isBlank(msg.ValueDate) {
		return
	}

	date, err := ParseValueDate(msg.ValueDate)
	if err != nil {
		r.AddError(domain.CodeInvalidValueDate, "value_date", err.Error())
		return
	}

	days := DaysBetween(v.now(), date)
	if days < -v.cfg.ValueDateWindow {
		r.AddWarning(fmt.Sprintf("Value date is more than %d days in the past: %s", v.cfg.ValueDateWindow, msg.ValueDate))
	}
	if days > v.cfg.ValueDateWindow {
		r.AddWarning(fmt.Sprintf("Value date is more than %d days in the future: %s", v.cfg.ValueDateWindow, msg.ValueDate))
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		r.AddWarning("Value date falls on weekend")
	}
}

func (v *Validator) checkReference(msg domain.PaymentMessage, r *domain.ValidationResult) {
	if isBlank(msg.Reference) {
		return
	}
	if limit := v.cfg.MaxReferenceLength; limit > 0 && len(msg.Reference) > limit {
		r.AddError(domain.CodeInvalidReference, "reference", fmt.Sprintf("reference exceeds maximum length of %d", limit))
	}
	if testReference.MatchString(strings.ToUpper(msg.Reference)) {
		r.AddWarning("Reference appears to be test data")
	}
}

func (v *Validator) checkCharset(msg domain.PaymentMessage, r *domain.ValidationResult) {
	for _, f := range []struct{ field, value string }{
		{"reference", msg.Reference},
		{"ordering_customer", msg.OrderingCustomer},
		{"beneficiary", msg.Beneficiary},
		{"remittance_info", msg.RemittanceInfo},
	} {
		if f.value != "" && !swiftCharset.MatchString(f.value) {
			r.AddError(domain.CodeInvalidCharacters, f.field, fmt.Sprintf("%s contains invalid SWIFT characters", f.field))
		}
	}
}

func (v *Validator) checkRiskPatterns(msg domain.PaymentMessage, r *domain.ValidationResult) {
	for i, re := range v.riskPatterns {
		pattern := v.cfg.RiskPatterns[i]
		if msg.Reference != "" && re.MatchString(msg.Reference) {
			r.AddWarning(fmt.Sprintf("Reference matches risk pattern: %s", pattern))
		}
		if msg.SenderBIC != "" && re.MatchString(msg.SenderBIC) {
			r.AddWarning(fmt.Sprintf("Sender BIC matches risk pattern: %s", pattern))
		}
		if msg.ReceiverBIC != "" && re.MatchString(msg.ReceiverBIC) {
			r.AddWarning(fmt.Sprintf("Receiver BIC matches risk pattern: %s", pattern))
		}
	}
}

// CheckBIC validates a BIC against the ISO 9362 grammar and reports the
// first position group that is violated.
func CheckBIC(bic string) error {
	if bicPattern.MatchString(bic) {
		return nil
	}

	switch {
	case len(bic) != 8 && len(bic) != 11:
		return fmt.Errorf("invalid BIC %q: length must be 8 or 11, got %d", bic, len(bic))
	case !isUpperAlpha(bic[0:4]):
		return fmt.Errorf("invalid BIC %q: bank code (positions 1-4) must be uppercase letters", bic)
	case !isUpperAlpha(bic[4:6]):
		return fmt.Errorf("invalid BIC %q: country code (positions 5-6) must be uppercase letters", bic)
	case !isUpperAlnum(bic[6:8]):
		return fmt.Errorf("invalid BIC %q: location code (positions 7-8) must be uppercase letters or digits", bic)
	default:
		return fmt.Errorf("invalid BIC %q: branch code (positions 9-11) must be uppercase letters or digits", bic)
	}
}

// ValidBIC reports whether bic is a well-formed BIC.
func ValidBIC(bic string) bool {
	return bicPattern.MatchString(bic)
}

// ValidCurrencyFormat reports whether code is exactly three uppercase letters.
func ValidCurrencyFormat(code string) bool {
	return currencyPattern.MatchString(code)
}

// ParseAmount parses a plain fixed-point amount: digits with at most two
// fractional digits. Signs, exponents and separators are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !amountFormat.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("amount must be digits with at most 2 decimal places: %q", s)
	}
	return decimal.NewFromString(s)
}

// CanonicalAmount renders a valid amount with exactly two fractional digits.
func CanonicalAmount(s string) (string, bool) {
	d, err := ParseAmount(s)
	if err != nil {
		return s, false
	}
	return d.StringFixed(2), true
}

// ParseValueDate parses a YYMMDD value date as a UTC calendar date in 20YY.
func ParseValueDate(s string) (time.Time, error) {
	if !valueDateFormat.MatchString(s) {
		return time.Time{}, fmt.Errorf("invalid value date format (YYMMDD required): %s", s)
	}

	year := 2000 + atoi2(s[0:2])
	month := atoi2(s[2:4])
	day := atoi2(s[4:6])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid value date: %s", s)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, e.g. Feb 30 becomes Mar 2
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid value date: %s is not a calendar date", s)
	}
	return date, nil
}

// DaysBetween returns the whole calendar days from the date of now to date.
// Negative values mean date lies in the past.
func DaysBetween(now, date time.Time) int {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(date.Sub(today).Hours() / 24)
}

func fieldValue(msg domain.PaymentMessage, name string) string {
	switch name {
	case "id":
		return msg.ID
	case "type", "message_type":
		return string(msg.Type)
	case "reference":
		return msg.Reference
	case "amount":
		return msg.Amount
	case "currency":
		return msg.Currency
	case "sender_bic":
		return msg.SenderBIC
	case "receiver_bic":
		return msg.ReceiverBIC
	case "value_date":
		return msg.ValueDate
	case "ordering_customer":
		return msg.OrderingCustomer
	case "beneficiary":
		return msg.Beneficiary
	case "remittance_info":
		return msg.RemittanceInfo
	default:
		return ""
	}
}

func countryOf(bic string) string {
	if len(bic) < 6 {
		return ""
	}
	return bic[4:6]
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isUpperAlpha(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func isUpperAlnum(s string) bool {
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
