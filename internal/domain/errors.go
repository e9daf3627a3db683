package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidationCode classifies a validation failure.
type ValidationCode string

const (
	CodeMissingField       ValidationCode = "MissingField"
	CodeMalformedBIC       ValidationCode = "MalformedBIC"
	CodeInvalidAmount      ValidationCode = "InvalidAmount"
	CodeInvalidCurrency    ValidationCode = "InvalidCurrency"
	CodeInvalidValueDate   ValidationCode = "InvalidValueDate"
	CodeIdenticalParties   ValidationCode = "IdenticalParties"
	CodeInvalidMessageType ValidationCode = "InvalidMessageType"
	CodeInvalidReference   ValidationCode = "InvalidReference"
	CodeInvalidCharacters  ValidationCode = "InvalidCharacters"
)

var (
	ErrMissingField       = errors.New("missing field")
	ErrMalformedBIC       = errors.New("malformed BIC")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidValueDate   = errors.New("invalid value date")
	ErrIdenticalParties   = errors.New("sender and receiver are identical")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidReference   = errors.New("invalid reference")
	ErrInvalidCharacters  = errors.New("invalid characters")

	ErrNotAdmitted       = errors.New("message not admitted")
	ErrInvalidFeeRate    = errors.New("fee rate must be within [0, 1]")
	ErrInvalidThresholds = errors.New("review threshold must not exceed reject threshold")
	ErrNotReferred       = errors.New("decision is not a referral")
	ErrCanceled          = errors.New("batch canceled before message was processed")
	ErrCorrectionRefused = errors.New("corrected message failed re-validation")
)

var codeSentinels = map[ValidationCode]error{
	CodeMissingField:       ErrMissingField,
	CodeMalformedBIC:       ErrMalformedBIC,
	CodeInvalidAmount:      ErrInvalidAmount,
	CodeInvalidCurrency:    ErrInvalidCurrency,
	CodeInvalidValueDate:   ErrInvalidValueDate,
	CodeIdenticalParties:   ErrIdenticalParties,
	CodeInvalidMessageType: ErrInvalidMessageType,
	CodeInvalidReference:   ErrInvalidReference,
	CodeInvalidCharacters:  ErrInvalidCharacters,
}

// ValidationError is a single field-level failure. It is data, never a panic.
type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Field   string         `json:"field"`
	Message string         `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
}

// Unwrap lets errors.Is match the code sentinel.
func (e ValidationError) Unwrap() error {
	return codeSentinels[e.Code]
}

// ScoringError records unparseable numeric input seen by an analyzer.
// The analyzer degrades to a fixed high-risk score instead of failing.
type ScoringError struct {
	Analyzer string
	Input    string
	Err      error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("%s analyzer: cannot parse %q: %v", e.Analyzer, e.Input, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// AdjudicationTimeout is returned when a referred message gets no verdict in time.
// The message is held, never admitted or rejected by default.
type AdjudicationTimeout struct {
	MessageID string
	Timeout   time.Duration
}

func (e *AdjudicationTimeout) Error() string {
	return fmt.Sprintf("adjudication for message %s timed out after %s", e.MessageID, e.Timeout)
}

// BalanceError reports splits that do not reconcile even after correction.
type BalanceError struct {
	TransactionID string
	Difference    decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("transaction %s unbalanced by %s", e.TransactionID, e.Difference.StringFixed(2))
}
