package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MessageType is the interbank message kind.
type MessageType string

const (
	// MessageTypeMT103 is a single customer credit transfer.
	MessageTypeMT103 MessageType = "MT103"

	// MessageTypeMT202 is a financial institution transfer.
	MessageTypeMT202 MessageType = "MT202"
)

// ValidMessageTypes lists the message kinds the engine accepts.
var ValidMessageTypes = []MessageType{MessageTypeMT103, MessageTypeMT202}

// PaymentMessage is an interbank payment message as received from a source.
// Fields are kept in their wire representation; the validator decides whether
// they are well formed.
type PaymentMessage struct {
	ID          string      `json:"id"`
	Type        MessageType `json:"type"`
	Reference   string      `json:"reference"`
	Amount      string      `json:"amount"`
	Currency    string      `json:"currency"`
	SenderBIC   string      `json:"senderBic"`
	ReceiverBIC string      `json:"receiverBic"`
	ValueDate   string      `json:"valueDate"` // YYMMDD

	// Free-text fields (MT103 fields 50, 59 and 70)
	OrderingCustomer string `json:"orderingCustomer,omitempty"`
	Beneficiary      string `json:"beneficiary,omitempty"`
	RemittanceInfo   string `json:"remittanceInfo,omitempty"`
}

// AmountDecimal parses the amount as a base-10 decimal.
func (m PaymentMessage) AmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(m.Amount))
}

// FirstDigit returns the leading significant digit of the amount, or 0 when
// the amount carries no non-zero digit.
func (m PaymentMessage) FirstDigit() int {
	return LeadingDigit(m.Amount)
}

// LeadingDigit strips separators and leading zeros from an amount string and
// returns its first digit (1-9). It returns 0 if no such digit exists.
func LeadingDigit(amount string) int {
	for _, r := range amount {
		switch {
		case r == '0', r == '.', r == ',', r == ' ', r == '-', r == '+':
			continue
		case r >= '1' && r <= '9':
			return int(r - '0')
		default:
			return 0
		}
	}
	return 0
}

// SenderCountry returns the ISO country segment of the sender BIC.
func (m PaymentMessage) SenderCountry() string {
	return bicCountry(m.SenderBIC)
}

// ReceiverCountry returns the ISO country segment of the receiver BIC.
func (m PaymentMessage) ReceiverCountry() string {
	return bicCountry(m.ReceiverBIC)
}

func bicCountry(bic string) string {
	if len(bic) < 6 {
		return ""
	}
	return bic[4:6]
}
