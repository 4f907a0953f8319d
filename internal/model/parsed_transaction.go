package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParsedTransaction is the structured result of parsing one bank alert or
// one statement row. It carries no persistence identity; the parsing stage
// turns it into an EmailTransaction.
type ParsedTransaction struct {
	OccurredAt    time.Time
	Direction     TransactionType
	Counterparty  string
	BankReference string
	AccountNumber string
	Narration     string
	AmountMinor   int64
}

// Amount returns the transaction amount in major currency units.
func (p *ParsedTransaction) Amount() decimal.Decimal {
	return decimal.New(p.AmountMinor, -2)
}

// FormatAmountMinor renders a minor-unit amount as a naira string.
func FormatAmountMinor(minor int64) string {
	return "₦" + decimal.New(minor, -2).StringFixed(2)
}
