package bankparse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount expressions, most explicit first. Naira alerts write amounts as
// "NGN15,000.00", "₦15,000", "N 15,000.00 CR", or "Amount: 15,000.00".
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:NGN|₦)\s*([\d,]+(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)\bN\s?([\d,]{4,}(?:\.\d{1,2})?)`),
	regexp.MustCompile(`(?i)\bamo?u?nt[\s.:]*(?:NGN|₦|N)?\s*([\d,]+(?:\.\d{1,2})?)`),
}

// ExtractAmountMinor finds the transaction amount in alert text and returns
// it in minor units (kobo). Currency arithmetic goes through decimal, never
// float. Returns false when no positive amount can be extracted.
func ExtractAmountMinor(text string) (int64, bool) {
	for _, pattern := range amountPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if minor, ok := ParseAmountMinor(m[1]); ok {
			return minor, true
		}
	}
	return 0, false
}

// ParseAmountMinor converts a formatted amount string ("15,000.00") to
// minor units. Zero, negative, and malformed amounts are rejected.
func ParseAmountMinor(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if d.Sign() <= 0 {
		return 0, false
	}

	minor := d.Shift(2)
	if !minor.IsInteger() {
		// Sub-kobo precision means a garbled amount, not real money.
		return 0, false
	}
	return minor.IntPart(), true
}
