package statement

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/residio-ng/residio/internal/bankparse"
	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// Parser converts bank PDF statements into transaction rows. Statements are
// usually encrypted with an account-derived password, resolved through the
// password store.
type Parser struct {
	passwords service.PasswordStore
}

// NewParser creates a statement parser backed by the given password store.
func NewParser(passwords service.PasswordStore) *Parser {
	return &Parser{passwords: passwords}
}

var (
	nubanPattern = regexp.MustCompile(`\b(\d{10})\b`)

	// Statement rows start with a date column.
	rowDatePattern = regexp.MustCompile(`^(\d{1,2}[-/][A-Za-z]{3}[-/]\d{2,4}|\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})\b`)

	// Trailing numeric columns: amount then running balance.
	trailingAmounts = regexp.MustCompile(`(-?[\d,]+\.\d{2})\s+(-?[\d,]+\.\d{2})\s*$`)
	singleAmount    = regexp.MustCompile(`(-?[\d,]+\.\d{2})\s*$`)

	markerPattern = regexp.MustCompile(`\b(CR|DR)\b`)

	rowDateLayouts = []string{
		"02-Jan-2006", "02-Jan-06", "02/Jan/2006",
		"02/01/2006", "02/01/06", "2006-01-02",
	}
)

// ExtractAccountNumber returns the first NUBAN found in statement or email
// text, or "" when absent.
func ExtractAccountNumber(text string) string {
	return nubanPattern.FindString(text)
}

// Parse extracts transaction rows from a statement PDF. hint is surrounding
// email text used to locate the account number before decryption. Returns
// the parsed rows plus per-row errors; a malformed row never aborts the
// rest of the document.
func (p *Parser) Parse(ctx context.Context, pdfData []byte, hint string) ([]model.ParsedTransaction, []string, error) {
	account := ExtractAccountNumber(hint)
	if account == "" {
		return nil, nil, common.ErrNoAccountNumber
	}

	last4 := account[len(account)-4:]
	password, err := p.passwords.GetDecryptedPassword(ctx, last4)
	if err != nil {
		return nil, nil, fmt.Errorf("password lookup for account ending %s: %w", last4, err)
	}
	if password == "" {
		return nil, nil, fmt.Errorf("%w: account ending %s", common.ErrMissingPassword, last4)
	}

	pages, err := extractText(pdfData, password)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows      []model.ParsedTransaction
		rowErrors []string
	)
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if !rowDatePattern.MatchString(line) {
				continue
			}
			row, parseErr := parseRow(line)
			if parseErr != nil {
				rowErrors = append(rowErrors, fmt.Sprintf("row %q: %v", truncate(line, 80), parseErr))
				continue
			}
			row.AccountNumber = account
			rows = append(rows, *row)
		}
	}

	return rows, rowErrors, nil
}

// parseRow decodes one tabular statement line: date, narration, amount, and
// optionally a running balance. Direction comes from a CR/DR marker or a
// sign on the amount column; rows without either are ambiguous.
func parseRow(line string) (*model.ParsedTransaction, error) {
	dateStr := rowDatePattern.FindString(line)
	occurredAt, err := parseRowDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("unparseable date %q", dateStr)
	}

	rest := strings.TrimSpace(line[len(dateStr):])

	amountStr := ""
	if m := trailingAmounts.FindStringSubmatch(rest); m != nil {
		amountStr = m[1]
		rest = strings.TrimSpace(rest[:len(rest)-len(m[0])])
	} else if m := singleAmount.FindStringSubmatch(rest); m != nil {
		amountStr = m[1]
		rest = strings.TrimSpace(rest[:len(rest)-len(m[0])])
	} else {
		return nil, fmt.Errorf("no amount column")
	}

	direction := model.TransactionType("")
	if m := markerPattern.FindString(rest); m != "" {
		if m == "CR" {
			direction = model.TypeCredit
		} else {
			direction = model.TypeDebit
		}
		rest = strings.TrimSpace(markerPattern.ReplaceAllString(rest, ""))
	} else if strings.HasPrefix(amountStr, "-") {
		direction = model.TypeDebit
	}
	if direction == "" {
		return nil, fmt.Errorf("no direction marker")
	}

	minor, ok := bankparse.ParseAmountMinor(strings.TrimPrefix(amountStr, "-"))
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amountStr)
	}

	return &model.ParsedTransaction{
		OccurredAt:  occurredAt,
		Direction:   direction,
		Narration:   rest,
		AmountMinor: minor,
	}, nil
}

func parseRowDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range rowDateLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
