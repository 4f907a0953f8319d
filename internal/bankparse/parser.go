// Package bankparse extracts structured transactions from bank alert emails.
// Parsing is pure: one email in, at most one transaction out, no I/O.
package bankparse

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/residio-ng/residio/internal/model"
	"github.com/residio-ng/residio/internal/service"
)

// Config narrows which emails are worth parsing.
type Config struct {
	// SenderDomains are mailbox domains that send bank alerts.
	SenderDomains []string
	// SubjectKeywords mark an email as a transaction alert.
	SubjectKeywords []string
}

// DefaultConfig returns the stock relevance filter.
func DefaultConfig() Config {
	return Config{
		SubjectKeywords: []string{
			"credit alert",
			"debit alert",
			"transaction alert",
			"transaction notification",
			"e-statement",
		},
	}
}

// Parser turns raw bank alert emails into parsed transactions.
type Parser struct {
	cfg Config
}

// NewParser creates a bank alert parser.
func NewParser(cfg Config) *Parser {
	if len(cfg.SubjectKeywords) == 0 {
		cfg.SubjectKeywords = DefaultConfig().SubjectKeywords
	}
	return &Parser{cfg: cfg}
}

// IsRelevant is a cheap pre-filter applied before full parsing. Non-bank
// mail is rejected on sender domain and subject keywords alone.
func (p *Parser) IsRelevant(email *service.RawEmail) bool {
	sender := senderDomain(email.Sender)
	for _, domain := range p.cfg.SenderDomains {
		d := strings.ToLower(domain)
		if sender == d || strings.HasSuffix(sender, "."+d) {
			return true
		}
	}

	subject := strings.ToLower(email.Subject)
	for _, keyword := range p.cfg.SubjectKeywords {
		if strings.Contains(subject, keyword) {
			return true
		}
	}
	return false
}

// senderDomain extracts the domain part of a From header, handling both
// bare addresses and "Display Name <addr>" forms.
func senderDomain(sender string) string {
	addr := strings.ToLower(strings.TrimSpace(sender))
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	return addr[at+1:]
}

var (
	creditPattern = regexp.MustCompile(`(?i)\b(credited|credit alert|\bCR\b)`)
	debitPattern  = regexp.MustCompile(`(?i)\b(debited|debit alert|\bDR\b)`)

	// Counterparty spans in alert narrations: "from JOHN A SMITH", "by ...",
	// "to ...". The span ends at punctuation, a keyword, or line end.
	fromPattern = regexp.MustCompile(`(?i)\b(?:from|by|sender:?)[\s:]+([A-Za-z][A-Za-z .'-]{2,60}?)(?:\s*(?:\.|,|;|\n|\bon\b|\bref\b|\bvia\b|\bwith\b|$))`)
	toPattern   = regexp.MustCompile(`(?i)\b(?:to|for|beneficiary:?)[\s:]+([A-Za-z][A-Za-z .'-]{2,60}?)(?:\s*(?:\.|,|;|\n|\bon\b|\bref\b|\bvia\b|$))`)

	refPattern     = regexp.MustCompile(`(?i)\b(?:ref(?:erence)?|session\s*id|transaction\s*id)[\s.:#-]*([A-Za-z0-9/-]{6,40})`)
	accountPattern = regexp.MustCompile(`(?i)\b(?:ac(?:coun)?t(?:\s*no)?)[\s.:#*]*(\d{10}|\*+\d{4})`)

	htmlTagPattern = regexp.MustCompile(`(?s)<[^>]+>`)

	// Timestamps seen across Nigerian bank alerts.
	dateLayouts = []string{
		"02-Jan-2006 15:04",
		"02-Jan-2006",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		"02/01/2006",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	datePattern = regexp.MustCompile(`\b(\d{1,2}[-/][A-Za-z]{3}[-/]\d{4}(?:\s+\d{2}:\d{2})?|\d{1,2}/\d{1,2}/\d{4}(?:\s+\d{2}:\d{2}(?::\d{2})?)?|\d{4}-\d{2}-\d{2}(?:\s+\d{2}:\d{2}(?::\d{2})?)?)\b`)
)

// Parse extracts one transaction from an alert email. It returns nil when
// amount or direction cannot be extracted with confidence: the caller marks
// the message failed, and no partial transaction is ever persisted.
func (p *Parser) Parse(email *service.RawEmail) *model.ParsedTransaction {
	text := stripHTML(email.Subject + "\n" + email.Body)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	amountMinor, ok := ExtractAmountMinor(text)
	if !ok {
		return nil
	}

	direction, ok := extractDirection(text)
	if !ok {
		return nil
	}

	txn := &model.ParsedTransaction{
		AmountMinor: amountMinor,
		Direction:   direction,
		Narration:   condense(text),
		OccurredAt:  email.ReceivedAt,
	}

	if m := refPattern.FindStringSubmatch(text); m != nil {
		txn.BankReference = m[1]
	}
	if m := accountPattern.FindStringSubmatch(text); m != nil {
		txn.AccountNumber = strings.TrimLeft(m[1], "*")
	}
	txn.Counterparty = extractCounterparty(text, direction)

	if m := datePattern.FindString(text); m != "" {
		if ts, err := parseTimestamp(m); err == nil {
			txn.OccurredAt = ts
		}
	}

	return txn
}

// extractDirection decides credit vs debit from the keyword sets. Alerts
// mentioning both (e.g. reversal summaries) are ambiguous and rejected.
func extractDirection(text string) (model.TransactionType, bool) {
	credit := creditPattern.MatchString(text)
	debit := debitPattern.MatchString(text)

	switch {
	case credit && !debit:
		return model.TypeCredit, true
	case debit && !credit:
		return model.TypeDebit, true
	}
	return "", false
}

// extractCounterparty pulls the other party's name out of the narration.
// Credits name a sender, debits a beneficiary. May be empty.
func extractCounterparty(text string, direction model.TransactionType) string {
	pattern := fromPattern
	if direction == model.TypeDebit {
		pattern = toPattern
	}
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// stripHTML reduces an HTML body to plain text.
func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

// condense collapses whitespace runs so narrations stay single-line.
func condense(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
