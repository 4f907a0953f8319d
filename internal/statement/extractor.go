// Package statement parses password-protected bank PDF statements into
// transaction rows.
package statement

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/residio-ng/residio/internal/common"
)

// extractText pulls per-page text out of a PDF, decrypting with the given
// password when the document is protected. A wrong password is reported as
// common.ErrWrongPassword, distinct from unreadable content.
func extractText(data []byte, password string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf extraction panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
		return password
	})
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, common.ErrWrongPassword
		}
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, common.ErrUnreadablePDF
	}

	pages = extractByRow(reader, numPages)
	if !isReadableText(pages) {
		pages = extractByContent(reader, numPages)
	}
	if !isReadableText(pages) {
		return nil, common.ErrUnreadablePDF
	}
	return pages, nil
}

// extractByRow uses the library's row grouping, which preserves tabular
// layout on well-structured statements.
func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent reconstructs rows from raw text coordinates: group by Y,
// sort by X. Fallback for statements the row extractor mangles.
func extractByContent(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		type textItem struct {
			s string
			x float64
		}
		rowMap := make(map[int][]textItem)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			yKey := int(math.Round(t.Y))
			rowMap[yKey] = append(rowMap[yKey], textItem{x: t.X, s: t.S})
		}

		yKeys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			yKeys = append(yKeys, y)
		}
		// PDF Y runs bottom-to-top
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		var lines []string
		for _, y := range yKeys {
			items := rowMap[y]
			sort.Slice(items, func(a, b int) bool {
				return items[a].x < items[b].x
			})

			var parts []string
			var prevX float64
			for j, item := range items {
				if j > 0 && item.x-prevX > 15 {
					parts = append(parts, "  ")
				}
				parts = append(parts, item.s)
				prevX = item.x
			}
			line := strings.TrimSpace(strings.Join(parts, ""))
			if line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// isReadableText guards against garbage from identity-encoded fonts:
// enough characters, mostly readable ASCII, and at least one word a bank
// statement would contain.
func isReadableText(pages []string) bool {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || r == ' ' || r == '\n' || r == '\t' ||
				strings.ContainsRune(".,-/:;()'\"₦$%&@#!?+=*", r) {
				readable++
			}
		}
	}
	if total <= 50 {
		return false
	}
	if float64(readable)/float64(total) <= 0.6 {
		return false
	}

	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range []string{"account", "balance", "statement", "date", "credit", "debit", "transaction", "amount"} {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}
