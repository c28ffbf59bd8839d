package parser

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"investsql/internal/models"
)

// TimestampLayout is the PostgreSQL TIMESTAMPTZ literal format emitted for receipt dates
const TimestampLayout = "2006-01-02 15:04:05+00"

// phoneErrorValue is what spreadsheet exports leave behind for broken formulas
const phoneErrorValue = "#ERROR!"

// dateLayouts are tried in order. Single-digit day and month are accepted.
var dateLayouts = []string{
	"2 January 2006", // 11 July 2024
	"2 Jan 2006",     // 11 Jul 2024
	"2-1-2006",       // 11-07-2024
	"2/1/2006",       // 11/07/2024
	"2006-1-2",       // 2024-07-11
}

// CleanPhone strips formatting characters from a phone number.
// Blank values and "#ERROR!" become "".
func CleanPhone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == phoneErrorValue {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '+', r == '(', r == ')', r == '-':
			return -1
		case unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)
}

// ParseAmount converts strings like "₹8,00,000" to a decimal.
// Blank input is zero. On error the returned amount is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '₹' || r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount %q", s)
	}
	return d, nil
}

// ParseDate parses a receipt date in any of the accepted layouts.
// ok is false for blank input.
func ParseDate(s string) (t time.Time, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("could not parse date %q", s)
}

// FormatTimestamp renders t as a UTC TIMESTAMPTZ literal body
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Normalize parses every receipt into an Investment and totals the batch.
// Unparseable amounts count as zero and unparseable dates as absent; each
// produces a warning.
func Normalize(receipts []models.Receipt) (models.Batch, []models.Warning) {
	var warnings []models.Warning
	batch := models.Batch{
		Investments: make([]models.Investment, 0, len(receipts)),
		Total:       decimal.Zero,
	}
	emails := make(map[string]bool)

	for _, r := range receipts {
		inv := models.Investment{
			Row:       r.Row,
			Name:      strings.TrimSpace(r.Name),
			Email:     strings.TrimSpace(r.Email),
			Phone:     CleanPhone(r.Phone),
			RawAmount: r.Amount,
		}

		amount, err := ParseAmount(r.Amount)
		if err != nil {
			warnings = append(warnings, models.Warning{Row: r.Row, Field: models.ColumnAmount, Message: err.Error()})
		}
		inv.Amount = amount

		if t, ok, err := ParseDate(r.Date); err != nil {
			warnings = append(warnings, models.Warning{Row: r.Row, Field: models.ColumnDate, Message: err.Error()})
		} else if ok {
			inv.ReceivedAt = &t
		}

		if inv.Email != "" {
			emails[inv.Email] = true
		}
		batch.Total = batch.Total.Add(inv.Amount)
		batch.Investments = append(batch.Investments, inv)
	}

	batch.UniqueInvestors = len(emails)
	return batch, warnings
}
