package sqlgen

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PercentagePlaces is the scale of investment_percentage values
const PercentagePlaces = 4

// Quote renders s as a SQL string literal. Empty strings become NULL.
func Quote(s string) string {
	if s == "" {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteArray renders values as a TEXT[] literal
func QuoteArray(values []string) string {
	if len(values) == 0 {
		return "ARRAY[]::TEXT[]"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return "ARRAY[" + strings.Join(quoted, ", ") + "]"
}

// Percentage returns amount as a share of total, in percent, rounded to
// PercentagePlaces. ok is false when total is not positive.
func Percentage(amount, total decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if !total.IsPositive() {
		return decimal.Zero, false
	}
	return amount.Mul(hundred).Div(total).Round(PercentagePlaces), true
}

// FormatMoney groups thousands and keeps two decimals, e.g. 800,000.00
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// comment makes s safe to embed in a single-line SQL comment
func comment(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
