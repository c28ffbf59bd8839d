package sqlgen

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"investsql/internal/models"
)

// ErrNoPool is returned when neither a new pool nor a purchase id was given
var ErrNoPool = errors.New("no purchase_id provided and no new pool requested")

// EmptyScript is the whole output for a CSV without rows
const EmptyScript = "-- No investments to process\n"

const rule = "-- =====================================================\n"

// Options selects how investments are attached to a pool. Exactly one of
// NewPool and PurchaseID should be set; NewPool wins when both are.
type Options struct {
	NewPool    *models.Pool
	PurchaseID string
}

// Script is a generated SQL script and what went into it
type Script struct {
	Text        string
	PoolRef     PoolRef
	Investors   int // investor upserts emitted
	Investments int // investment inserts emitted
	Skipped     int // rows without an investment insert
	Warnings    []models.Warning
}

// Generator assembles the SQL script for a batch
type Generator struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewGenerator creates a generator. A nil logger uses slog's default.
func NewGenerator(l *slog.Logger) *Generator {
	if l == nil {
		l = slog.Default()
	}
	return &Generator{now: time.Now, logger: l}
}

// WithClock overrides the generation timestamp source
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate renders the full transaction: optional pool creation, investor
// upserts deduplicated by email, then one investment per row.
func (g *Generator) Generate(batch models.Batch, opts Options) (*Script, error) {
	if batch.Len() == 0 {
		return &Script{Text: EmptyScript}, nil
	}

	s := &Script{}
	switch {
	case opts.NewPool != nil:
		s.PoolRef = NewPool(opts.NewPool.DisplayName())
	case opts.PurchaseID != "":
		s.PoolRef = ExistingPool(opts.PurchaseID)
	default:
		return nil, ErrNoPool
	}

	var b strings.Builder

	b.WriteString(rule)
	b.WriteString("-- GENERATED SQL QUERIES FOR INVESTMENT UPLOAD\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "-- Generated on: %s\n", g.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "-- Total investments: %d\n", batch.Len())
	fmt.Fprintf(&b, "-- Total investment amount: ₹%s\n", FormatMoney(batch.Total))
	b.WriteString(rule)
	b.WriteString("\nBEGIN;\n\n")

	if opts.NewPool != nil {
		b.WriteString("-- Step 0: Create New Pool\n")
		b.WriteString(rule)
		fmt.Fprintf(&b, "\n-- Create new pool: %s\n", comment(opts.NewPool.DisplayName()))
		b.WriteString(PoolInsert(*opts.NewPool, batch.Total))
		b.WriteString("\n")
	}

	b.WriteString("-- Step 1: Insert/Update Investors\n")
	b.WriteString(rule)

	seen := make(map[string]bool)
	for idx, inv := range batch.Investments {
		if !inv.HasEmail() {
			s.warn(inv.Row, models.ColumnEmail, fmt.Sprintf("no email for %s; investor not created and investment cannot be linked", inv.DisplayName()))
			continue
		}
		if seen[inv.Email] {
			continue
		}
		seen[inv.Email] = true
		fmt.Fprintf(&b, "\n-- Investor %d: %s\n", idx+1, comment(inv.DisplayName()))
		b.WriteString(InvestorInsert(inv))
		s.Investors++
	}

	b.WriteString("\n\n-- Step 2: Insert Investments\n")
	b.WriteString(rule)

	for idx, inv := range batch.Investments {
		fmt.Fprintf(&b, "\n-- Investment %d: %s - %s\n", idx+1, comment(inv.DisplayName()), comment(inv.DisplayAmount()))

		if inv.Amount.IsZero() {
			s.warn(inv.Row, models.ColumnAmount, fmt.Sprintf("investment amount is 0 for %s; skipped", inv.DisplayName()))
			s.Skipped++
			continue
		}

		pct, ok := Percentage(inv.Amount, batch.Total)
		if !ok {
			s.warn(inv.Row, models.ColumnAmount, "total pool investment is 0, cannot calculate percentage")
		}
		b.WriteString(InvestmentInsert(inv, s.PoolRef, pct))
		s.Investments++
	}

	b.WriteString("\n\nCOMMIT;\n")
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("-- END OF GENERATED QUERIES\n")
	b.WriteString(rule)

	s.Text = b.String()

	for _, w := range s.Warnings {
		g.logger.Warn("sql_generation_warning", "row", w.Row, "field", w.Field, "message", w.Message)
	}
	g.logger.Info("sql_generated",
		"pool_mode", s.PoolRef.Mode(),
		"investors", s.Investors,
		"investments", s.Investments,
		"skipped", s.Skipped,
	)

	return s, nil
}

func (s *Script) warn(row int, field, msg string) {
	s.Warnings = append(s.Warnings, models.Warning{Row: row, Field: field, Message: msg})
}

// Shares aggregates the batch per investor email, largest stake first.
// Rows without an email are grouped under an empty email.
func Shares(batch models.Batch) []models.Share {
	byEmail := make(map[string]*models.Share)
	var order []string
	for _, inv := range batch.Investments {
		sh, ok := byEmail[inv.Email]
		if !ok {
			sh = &models.Share{Email: inv.Email, Name: inv.DisplayName()}
			byEmail[inv.Email] = sh
			order = append(order, inv.Email)
		}
		sh.Rows++
		sh.Amount = sh.Amount.Add(inv.Amount)
	}

	shares := make([]models.Share, 0, len(order))
	for _, email := range order {
		sh := byEmail[email]
		sh.Percentage, _ = Percentage(sh.Amount, batch.Total)
		shares = append(shares, *sh)
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Amount.GreaterThan(shares[j].Amount)
	})
	return shares
}
