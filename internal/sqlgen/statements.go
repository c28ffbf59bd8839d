package sqlgen

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"investsql/internal/models"
	"investsql/internal/parser"
)

// PoolRef is how investment rows refer to their company pool
type PoolRef struct {
	mode  string
	value string
}

// ExistingPool refers to a pool by its purchase_id UUID
func ExistingPool(purchaseID string) PoolRef {
	return PoolRef{mode: models.PoolModeExisting, value: purchaseID}
}

// NewPool refers to the most recently created pool with the given name
func NewPool(name string) PoolRef {
	return PoolRef{mode: models.PoolModeNew, value: name}
}

// Mode returns models.PoolModeNew or models.PoolModeExisting
func (r PoolRef) Mode() string { return r.mode }

// Value returns the pool name or purchase id
func (r PoolRef) Value() string { return r.value }

// Expr renders the purchase_id expression used in investment inserts
func (r PoolRef) Expr() string {
	if r.mode == models.PoolModeNew {
		return "(SELECT purchase_id FROM public.company_pools WHERE pool_name = " + Quote(r.value) +
			" ORDER BY created_at DESC LIMIT 1)"
	}
	return Quote(r.value) + "::UUID"
}

// InvestorInsert upserts an investor keyed on email
func InvestorInsert(inv models.Investment) string {
	return fmt.Sprintf(`INSERT INTO public.investors (investor_name, email, phone, is_active, created_at)
VALUES (%s, %s, %s, true, NOW())
ON CONFLICT (email) DO UPDATE SET
    investor_name = EXCLUDED.investor_name,
    phone = COALESCE(EXCLUDED.phone, investors.phone),
    updated_at = NOW()
RETURNING investor_id;
`, Quote(inv.Name), Quote(inv.Email), Quote(inv.Phone))
}

// PoolInsert creates a company_pools row. A zero InvestorAmount is
// replaced by total.
func PoolInsert(pool models.Pool, total decimal.Decimal) string {
	investorAmount := pool.InvestorAmount
	if investorAmount.IsZero() {
		investorAmount = total
	}

	purchaseDate := "NULL::DATE"
	if pool.PurchaseDate != "" {
		purchaseDate = Quote(pool.PurchaseDate) + "::DATE"
	}

	values := []string{
		Quote(pool.DisplayName()),
		Quote(pool.Description),
		QuoteArray(pool.OwnerNames),
		QuoteArray(pool.VehicleNumbers),
		purchaseDate,
		pool.TotalCost.String(),
		pool.BankLoanAmount.String(),
		investorAmount.String(),
		pool.MonthlyEMI.String(),
		pool.EmergencyFundCollected.String(),
		pool.EmergencyFundCompanyShare.String(),
		pool.EmergencyFundInvestorShare.String(),
		pool.EmergencyFundRemaining.String(),
		"'Active'",
	}

	return `INSERT INTO public.company_pools (
    pool_name,
    description,
    owner_names,
    vehicle_numbers,
    purchase_date,
    total_cost,
    bank_loan_amount,
    investor_amount,
    monthly_emi,
    emergency_fund_collected,
    emergency_fund_company_share,
    emergency_fund_investor_share,
    emergency_fund_remaining,
    status
)
VALUES (
    ` + strings.Join(values, ",\n    ") + `
);
`
}

// InvestmentInsert links one investment to its investor (by email) and pool.
// The caller is responsible for skipping zero amounts.
func InvestmentInsert(inv models.Investment, ref PoolRef, pct decimal.Decimal) string {
	createdAt := "NOW()"
	if inv.ReceivedAt != nil {
		createdAt = Quote(parser.FormatTimestamp(*inv.ReceivedAt))
	}

	return fmt.Sprintf(`INSERT INTO public.investor_investments (
    investor_id,
    purchase_id,
    investment_amount,
    investment_percentage,
    created_at
)
SELECT
    i.investor_id,
    %s,
    %s,
    %s,
    %s
FROM public.investors i
WHERE i.email = %s
ON CONFLICT DO NOTHING;
`, ref.Expr(), inv.Amount.String(), pct.StringFixed(PercentagePlaces), createdAt, Quote(inv.Email))
}
