// Package roi projects quarterly ROI payouts for the investors of a pool.
package roi

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"investsql/internal/models"
)

// MoneyPlaces is the scale of every projected amount
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// DefaultTDSPercentage is the tax withheld on investor returns
var DefaultTDSPercentage = decimal.NewFromInt(10)

// Declaration is a quarterly ROI declared on a pool
type Declaration struct {
	ROIPercentage decimal.Decimal // quarterly return on the invested amount
	TDSPercentage decimal.Decimal // withheld from the gross return
	EmergencyFund decimal.Decimal // pool-wide deduction, split by share
}

// Validate rejects declarations that cannot produce a payout
func (d Declaration) Validate() error {
	var errs []error
	if !d.ROIPercentage.IsPositive() {
		errs = append(errs, fmt.Errorf("roi percentage must be positive, got %s", d.ROIPercentage))
	}
	if d.TDSPercentage.IsNegative() || d.TDSPercentage.GreaterThan(hundred) {
		errs = append(errs, fmt.Errorf("tds percentage must be between 0 and 100, got %s", d.TDSPercentage))
	}
	if d.EmergencyFund.IsNegative() {
		errs = append(errs, fmt.Errorf("emergency fund deduction cannot be negative, got %s", d.EmergencyFund))
	}
	return errors.Join(errs...)
}

// Payment is one investor's projected payout
type Payment struct {
	Share         models.Share
	Gross         decimal.Decimal
	EmergencyFund decimal.Decimal
	TDS           decimal.Decimal
	Net           decimal.Decimal
}

// Project computes a payment per share, in the order given. Gross is the
// investor amount times the ROI, the emergency fund is split by
// investment percentage, TDS is taken on gross, and net is what remains.
// Every amount is rounded to paise before it is used.
func Project(shares []models.Share, d Declaration) ([]Payment, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	payments := make([]Payment, 0, len(shares))
	for _, sh := range shares {
		gross := sh.Amount.Mul(d.ROIPercentage).Div(hundred).Round(MoneyPlaces)
		ef := d.EmergencyFund.Mul(sh.Percentage).Div(hundred).Round(MoneyPlaces)
		tds := gross.Mul(d.TDSPercentage).Div(hundred).Round(MoneyPlaces)
		payments = append(payments, Payment{
			Share:         sh,
			Gross:         gross,
			EmergencyFund: ef,
			TDS:           tds,
			Net:           gross.Sub(ef).Sub(tds),
		})
	}
	return payments, nil
}

// Total sums the amounts of payments
func Total(payments []Payment) Payment {
	var t Payment
	for _, p := range payments {
		t.Share.Amount = t.Share.Amount.Add(p.Share.Amount)
		t.Gross = t.Gross.Add(p.Gross)
		t.EmergencyFund = t.EmergencyFund.Add(p.EmergencyFund)
		t.TDS = t.TDS.Add(p.TDS)
		t.Net = t.Net.Add(p.Net)
	}
	return t
}
