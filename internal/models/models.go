package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Well-known CSV column headers
const (
	ColumnName   = "Name"
	ColumnEmail  = "Email"
	ColumnPhone  = "Phone Number"
	ColumnAmount = "Amount"
	ColumnDate   = "Date"
)

// Receipt is one raw row of the investment receipts CSV
type Receipt struct {
	Row    int    // 1-based data row (header excluded)
	Name   string
	Email  string
	Phone  string
	Amount string // as entered, e.g. "₹8,00,000"
	Date   string // as entered, e.g. "11 July 2024"
	Extra  map[string]string
}

// Investment is a receipt with its fields normalized
type Investment struct {
	Row        int
	Name       string
	Email      string
	Phone      string // digits only, "" when unknown
	RawAmount  string
	Amount     decimal.Decimal
	ReceivedAt *time.Time
}

// HasEmail reports whether the investment can be linked to an investor row
func (i Investment) HasEmail() bool {
	return i.Email != ""
}

// DisplayName returns the investor name or "Unknown"
func (i Investment) DisplayName() string {
	if i.Name == "" {
		return "Unknown"
	}
	return i.Name
}

// DisplayAmount returns the amount as it appeared in the CSV, or "0"
func (i Investment) DisplayAmount() string {
	if i.RawAmount == "" {
		return "0"
	}
	return i.RawAmount
}

// Batch is the normalized content of one CSV file
type Batch struct {
	Investments     []Investment
	Total           decimal.Decimal
	UniqueInvestors int
}

// Len returns the number of rows in the batch
func (b Batch) Len() int {
	return len(b.Investments)
}

// Share is one investor's aggregated stake in the pool
type Share struct {
	Email      string
	Name       string
	Rows       int
	Amount     decimal.Decimal
	Percentage decimal.Decimal
}

// Warning is a non-fatal problem found while converting
type Warning struct {
	Row     int    // 0 when not tied to a row
	Field   string // column or setting name
	Message string
}

func (w Warning) String() string {
	if w.Row > 0 {
		return fmt.Sprintf("row %d: %s", w.Row, w.Message)
	}
	return w.Message
}

// Pool describes a company_pools record to create
type Pool struct {
	Name                       string          `yaml:"name"`
	Description                string          `yaml:"description"`
	OwnerNames                 []string        `yaml:"owner_names"`
	VehicleNumbers             []string        `yaml:"vehicle_numbers"`
	PurchaseDate               string          `yaml:"purchase_date"` // YYYY-MM-DD
	TotalCost                  decimal.Decimal `yaml:"total_cost"`
	BankLoanAmount             decimal.Decimal `yaml:"bank_loan_amount"`
	InvestorAmount             decimal.Decimal `yaml:"investor_amount"` // 0 means use the CSV total
	MonthlyEMI                 decimal.Decimal `yaml:"monthly_emi"`
	EmergencyFundCollected     decimal.Decimal `yaml:"emergency_fund_collected"`
	EmergencyFundCompanyShare  decimal.Decimal `yaml:"emergency_fund_company_share"`
	EmergencyFundInvestorShare decimal.Decimal `yaml:"emergency_fund_investor_share"`
	EmergencyFundRemaining     decimal.Decimal `yaml:"emergency_fund_remaining"`
}

// DisplayName returns the pool name, or "Unknown" when none is set
func (p Pool) DisplayName() string {
	if p.Name == "" {
		return "Unknown"
	}
	return p.Name
}

// Pool modes
const (
	PoolModeNew      = "new"
	PoolModeExisting = "existing"
)

// Run is a recorded generation run from the local history database
type Run struct {
	ID              int64
	RunID           string
	CSVPath         string
	OutputPath      string
	OutputSHA256    string
	Rows            int
	UniqueInvestors int
	Investments     int
	TotalAmount     string
	PoolMode        string // new, existing
	PoolRef         string // pool name or purchase id
	ArchiveName     string // copy of the script in the archive, if kept
	CreatedAt       time.Time
	Warnings        []Warning
}
