package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"investsql/internal/models"
)

// PlaceholderPurchaseID marks a purchase id that was never filled in
const PlaceholderPurchaseID = "YOUR_PURCHASE_ID_HERE"

// Environment variables that override the config file
const (
	EnvCSV        = "INVESTSQL_CSV"
	EnvOutput     = "INVESTSQL_OUTPUT"
	EnvPurchaseID = "INVESTSQL_PURCHASE_ID"
	EnvDBPath     = "INVESTSQL_DB_PATH"
)

// Config holds everything a generation run needs besides the CSV rows.
type Config struct {
	CSVFile    string `yaml:"csv_file"`
	OutputFile string `yaml:"output_file"`

	// Attach investments to an existing company pool instead of creating one
	UseExistingPool    bool   `yaml:"use_existing_pool"`
	ExistingPurchaseID string `yaml:"existing_purchase_id"`

	// New pool settings, used when UseExistingPool is false
	Pool models.Pool `yaml:"pool"`

	// Local run history (sqlite)
	HistoryDB string `yaml:"history_db"`
}

// Default returns the settings the receipts importer has always shipped with.
func Default() *Config {
	return &Config{
		CSVFile:            "Anilsiva Investment Receipts - Investments.csv",
		OutputFile:         "generated_insert_queries.sql",
		UseExistingPool:    false,
		ExistingPurchaseID: PlaceholderPurchaseID,
		Pool: models.Pool{
			Name:           "Anilsiva Pool",
			Description:    "Pool for Anilsiva company investments",
			OwnerNames:     []string{"Anilsiva"},
			VehicleNumbers: []string{},
			PurchaseDate:   "2024-07-11",
		},
		HistoryDB: "./data/investsql.db",
	}
}

// Load reads a YAML config on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from INVESTSQL_* environment variables.
// A purchase id from the environment also selects the existing pool mode.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvCSV); v != "" {
		c.CSVFile = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		c.OutputFile = v
	}
	if v := os.Getenv(EnvPurchaseID); v != "" {
		c.ExistingPurchaseID = v
		c.UseExistingPool = true
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.HistoryDB = v
	}
}

// HasPurchaseID reports whether a real purchase id was configured
func (c *Config) HasPurchaseID() bool {
	return c.ExistingPurchaseID != "" && c.ExistingPurchaseID != PlaceholderPurchaseID
}

// Validate returns non-fatal problems with the configuration
func (c *Config) Validate() []models.Warning {
	var warnings []models.Warning
	add := func(field, format string, args ...any) {
		warnings = append(warnings, models.Warning{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.UseExistingPool {
		if !c.HasPurchaseID() {
			add("existing_purchase_id", "use_existing_pool is set but existing_purchase_id is not")
		} else if _, err := uuid.Parse(c.ExistingPurchaseID); err != nil {
			add("existing_purchase_id", "existing_purchase_id %q is not a UUID", c.ExistingPurchaseID)
		}
		return warnings
	}

	if c.Pool.Name == "" {
		add("pool.name", "pool name is empty; investments cannot be linked to the new pool")
	}
	if c.Pool.PurchaseDate != "" {
		if _, err := time.Parse("2006-01-02", c.Pool.PurchaseDate); err != nil {
			add("pool.purchase_date", "purchase_date %q is not YYYY-MM-DD", c.Pool.PurchaseDate)
		}
	}
	if len(c.Pool.OwnerNames) == 0 {
		add("pool.owner_names", "no owner names configured")
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"pool.total_cost", c.Pool.TotalCost},
		{"pool.bank_loan_amount", c.Pool.BankLoanAmount},
		{"pool.investor_amount", c.Pool.InvestorAmount},
		{"pool.monthly_emi", c.Pool.MonthlyEMI},
	} {
		if f.value.IsNegative() {
			add(f.name, "%s is negative (%s)", f.name, f.value)
		}
	}
	return warnings
}

// PoolMode returns models.PoolModeExisting or models.PoolModeNew
func (c *Config) PoolMode() string {
	if c.UseExistingPool {
		return models.PoolModeExisting
	}
	return models.PoolModeNew
}
