package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"investsql/internal/config"
	"investsql/internal/convert"
	"investsql/internal/database"
	"investsql/internal/filestore"
	"investsql/internal/logger"
	"investsql/internal/models"
	"investsql/internal/parser"
	"investsql/internal/prompt"
	"investsql/internal/sqlgen"
)

type generateOptions struct {
	input          string
	output         string
	purchaseID     string
	newPool        bool
	poolName       string
	historyDB      string
	noHistory      bool
	nonInteractive bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the SQL upload script from a receipts CSV",
		Long: `Reads the receipts CSV, prints a summary and writes INSERT statements for
public.investors and public.investor_investments. By default a new
public.company_pools row is created first; pass --purchase-id to attach the
investments to an existing pool instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runGenerate(cmd, cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "Receipts CSV file")
	f.StringVarP(&opts.output, "output", "o", "", "SQL file to write")
	f.StringVar(&opts.purchaseID, "purchase-id", "", "Attach investments to the existing pool with this purchase_id (UUID)")
	f.BoolVar(&opts.newPool, "new-pool", false, "Create a new pool from the config even if use_existing_pool is set")
	f.StringVar(&opts.poolName, "pool-name", "", "Name of the new pool")
	f.StringVar(&opts.historyDB, "history-db", "", "Local run history database (or INVESTSQL_DB_PATH env)")
	f.BoolVar(&opts.noHistory, "no-history", false, "Do not record this run in the local history")
	f.BoolVar(&opts.nonInteractive, "non-interactive", false, "Never prompt; fail if the pool cannot be resolved")
	cmd.MarkFlagsMutuallyExclusive("purchase-id", "new-pool")

	return cmd
}

// apply overrides cfg with flags the user actually set
func (o *generateOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		cfg.CSVFile = o.input
	}
	if f.Changed("output") {
		cfg.OutputFile = o.output
	}
	if f.Changed("purchase-id") {
		cfg.UseExistingPool = true
		cfg.ExistingPurchaseID = o.purchaseID
	}
	if o.newPool {
		cfg.UseExistingPool = false
	}
	if f.Changed("pool-name") {
		cfg.Pool.Name = o.poolName
	}
	if f.Changed("history-db") {
		cfg.HistoryDB = o.historyDB
	}
}

func runGenerate(cmd *cobra.Command, cfg *config.Config, opts *generateOptions) error {
	out := cmd.OutOrStdout()
	log := logger.Default()
	runID := logger.NewRunID()
	ctx := logger.WithRunID(cmd.Context(), runID)
	ctx = logger.WithLogger(ctx, log.With("run_id", runID, "command", "generate"))

	printBanner(out, "CSV to SQL Upload Script for Investment Receipts")
	fmt.Fprintln(out)

	prompter := prompt.Stdio(opts.nonInteractive)
	c := &convert.Converter{
		Reader:    parser.NewReceiptReader(log),
		Generator: sqlgen.NewGenerator(log),
		Confirmer: prompter,
		Observer:  &consoleObserver{out: out, interactive: prompter.Interactive()},
	}

	if !opts.noHistory && cfg.HistoryDB != "" {
		db, err := database.Open(cfg.HistoryDB)
		if err != nil {
			// History is a convenience; the conversion still runs without it
			printWarning(out, "Run history disabled: %v", err)
		} else {
			defer db.Close()
			c.History = db
			if store, err := filestore.New(filestore.ArchiveDir(cfg.HistoryDB)); err != nil {
				printWarning(out, "Script archive disabled: %v", err)
			} else {
				c.Archive = store
			}
		}
	}

	fmt.Fprintf(out, "Reading CSV file: %s\n", cfg.CSVFile)
	res, err := c.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if res.Script == nil {
		fmt.Fprintln(out, "No data to process. Exiting...")
		return nil
	}

	printOK(out, "SQL queries written to: %s", res.Output)
	printWarnings(out, res.Warnings)

	fmt.Fprintln(out)
	printBanner(out, "[SUCCESS] Done!")
	printNextSteps(out, res)
	return nil
}

// consoleObserver prints pipeline progress for generate
type consoleObserver struct {
	out         io.Writer
	interactive bool
}

func (o *consoleObserver) Loaded(cfg *config.Config, batch models.Batch) {
	printOK(o.out, "Successfully read %d rows from CSV", batch.Len())
	if batch.Len() == 0 {
		return
	}
	printSummary(o.out, batch)

	if cfg.UseExistingPool && !cfg.HasPurchaseID() {
		printWarning(o.out, "Configuration: use_existing_pool is set but existing_purchase_id is not!")
		fmt.Fprintln(o.out)
		fmt.Fprintln(o.out, "Options:")
		fmt.Fprintln(o.out, "1. Set use_existing_pool: false (or pass --new-pool) to create a new pool")
		fmt.Fprintln(o.out, "2. Set existing_purchase_id (or pass --purchase-id) to an existing pool UUID")
		fmt.Fprintln(o.out)
		if !o.interactive {
			fmt.Fprintln(o.out, "Not running on a terminal; cannot ask to create a new pool instead.")
		}
	}
}

func (o *consoleObserver) PoolResolved(opts sqlgen.Options) {
	if opts.NewPool != nil {
		printOK(o.out, "Will create new pool: %s", opts.NewPool.DisplayName())
	} else {
		printOK(o.out, "Using existing pool: %s", opts.PurchaseID)
	}
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, "Generating SQL queries...")
}

func printSummary(out io.Writer, batch models.Batch) {
	fmt.Fprintln(out)
	headingColor.Fprintln(out, "[SUMMARY]")
	fmt.Fprintf(out, "   Total rows: %d\n", batch.Len())
	fmt.Fprintf(out, "   Unique investors: %d\n", batch.UniqueInvestors)
	fmt.Fprintf(out, "   Total investment amount: Rs. %s\n", sqlgen.FormatMoney(batch.Total))
	fmt.Fprintln(out)
}

func printNextSteps(out io.Writer, res *convert.Result) {
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "1. Review the generated SQL file: %s\n", res.Output)
	if res.Pool.NewPool != nil {
		fmt.Fprintf(out, "2. The script will create a new pool: %s\n", res.Pool.NewPool.DisplayName())
	} else {
		fmt.Fprintf(out, "2. Using existing pool: %s\n", res.Pool.PurchaseID)
	}
	fmt.Fprintln(out, "3. Execute the SQL in your Supabase SQL Editor")
	fmt.Fprintln(out, "4. Verify the data was inserted correctly")
	fmt.Fprintf(out, "   Run id: %s\n", res.RunID)
	if res.Archived != "" {
		fmt.Fprintf(out, "   Archived copy: investsql history %s --script\n", res.RunID)
	}
	fmt.Fprintln(out)
}
