package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"investsql/internal/convert"
	"investsql/internal/logger"
	"investsql/internal/models"
	"investsql/internal/parser"
	"investsql/internal/roi"
	"investsql/internal/sqlgen"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var (
		input         string
		roiPct        string
		tdsPct        string
		emergencyFund string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show investor shares and data problems without writing SQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("input") {
				cfg.CSVFile = input
			}

			var decl *roi.Declaration
			if cmd.Flags().Changed("roi") {
				d, err := parseDeclaration(roiPct, tdsPct, emergencyFund)
				if err != nil {
					return err
				}
				decl = &d
			}

			log := logger.Default()
			c := &convert.Converter{Reader: parser.NewReceiptReader(log)}
			batch, warnings, err := c.Load(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File: %s\n", cfg.CSVFile)
			printSummary(out, batch)
			if batch.Len() == 0 {
				return nil
			}

			shares := sqlgen.Shares(batch)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INVESTOR\tEMAIL\tROWS\tAMOUNT\tSHARE %")
			for _, sh := range shares {
				email := sh.Email
				if email == "" {
					email = "(missing)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					truncate(sh.Name, 30), truncate(email, 40), sh.Rows,
					sqlgen.FormatMoney(sh.Amount), sh.Percentage.StringFixed(sqlgen.PercentagePlaces))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if decl != nil {
				if err := printPayouts(out, shares, *decl); err != nil {
					return err
				}
			}

			printWarnings(out, warnings)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Receipts CSV file")
	cmd.Flags().StringVar(&roiPct, "roi", "", "Project a quarterly payout at this ROI percentage")
	cmd.Flags().StringVar(&tdsPct, "tds", roi.DefaultTDSPercentage.String(), "TDS percentage withheld from the gross ROI")
	cmd.Flags().StringVar(&emergencyFund, "emergency-fund", "0", "Emergency fund amount deducted from the pool, split by share")
	return cmd
}

func parseDeclaration(roiPct, tdsPct, emergencyFund string) (roi.Declaration, error) {
	var d roi.Declaration
	var err error
	if d.ROIPercentage, err = decimal.NewFromString(roiPct); err != nil {
		return d, fmt.Errorf("invalid --roi %q: %w", roiPct, err)
	}
	if d.TDSPercentage, err = decimal.NewFromString(tdsPct); err != nil {
		return d, fmt.Errorf("invalid --tds %q: %w", tdsPct, err)
	}
	if d.EmergencyFund, err = parser.ParseAmount(emergencyFund); err != nil {
		return d, fmt.Errorf("invalid --emergency-fund: %w", err)
	}
	return d, d.Validate()
}

func printPayouts(out io.Writer, shares []models.Share, d roi.Declaration) error {
	payments, err := roi.Project(shares, d)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	headingColor.Fprintf(out, "[PAYOUT] ROI %s%%, TDS %s%%, emergency fund Rs. %s\n",
		d.ROIPercentage, d.TDSPercentage, sqlgen.FormatMoney(d.EmergencyFund))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INVESTOR\tINVESTED\tGROSS ROI\tEMERGENCY FUND\tTDS\tNET PAYABLE")
	row := func(name string, p roi.Payment) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", name,
			sqlgen.FormatMoney(p.Share.Amount), sqlgen.FormatMoney(p.Gross),
			sqlgen.FormatMoney(p.EmergencyFund), sqlgen.FormatMoney(p.TDS), sqlgen.FormatMoney(p.Net))
	}
	for _, p := range payments {
		row(truncate(p.Share.Name, 30), p)
	}
	row("TOTAL", roi.Total(payments))
	return tw.Flush()
}
