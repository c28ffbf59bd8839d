package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"investsql/internal/database"
	"investsql/internal/filestore"
	"investsql/internal/logger"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		limit      int
		historyDB  string
		showScript bool
		prune      int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List previous generation runs, or show one with its warnings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("history-db") {
				cfg.HistoryDB = historyDB
			}

			out := cmd.OutOrStdout()

			// Reading history never creates it
			if _, err := os.Stat(cfg.HistoryDB); errors.Is(err, fs.ErrNotExist) {
				if len(args) == 1 {
					return errors.New("run not found")
				}
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			db, err := database.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer db.Close()

			if cmd.Flags().Changed("prune") {
				return pruneHistory(out, db, prune)
			}

			if len(args) == 1 {
				run, err := db.GetRun(args[0])
				if err != nil {
					return err
				}
				if showScript {
					return printArchivedScript(out, cfg.HistoryDB, run.ArchiveName)
				}
				fmt.Fprintf(out, "Run:              %s\n", run.RunID)
				fmt.Fprintf(out, "Created:          %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "CSV:              %s\n", run.CSVPath)
				fmt.Fprintf(out, "Output:           %s\n", run.OutputPath)
				fmt.Fprintf(out, "SHA-256:          %s\n", run.OutputSHA256)
				fmt.Fprintf(out, "Rows:             %d\n", run.Rows)
				fmt.Fprintf(out, "Unique investors: %d\n", run.UniqueInvestors)
				fmt.Fprintf(out, "Investments:      %d\n", run.Investments)
				fmt.Fprintf(out, "Total amount:     %s\n", run.TotalAmount)
				fmt.Fprintf(out, "Pool:             %s (%s)\n", run.PoolRef, run.PoolMode)
				if run.ArchiveName != "" {
					fmt.Fprintf(out, "Archived script:  %s\n", run.ArchiveName)
				}
				printWarnings(out, run.Warnings)
				return nil
			}

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tCREATED\tROWS\tINVESTMENTS\tTOTAL\tPOOL\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					r.RunID, r.CreatedAt.Format("2006-01-02 15:04"), r.Rows, r.Investments,
					r.TotalAmount, truncate(r.PoolRef, 40), r.OutputPath)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().StringVar(&historyDB, "history-db", "", "Local run history database (or INVESTSQL_DB_PATH env)")
	cmd.Flags().BoolVar(&showScript, "script", false, "Print the archived SQL script of the run")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the N most recent runs and their archived scripts")
	cmd.MarkFlagsMutuallyExclusive("prune", "script")
	return cmd
}

func printArchivedScript(out io.Writer, dbPath, name string) error {
	if name == "" {
		return errors.New("no archived script for this run")
	}
	store, err := filestore.New(filestore.ArchiveDir(dbPath))
	if err != nil {
		return err
	}
	f, err := store.Get(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(out, f)
	return err
}

func pruneHistory(out io.Writer, db *database.DB, keep int) error {
	if keep < 0 {
		keep = 0
	}
	deleted, err := db.PruneRuns(keep)
	if err != nil {
		return err
	}
	store, err := filestore.New(filestore.ArchiveDir(db.Path))
	if err != nil {
		return err
	}
	for _, r := range deleted {
		if err := store.Delete(r.ArchiveName); err != nil {
			logger.Default().Warn("archive_delete_failed", "run_id", r.RunID, "error", err.Error())
		}
	}
	printOK(out, "Pruned %d runs, kept the %d most recent", len(deleted), keep)
	return nil
}
