package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"investsql/internal/config"
	"investsql/internal/logger"
	"investsql/internal/version"
)

// defaultConfigFile is picked up from the working directory when --config is not given
const defaultConfigFile = "investsql.yaml"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "investsql",
		Short: "Convert investment receipt CSVs into SQL upload scripts",
		Long: `Reads an investment receipts CSV (Name, Email, Phone Number, Amount, Date),
normalizes amounts, dates and phone numbers, and writes a SQL script that
upserts investors and inserts their pool investments with percentage shares.
The script is meant to be reviewed and executed manually.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(opts.logLevel)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default ./"+defaultConfigFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (or LOG_LEVEL env)")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newInspectCmd(opts),
		newHistoryCmd(opts),
		newInitConfigCmd(),
		newVersionCmd(),
	)

	return cmd
}

// loadConfig resolves file, environment and defaults, in that order of precedence
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, err
		}
		cfg = loaded
		logger.Default().Info("config_loaded", "path", path)
	}
	cfg.ApplyEnv()
	return cfg, nil
}
