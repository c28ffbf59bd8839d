package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"investsql/internal/config"
	"investsql/internal/logger"
	"investsql/internal/models"
	"investsql/internal/parser"
	"investsql/internal/sqlgen"
)

// Confirmer asks the operator a yes/no question
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// History records finished runs
type History interface {
	RecordRun(run *models.Run) (int64, error)
}

// Archiver keeps a copy of each written script
type Archiver interface {
	Save(runID, filename string, r io.Reader) (string, error)
}

// Observer follows a Run, e.g. to print progress on a console
type Observer interface {
	// Loaded is called once the CSV is read, before the pool is resolved.
	// An empty batch ends the run right after.
	Loaded(cfg *config.Config, batch models.Batch)
	PoolResolved(opts sqlgen.Options)
}

// Result summarizes one conversion
type Result struct {
	RunID    string
	Batch    models.Batch
	Script   *sqlgen.Script
	Pool     sqlgen.Options
	Output   string
	SHA256   string
	Archived string           // archive name, empty when not archived
	Warnings []models.Warning // config, normalization and generation, in that order
}

// Converter turns a receipts CSV into an SQL upload script
type Converter struct {
	Reader    *parser.ReceiptReader
	Generator *sqlgen.Generator
	Confirmer Confirmer
	History   History  // optional
	Archive   Archiver // optional
	Observer  Observer // optional
}

// Load reads and normalizes the CSV named by cfg
func (c *Converter) Load(ctx context.Context, cfg *config.Config) (models.Batch, []models.Warning, error) {
	receipts, err := c.Reader.ReadFile(cfg.CSVFile)
	if err != nil {
		return models.Batch{}, nil, fmt.Errorf("read receipts: %w", err)
	}
	batch, warnings := parser.Normalize(receipts)
	for _, w := range warnings {
		logger.Ctx(ctx).Warn("receipt_normalize_warning", "row", w.Row, "field", w.Field, "message", w.Message)
	}
	return batch, warnings, nil
}

// ResolvePool decides how investments attach to a pool. When an existing
// pool is requested without a usable purchase id, the operator may switch
// to creating the configured pool instead.
func (c *Converter) ResolvePool(ctx context.Context, cfg *config.Config) (sqlgen.Options, error) {
	log := logger.Ctx(ctx)
	if !cfg.UseExistingPool {
		pool := cfg.Pool
		log.Info("pool_resolved", "mode", cfg.PoolMode(), "pool_name", pool.DisplayName())
		return sqlgen.Options{NewPool: &pool}, nil
	}
	if cfg.HasPurchaseID() {
		log.Info("pool_resolved", "mode", cfg.PoolMode(), "purchase_id", cfg.ExistingPurchaseID)
		return sqlgen.Options{PurchaseID: cfg.ExistingPurchaseID}, nil
	}

	log.Warn("purchase_id_missing", "mode", cfg.PoolMode())
	if c.Confirmer == nil {
		return sqlgen.Options{}, sqlgen.ErrNoPool
	}
	ok, err := c.Confirmer.Confirm("Do you want to create a new pool instead?")
	if err != nil {
		return sqlgen.Options{}, err
	}
	if !ok {
		return sqlgen.Options{}, fmt.Errorf("create new pool declined: %w", sqlgen.ErrNoPool)
	}
	pool := cfg.Pool
	return sqlgen.Options{NewPool: &pool}, nil
}

// Run performs a full conversion and writes cfg.OutputFile
func (c *Converter) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	ctx = ensureRunID(ctx)
	warnings := cfg.Validate()

	batch, normWarnings, err := c.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, normWarnings...)
	if c.Observer != nil {
		c.Observer.Loaded(cfg, batch)
	}

	if batch.Len() == 0 {
		// Nothing to upload; no script is written
		return &Result{RunID: logger.RunIDFromContext(ctx), Batch: batch, Output: cfg.OutputFile, Warnings: warnings}, nil
	}

	opts, err := c.ResolvePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if c.Observer != nil {
		c.Observer.PoolResolved(opts)
	}
	return c.Emit(ctx, cfg, batch, opts, warnings)
}

// Emit generates the script for an already loaded batch, writes it to
// cfg.OutputFile and records the run. warnings are carried into the result
// ahead of the generator's own.
func (c *Converter) Emit(ctx context.Context, cfg *config.Config, batch models.Batch, opts sqlgen.Options, warnings []models.Warning) (*Result, error) {
	ctx = ensureRunID(ctx)
	log := logger.Ctx(ctx)
	res := &Result{
		RunID:    logger.RunIDFromContext(ctx),
		Batch:    batch,
		Pool:     opts,
		Output:   cfg.OutputFile,
		Warnings: append([]models.Warning(nil), warnings...),
	}

	script, err := c.Generator.Generate(batch, opts)
	if err != nil {
		return nil, fmt.Errorf("generate sql: %w", err)
	}
	res.Script = script
	res.Warnings = append(res.Warnings, script.Warnings...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.WriteFile(cfg.OutputFile, []byte(script.Text), 0644); err != nil {
		return nil, fmt.Errorf("write sql file: %w", err)
	}
	sum := sha256.Sum256([]byte(script.Text))
	res.SHA256 = hex.EncodeToString(sum[:])
	log.Info("sql_written", "path", cfg.OutputFile, "bytes", len(script.Text), "sha256", res.SHA256)

	if c.Archive != nil {
		name, err := c.Archive.Save(res.RunID, cfg.OutputFile, strings.NewReader(script.Text))
		if err != nil {
			log.Error("script_archive_failed", "error", err.Error())
		} else {
			res.Archived = name
		}
	}

	if c.History != nil {
		run := &models.Run{
			RunID:           res.RunID,
			CSVPath:         cfg.CSVFile,
			OutputPath:      cfg.OutputFile,
			OutputSHA256:    res.SHA256,
			Rows:            batch.Len(),
			UniqueInvestors: batch.UniqueInvestors,
			Investments:     script.Investments,
			TotalAmount:     batch.Total.String(),
			PoolMode:        script.PoolRef.Mode(),
			PoolRef:         script.PoolRef.Value(),
			ArchiveName:     res.Archived,
			Warnings:        res.Warnings,
		}
		// The script is already on disk; history and archive failures are only logged
		if _, err := c.History.RecordRun(run); err != nil {
			log.Error("history_record_failed", "error", err.Error())
		}
	}

	return res, nil
}

func ensureRunID(ctx context.Context) context.Context {
	if logger.RunIDFromContext(ctx) != "" {
		return ctx
	}
	return logger.WithRunID(ctx, logger.NewRunID())
}
