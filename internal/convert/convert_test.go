package convert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investsql/internal/config"
	"investsql/internal/database"
	"investsql/internal/filestore"
	"investsql/internal/logger"
	"investsql/internal/models"
	"investsql/internal/parser"
	"investsql/internal/prompt"
	"investsql/internal/sqlgen"
)

const receiptsCSV = "Name,Email,Phone Number,Amount,Date\n" +
	"Ravi Kumar,ravi@example.com,+91 98765 43210,\"₹6,00,000\",11 July 2024\n" +
	"Meena O'Brien,meena@example.com,#ERROR!,\"₹2,00,000\",12/07/2024\n" +
	"Ravi Kumar,ravi@example.com,,\"₹2,00,000\",not a date\n"

type fakeConfirmer struct {
	answer bool
	err    error
	asked  []string
}

func (f *fakeConfirmer) Confirm(q string) (bool, error) {
	f.asked = append(f.asked, q)
	return f.answer, f.err
}

type fakeHistory struct {
	runs []*models.Run
	err  error
}

func (f *fakeHistory) RecordRun(run *models.Run) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.runs = append(f.runs, run)
	return int64(len(f.runs)), nil
}

func newConverter() *Converter {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Converter{
		Reader: parser.NewReceiptReader(l),
		Generator: sqlgen.NewGenerator(l).WithClock(func() time.Time {
			return time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)
		}),
	}
}

func testConfig(t *testing.T, csv string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.CSVFile = filepath.Join(dir, "receipts.csv")
	cfg.OutputFile = filepath.Join(dir, "out.sql")
	require.NoError(t, os.WriteFile(cfg.CSVFile, []byte(csv), 0644))
	return cfg
}

func TestRun_NewPool(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	hist := &fakeHistory{}
	c := newConverter()
	c.History = hist

	res, err := c.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Batch.Len())
	assert.Equal(t, 2, res.Batch.UniqueInvestors)
	assert.Equal(t, "1000000", res.Batch.Total.String())
	require.NotNil(t, res.Pool.NewPool)
	assert.Equal(t, "Anilsiva Pool", res.Pool.NewPool.Name)
	assert.Len(t, res.SHA256, 64)

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	text := string(data)
	assert.Equal(t, res.Script.Text, text)
	assert.Contains(t, text, "INSERT INTO public.company_pools")
	assert.Equal(t, 2, strings.Count(text, "INSERT INTO public.investors"))
	assert.Equal(t, 3, strings.Count(text, "INSERT INTO public.investor_investments"))
	assert.Contains(t, text, "'Meena O''Brien'")
	assert.Contains(t, text, "'919876543210'")
	assert.Contains(t, text, "'2024-07-12 00:00:00+00'")

	// Unparseable date on row 3
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 3, res.Warnings[0].Row)
	assert.Equal(t, models.ColumnDate, res.Warnings[0].Field)

	require.Len(t, hist.runs, 1)
	run := hist.runs[0]
	assert.Equal(t, res.RunID, run.RunID)
	assert.Equal(t, models.PoolModeNew, run.PoolMode)
	assert.Equal(t, "Anilsiva Pool", run.PoolRef)
	assert.Equal(t, 3, run.Investments)
	assert.Equal(t, res.SHA256, run.OutputSHA256)
}

func TestRun_ExistingPool(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	cfg.UseExistingPool = true
	cfg.ExistingPurchaseID = "6f1c1d2e-8e0b-4c1a-9a53-2a4b1c0d9e8f"

	ctx := logger.WithRunID(context.Background(), "fixed-run")
	res, err := newConverter().Run(ctx, cfg)
	require.NoError(t, err)

	assert.Equal(t, "fixed-run", res.RunID)
	assert.Nil(t, res.Pool.NewPool)
	assert.NotContains(t, res.Script.Text, "company_pools (")
	assert.Equal(t, 3, strings.Count(res.Script.Text, "'6f1c1d2e-8e0b-4c1a-9a53-2a4b1c0d9e8f'::UUID"))
}

func TestRun_PlaceholderPurchaseID_SwitchToNewPool(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	cfg.UseExistingPool = true

	conf := &fakeConfirmer{answer: true}
	c := newConverter()
	c.Confirmer = conf

	res, err := c.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, conf.asked, 1)
	assert.Equal(t, "Do you want to create a new pool instead?", conf.asked[0])
	require.NotNil(t, res.Pool.NewPool)
	assert.Contains(t, res.Script.Text, "-- Step 0: Create New Pool")

	// Config warning comes first
	assert.Equal(t, "existing_purchase_id", res.Warnings[0].Field)
}

func TestRun_PlaceholderPurchaseID_Declined(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	cfg.UseExistingPool = true

	c := newConverter()
	c.Confirmer = &fakeConfirmer{answer: false}

	_, err := c.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, sqlgen.ErrNoPool)
	assert.NoFileExists(t, cfg.OutputFile)
}

func TestRun_PlaceholderPurchaseID_NonInteractive(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	cfg.UseExistingPool = true

	c := newConverter()
	c.Confirmer = prompt.New(strings.NewReader("yes\n"), io.Discard, false)

	_, err := c.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, prompt.ErrAborted)

	c.Confirmer = nil
	_, err = c.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, sqlgen.ErrNoPool)
}

func TestRun_EmptyCSV(t *testing.T) {
	cfg := testConfig(t, "Name,Email,Phone Number,Amount,Date\n,,,,\n")
	hist := &fakeHistory{}
	c := newConverter()
	c.History = hist

	res, err := c.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Batch.Len())
	assert.Nil(t, res.Script)
	assert.NoFileExists(t, cfg.OutputFile)
	assert.Empty(t, hist.runs)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) Loaded(cfg *config.Config, batch models.Batch) {
	o.events = append(o.events, "loaded:"+strings.Repeat("r", batch.Len()))
}

func (o *recordingObserver) PoolResolved(opts sqlgen.Options) {
	o.events = append(o.events, "pool:"+opts.PurchaseID)
}

func TestRun_NotifiesObserver(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	cfg.UseExistingPool = true
	cfg.ExistingPurchaseID = "6f1c1d2e-8e0b-4c1a-9a53-2a4b1c0d9e8f"
	obs := &recordingObserver{}
	c := newConverter()
	c.Observer = obs

	_, err := c.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"loaded:rrr", "pool:6f1c1d2e-8e0b-4c1a-9a53-2a4b1c0d9e8f"}, obs.events)

	// An empty CSV stops after Loaded
	obs.events = nil
	require.NoError(t, os.WriteFile(cfg.CSVFile, []byte("Name,Email,Amount\n"), 0644))
	_, err = c.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"loaded:"}, obs.events)

	// Declining the new pool never reaches PoolResolved
	obs.events = nil
	require.NoError(t, os.WriteFile(cfg.CSVFile, []byte(receiptsCSV), 0644))
	cfg.ExistingPurchaseID = config.PlaceholderPurchaseID
	c.Confirmer = &fakeConfirmer{answer: false}
	_, err = c.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, sqlgen.ErrNoPool)
	assert.Equal(t, []string{"loaded:rrr"}, obs.events)
}

func TestRun_MissingCSV(t *testing.T) {
	cfg := config.Default()
	cfg.CSVFile = filepath.Join(t.TempDir(), "missing.csv")

	_, err := newConverter().Run(context.Background(), cfg)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_HistoryFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	c := newConverter()
	c.History = &fakeHistory{err: errors.New("disk full")}

	res, err := c.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.FileExists(t, res.Output)
}

func TestRun_CancelledBeforeWrite(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newConverter().Run(ctx, cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, cfg.OutputFile)
}

func TestRun_RecordsToSQLiteHistory(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := filestore.New(filestore.ArchiveDir(dbPath))
	require.NoError(t, err)

	c := newConverter()
	c.History = db
	c.Archive = store

	res, err := c.Run(context.Background(), cfg)
	require.NoError(t, err)

	run, err := db.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, cfg.CSVFile, run.CSVPath)
	assert.Equal(t, 3, run.Rows)
	assert.Equal(t, 2, run.UniqueInvestors)
	require.Len(t, run.Warnings, 1)
	assert.Equal(t, models.ColumnDate, run.Warnings[0].Field)

	assert.Equal(t, res.RunID+".sql", run.ArchiveName)
	archived, err := os.ReadFile(store.FullPath(run.ArchiveName))
	require.NoError(t, err)
	assert.Equal(t, res.Script.Text, string(archived))
}

type failingArchive struct{}

func (failingArchive) Save(string, string, io.Reader) (string, error) {
	return "", errors.New("read-only")
}

func TestRun_ArchiveFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t, receiptsCSV)
	hist := &fakeHistory{}
	c := newConverter()
	c.History = hist
	c.Archive = failingArchive{}

	res, err := c.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Archived)
	require.Len(t, hist.runs, 1)
	assert.Empty(t, hist.runs[0].ArchiveName)
}
