package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resit/internal/backend"
	"resit/internal/cli"
	"resit/internal/config"
	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/log"
	"resit/internal/report"
	"resit/internal/services"
)

func main() {
	from := flag.String("from", "", "Optional: start date (YYYY-MM-DD). Defaults to 29 days before today.")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD). Defaults to today.")
	currency := flag.String("currency", "", "Optional: only include receipts in this currency (e.g. USD).")
	out := flag.String("out", "", "Output xlsx path. Defaults to receipts_<from>_<to>.xlsx in the current directory.")
	toSheets := flag.Bool("sheets", false, "Also write the report to the configured Google spreadsheet.")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall time limit.")
	flag.Parse()

	cfg, logger := cli.LoadConfig()

	rng, err := dashboard.ParseRange(*from, *to, dashboard.DefaultRange(time.Now()))
	if err != nil {
		cli.Fatal(logger, "Invalid range", err)
	}
	if rng.Currency, err = core.NormalizeCurrency(*currency); err != nil {
		cli.Fatal(logger, "Invalid currency", err)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, rng, *out, *toSheets, logger); err != nil {
		cli.Fatal(logger, "Report failed", err)
	}
}

func run(ctx context.Context, cfg *config.Config, rng dashboard.Range, out string, toSheets bool, logger *log.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// One-shot reads need neither change events nor the shared cache.
	bcfg.AMQPURL, bcfg.RedisAddr = "", ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	analysis := services.NewAnalysisService(res.Store, services.AnalysisOptions{Logger: logger})
	rep, breakdown, err := report.Build(ctx, analysis, rng)
	if err != nil {
		return fmt.Errorf("build report for %s: %w", rng, err)
	}

	if out == "" {
		out = report.FileName(rep)
	}
	if err := writeFile(out, func(f *os.File) error { return report.WriteXLSX(f, rep, breakdown) }); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Report written",
		log.FieldOperation, log.OpExport,
		"backend", cfg.DataBackend,
		"path", out,
		log.FieldDays, len(rep.Days),
		log.FieldReceipts, rep.Metrics.TotalReceiptCount)

	if !toSheets {
		return nil
	}
	exporter, err := report.NewSheetsExporter(ctx, report.SheetsConfig{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return err
	}
	_, err = exporter.Export(ctx, rep)
	return err
}

// writeFile writes through a temporary file in the target directory so a
// failed run never leaves a truncated workbook behind.
func writeFile(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".resit-report-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
