package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenex/internal/cache"
	"expenex/internal/cli"
	"expenex/internal/config"
	"expenex/internal/events"
	"expenex/internal/ledger"
	"expenex/internal/log"
	"expenex/internal/worker"
)

const metricsInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	writer, err := ledger.NewSheetsWriter(ctx, ledger.SheetsConfig{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.LedgerSheetName,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.LedgerSheetName)

	ledgerWorker := worker.NewLedgerWorker(writer, logger)
	if err := ledgerWorker.Prepare(ctx); err != nil {
		// Appends do not depend on the header.
		logger.Error("Failed to prepare ledger sheet", log.FieldError, err.Error())
	}

	caches := cache.NewManager(logger)
	caches.Register(ledgerWorker.Seen())
	caches.StartCleanup(time.Hour)
	defer caches.Stop()

	consumer := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	defer consumer.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Consume(gctx, ledgerWorker.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(metricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				m := ledgerWorker.GetMetrics()
				logger.Info("Ledger worker metrics",
					"processed", m.Processed,
					"duplicates", m.Duplicates,
					"failed", m.Failed)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Ledger worker stopped gracefully")
}
