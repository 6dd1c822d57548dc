// Package worker turns transaction mutation events into ledger rows.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"expenex/internal/cache"
	"expenex/internal/events"
	"expenex/internal/ledger"
	"expenex/internal/log"
)

const (
	defaultSeenSize = 10000
	defaultSeenTTL  = 24 * time.Hour
)

// LedgerWorker appends one ledger row per mutation event. Event IDs already
// written are remembered so a redelivered event is not appended twice.
type LedgerWorker struct {
	writer ledger.Writer
	seen   *cache.LRUCache[string]
	logger *log.Logger

	processed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// Metrics counts handled events.
type Metrics struct {
	Processed  int64
	Duplicates int64
	Failed     int64
}

func NewLedgerWorker(writer ledger.Writer, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWorker{
		writer: writer,
		seen:   cache.NewLRUCache[string](defaultSeenSize, defaultSeenTTL),
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the dedupe cache so it can be swept by a cache.Manager.
func (w *LedgerWorker) Seen() cache.Cleaner {
	return w.seen
}

// Prepare runs writer specific setup, such as writing the sheet header.
func (w *LedgerWorker) Prepare(ctx context.Context) error {
	if h, ok := w.writer.(interface {
		EnsureHeader(ctx context.Context) error
	}); ok {
		if err := h.EnsureHeader(ctx); err != nil {
			return fmt.Errorf("prepare ledger: %w", err)
		}
	}
	return nil
}

// HandleEvent is an events.Handler.
func (w *LedgerWorker) HandleEvent(ctx context.Context, e events.Event) error {
	logger := w.logger.With(
		"event_id", e.ID,
		"type", string(e.Type),
		log.FieldKind, string(e.Kind),
		log.FieldTransactionID, e.TransactionID)

	if ref, ok := w.seen.Get(e.ID); ok {
		w.duplicates.Add(1)
		logger.InfoContext(ctx, "Skipping event already in ledger", "ledger_ref", ref)
		return nil
	}

	logger.InfoContext(ctx, "Processing transaction event")

	ref, err := w.writer.Append(ctx, ledger.RowFromEvent(e))
	if err != nil {
		w.failed.Add(1)
		logger.ErrorContext(ctx, "Failed to append ledger row",
			log.FieldOperation, log.OpAppend,
			log.FieldError, err.Error())
		return fmt.Errorf("append ledger row: %w", err)
	}

	w.seen.Set(e.ID, ref)
	w.processed.Add(1)
	logger.InfoContext(ctx, "Successfully appended ledger row", "ledger_ref", ref)
	return nil
}

func (w *LedgerWorker) GetMetrics() Metrics {
	return Metrics{
		Processed:  w.processed.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}
