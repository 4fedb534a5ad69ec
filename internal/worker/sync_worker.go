package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneta/internal/amqp"
	"moneta/internal/core"
	"moneta/internal/sheets"
)

// TransactionSource is the read side of the store the worker mirrors from.
type TransactionSource interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, f core.Filter) ([]core.Transaction, error)
}

// SyncWorker keeps a Mirror in step with the SQLite store.
type SyncWorker struct {
	source TransactionSource
	mirror sheets.Mirror
}

func NewSyncWorker(source TransactionSource, mirror sheets.Mirror) *SyncWorker {
	return &SyncWorker{source: source, mirror: mirror}
}

// HandleEvent applies one change event to the mirror. Returning an error
// requeues the message.
func (w *SyncWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"kind", event.Kind,
		"id", event.ID,
		"batch_id", event.BatchID)

	switch event.Kind {
	case amqp.EventCreated, amqp.EventUpdated:
		t, err := w.source.GetTransaction(ctx, event.ID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before we got here.
			return w.delete(ctx, event.ID)
		}
		if err != nil {
			return fmt.Errorf("get transaction %d: %w", event.ID, err)
		}
		if err := w.mirror.Upsert(ctx, t); err != nil {
			return fmt.Errorf("upsert transaction %d: %w", event.ID, err)
		}
		return nil

	case amqp.EventDeleted:
		return w.delete(ctx, event.ID)

	case amqp.EventImported, amqp.EventCleared:
		_, err := w.FullBackup(ctx)
		return err

	default:
		slog.WarnContext(ctx, "Ignoring unknown event kind", "kind", event.Kind)
		return nil
	}
}

func (w *SyncWorker) delete(ctx context.Context, id int64) error {
	if err := w.mirror.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

// FullBackup replaces the mirror with every stored transaction.
func (w *SyncWorker) FullBackup(ctx context.Context) (int, error) {
	start := time.Now()
	txs, err := w.source.ListTransactions(ctx, core.Filter{})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	if err := w.mirror.Replace(ctx, txs); err != nil {
		return 0, fmt.Errorf("replace mirror: %w", err)
	}
	slog.InfoContext(ctx, "Full backup completed",
		"rows", len(txs),
		"duration", time.Since(start))
	return len(txs), nil
}

// RunPeriodicBackup runs FullBackup every interval until ctx is cancelled.
// Failed runs are logged and retried on the next tick.
func (w *SyncWorker) RunPeriodicBackup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		slog.InfoContext(ctx, "Periodic backup disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.FullBackup(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic backup failed", "error", err)
			}
		}
	}
}
