package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"moneta/internal/core"
	"moneta/internal/spreadsheet"
)

var ErrNoTransactions = errors.New("no transactions to export")

const (
	exportHeader        = "Date,Amount,Type,Category,Description"
	uncategorizedLabel  = "Uncategorized"
	exportFilenameStart = "expense_tracker_export_"
)

type ExportService struct {
	store TransactionStore
}

func NewExportService(store TransactionStore) *ExportService {
	return &ExportService{store: store}
}

// Export writes matching transactions as CSV, newest first, and returns the
// number of rows written.
func (s *ExportService) Export(ctx context.Context, f core.Filter, w io.Writer) (int, error) {
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	if len(txs) == 0 {
		return 0, ErrNoTransactions
	}

	if _, err := io.WriteString(w, exportHeader); err != nil {
		return 0, err
	}
	for _, t := range txs {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return 0, err
		}
		category := t.CategoryName
		if category == "" {
			category = uncategorizedLabel
		}
		row := []string{t.Date.String(), t.Amount.String(), string(t.Type), category, t.Description}
		if err := spreadsheet.WriteQuotedRow(w, row); err != nil {
			return 0, err
		}
	}
	return len(txs), nil
}

// ExportFileName names a download made on the given day.
func ExportFileName(now time.Time) string {
	return exportFilenameStart + now.UTC().Format(core.DateLayout) + ".csv"
}
