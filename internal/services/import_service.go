package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"moneta/internal/amqp"
	"moneta/internal/core"
	"moneta/internal/spreadsheet"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type: use .csv or .xlsx")
	ErrEmptyFile       = errors.New("file appears to be empty or invalid")
	ErrNoValidRows     = errors.New("no valid rows found")
)

const maxRowErrors = 20

// RowError describes why a line was skipped. Line is 1-based and counts the
// header.
type RowError struct {
	Line   int
	Reason string
}

type ImportResult struct {
	BatchID           string
	Imported          int
	Skipped           int
	CreatedCategories []string
	// Errors holds the first few skip reasons.
	Errors []RowError
}

type ImportService struct {
	store     TransactionStore
	publisher EventPublisher
}

func NewImportService(store TransactionStore, publisher EventPublisher) *ImportService {
	return &ImportService{store: store, publisher: publisher}
}

// ReadSpreadsheet loads a .csv or .xlsx file as CSV text.
func ReadSpreadsheet(filename string, r io.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filename, err)
		}
		return strings.TrimPrefix(string(b), "\ufeff"), nil
	case ".xlsx":
		text, err := spreadsheet.XLSXToCSV(r)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filename, err)
		}
		return text, nil
	default:
		return "", ErrUnsupportedFile
	}
}

type categoryKey struct {
	name string
	typ  core.TransactionType
}

// Import reads rows of Date,Amount,Type,Category[,Description] after a header
// line. Bad rows are counted and skipped; unknown categories are created only
// for rows that are otherwise valid. Long descriptions are truncated.
func (s *ImportService) Import(ctx context.Context, filename string, r io.Reader) (ImportResult, error) {
	text, err := ReadSpreadsheet(filename, r)
	if err != nil {
		return ImportResult{}, err
	}

	lines := spreadsheet.SplitLines(text)
	if countNonBlank(lines) < 2 {
		return ImportResult{}, ErrEmptyFile
	}

	categories, err := s.store.ListCategories(ctx, "")
	if err != nil {
		return ImportResult{}, fmt.Errorf("load categories: %w", err)
	}
	byKey := make(map[categoryKey]int64, len(categories))
	for _, c := range categories {
		byKey[categoryKey{strings.ToLower(c.Name), c.Type}] = c.ID
	}

	result := ImportResult{BatchID: uuid.NewString()}
	skip := func(line int, reason string) {
		result.Skipped++
		if len(result.Errors) < maxRowErrors {
			result.Errors = append(result.Errors, RowError{Line: line, Reason: reason})
		}
	}

	for i := 1; i < len(lines); i++ {
		lineNo := i + 1
		fields := spreadsheet.ParseLine(lines[i])
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			skip(lineNo, "expected at least 4 fields")
			continue
		}

		t, category, err := parseRow(fields)
		if err != nil {
			skip(lineNo, err.Error())
			continue
		}
		if err := t.Validate(); err != nil && !errors.Is(err, core.ErrMissingCategory) {
			skip(lineNo, err.Error())
			continue
		}

		key := categoryKey{strings.ToLower(category), t.Type}
		id, ok := byKey[key]
		if !ok {
			created, err := s.store.CreateCategory(ctx, core.FallbackCategory(category, t.Type))
			if err != nil {
				skip(lineNo, "create category: "+err.Error())
				continue
			}
			id = created.ID
			byKey[key] = id
			result.CreatedCategories = append(result.CreatedCategories, created.Name)
		}
		t.CategoryID = id

		if err := t.Validate(); err != nil {
			skip(lineNo, err.Error())
			continue
		}
		if _, err := s.store.CreateTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to import row", "line", lineNo, "error", err)
			skip(lineNo, "insert failed")
			continue
		}
		result.Imported++
	}

	slog.InfoContext(ctx, "Import finished",
		"file", filename,
		"batch_id", result.BatchID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"created_categories", len(result.CreatedCategories))

	if result.Imported == 0 {
		return result, ErrNoValidRows
	}

	publishEvent(ctx, s.publisher, amqp.NewBatchEvent(amqp.EventImported, result.BatchID))
	return result, nil
}

func parseRow(fields []string) (core.Transaction, string, error) {
	date, amount, typ, category := fields[0], fields[1], fields[2], fields[3]
	if date == "" || amount == "" || typ == "" || category == "" {
		return core.Transaction{}, "", errors.New("missing required field")
	}

	money, err := core.ParseAmount(amount)
	if err != nil {
		return core.Transaction{}, "", fmt.Errorf("amount %q: %w", amount, err)
	}
	tt, err := core.ParseTransactionType(typ)
	if err != nil {
		return core.Transaction{}, "", fmt.Errorf("type %q: %w", typ, err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, "", fmt.Errorf("date %q: %w", date, err)
	}

	t := core.Transaction{Amount: money, Type: tt, Date: d}
	if len(fields) > 4 {
		t.Description = core.TruncateDescription(fields[4])
	}
	return t, category, nil
}

func countNonBlank(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
