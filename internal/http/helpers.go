package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"moneta/internal/core"
	applog "moneta/internal/log"
	"moneta/internal/services"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// title capitalizes a transaction type for display ("Income").
func title(t core.TransactionType) string {
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// statusForError maps service and domain errors to an HTTP status and the
// log error type.
func statusForError(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, applog.ErrorTypeValidation
	case errors.Is(err, errBadRequest),
		errors.Is(err, services.ErrUnsupportedFile):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, services.ErrNoTransactions):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrMissingCategory),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrCategoryTypeMismatch),
		errors.Is(err, services.ErrEmptyFile),
		errors.Is(err, services.ErrNoValidRows):
		return http.StatusUnprocessableEntity, applog.ErrorTypeValidation
	default:
		return http.StatusInternalServerError, applog.ErrorTypeInternal
	}
}

// errorMessage hides internal errors from clients.
func errorMessage(status int, err error) string {
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return "file too large"
	case status >= 500:
		return "internal server error"
	default:
		return err.Error()
	}
}

type transactionView struct {
	ID            int64  `json:"id"`
	Amount        string `json:"amount"`
	AmountCents   int64  `json:"amount_cents"`
	Type          string `json:"type"`
	CategoryID    int64  `json:"category_id,omitempty"`
	CategoryName  string `json:"category_name,omitempty"`
	CategoryIcon  string `json:"category_icon,omitempty"`
	CategoryColor string `json:"category_color,omitempty"`
	Description   string `json:"description"`
	Date          string `json:"date"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func newTransactionView(t core.Transaction) transactionView {
	v := transactionView{
		ID:            t.ID,
		Amount:        t.Amount.Fixed(),
		AmountCents:   t.Amount.Cents,
		Type:          string(t.Type),
		CategoryID:    t.CategoryID,
		CategoryName:  t.CategoryName,
		CategoryIcon:  t.CategoryIcon,
		CategoryColor: t.CategoryColor,
		Description:   t.Description,
		Date:          t.Date.String(),
	}
	if !t.CreatedAt.IsZero() {
		v.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, len(txs))
	for i, t := range txs {
		out[i] = newTransactionView(t)
	}
	return out
}

type statsView struct {
	TotalIncome       string `json:"total_income"`
	TotalExpense      string `json:"total_expense"`
	Balance           string `json:"balance"`
	TotalTransactions int64  `json:"total_transactions"`
}

func newStatsView(s core.Stats) statsView {
	return statsView{
		TotalIncome:       s.TotalIncome.Fixed(),
		TotalExpense:      s.TotalExpense.Fixed(),
		Balance:           s.Balance.Fixed(),
		TotalTransactions: s.TotalTransactions,
	}
}

type categoryView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

func newCategoryViews(cats []core.Category) []categoryView {
	out := make([]categoryView, len(cats))
	for i, c := range cats {
		out[i] = categoryView{ID: c.ID, Name: c.Name, Type: string(c.Type), Icon: c.Icon, Color: c.Color}
	}
	return out
}

type categoryTotalView struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Total      string `json:"total"`
	Count      int64  `json:"count"`
}

func newCategoryTotalViews(totals []core.CategoryTotal) []categoryTotalView {
	out := make([]categoryTotalView, len(totals))
	for i, t := range totals {
		out[i] = categoryTotalView{
			CategoryID: t.CategoryID,
			Name:       t.Name,
			Type:       string(t.Type),
			Icon:       t.Icon,
			Color:      t.Color,
			Total:      t.Total.Fixed(),
			Count:      t.Count,
		}
	}
	return out
}

type rowErrorView struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type importView struct {
	BatchID           string         `json:"batch_id,omitempty"`
	Imported          int            `json:"imported"`
	Skipped           int            `json:"skipped"`
	CreatedCategories []string       `json:"created_categories,omitempty"`
	Errors            []rowErrorView `json:"errors,omitempty"`
	Error             string         `json:"error,omitempty"`
}

func newImportView(r services.ImportResult) importView {
	v := importView{
		BatchID:           r.BatchID,
		Imported:          r.Imported,
		Skipped:           r.Skipped,
		CreatedCategories: r.CreatedCategories,
	}
	for _, e := range r.Errors {
		v.Errors = append(v.Errors, rowErrorView{Line: e.Line, Reason: e.Reason})
	}
	return v
}
