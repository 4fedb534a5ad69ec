package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"moneta/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	if err := repo.SeedDefaultCategories(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SeedDefaultCategories inserts the default categories when none exist.
func (r *SQLiteRepository) SeedDefaultCategories(ctx context.Context) error {
	return seedDefaults(ctx, r.queries)
}

func seedDefaults(ctx context.Context, q *Queries) error {
	count, err := q.CountCategories(ctx)
	if err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, c := range core.DefaultCategories() {
		if _, err := q.CreateCategory(ctx, CreateCategoryParams{
			Name:  c.Name,
			Type:  string(c.Type),
			Icon:  c.Icon,
			Color: c.Color,
		}); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	slog.InfoContext(ctx, "Seeded default categories", "count", len(core.DefaultCategories()))
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		AmountCents: t.Amount.Cents,
		Type:        string(t.Type),
		CategoryID:  nullID(t.CategoryID),
		Description: t.Description,
		Date:        t.Date.String(),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"type", row.Type,
		"amount_cents", row.AmountCents,
		"date", row.Date)

	return r.GetTransaction(ctx, row.ID)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		AmountCents: t.Amount.Cents,
		Type:        string(t.Type),
		CategoryID:  nullID(t.CategoryID),
		Description: t.Description,
		Date:        t.Date.String(),
		ID:          t.ID,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if n == 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return r.GetTransaction(ctx, t.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return toCoreTransaction(row), nil
}

// ListTransactions returns matching transactions newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	limit := int64(-1)
	if f.Limit > 0 {
		limit = int64(f.Limit)
	}
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		FilterParams: filterParams(f),
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = toCoreTransaction(row)
	}
	return out, nil
}

func (r *SQLiteRepository) Stats(ctx context.Context, f core.Filter) (core.Stats, error) {
	row, err := r.queries.GetStats(ctx, filterParams(f))
	if err != nil {
		return core.Stats{}, fmt.Errorf("get stats: %w", err)
	}
	return core.NewStats(row.TotalIncome, row.TotalExpense, row.TotalTransactions), nil
}

func (r *SQLiteRepository) CategoryTotals(ctx context.Context, f core.Filter) ([]core.CategoryTotal, error) {
	rows, err := r.queries.GetCategoryTotals(ctx, filterParams(f))
	if err != nil {
		return nil, fmt.Errorf("get category totals: %w", err)
	}
	out := make([]core.CategoryTotal, len(rows))
	for i, row := range rows {
		out[i] = core.CategoryTotal{
			CategoryID: row.ID,
			Name:       row.Name,
			Type:       core.TransactionType(row.Type),
			Icon:       row.Icon,
			Color:      row.Color,
			Total:      core.Money{Cents: row.TotalCents},
			Count:      row.TransactionCount,
		}
	}
	return out, nil
}

// ListCategories returns categories ordered by name. An empty type lists all.
func (r *SQLiteRepository) ListCategories(ctx context.Context, t core.TransactionType) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, row := range rows {
		out[i] = toCoreCategory(row)
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return toCoreCategory(row), nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	row, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		Name:  c.Name,
		Type:  string(c.Type),
		Icon:  c.Icon,
		Color: c.Color,
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "id", row.ID, "name", row.Name, "type", row.Type)
	return toCoreCategory(row), nil
}

// ClearAll removes every transaction and category in one SQL transaction and
// then restores the default categories. It returns the number of deleted
// transactions.
func (r *SQLiteRepository) ClearAll(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	deleted, err := q.DeleteAllTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	if err := q.DeleteAllCategories(ctx); err != nil {
		return 0, fmt.Errorf("delete categories: %w", err)
	}
	if err := seedDefaults(ctx, q); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.WarnContext(ctx, "All data cleared", "deleted_transactions", deleted)
	return deleted, nil
}

func filterParams(f core.Filter) FilterParams {
	p := FilterParams{Type: string(f.Type)}
	if f.Range != nil {
		p.StartDate = f.Range.Start.String()
		p.EndDate = f.Range.End.String()
	}
	return p
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func toCoreCategory(c Category) core.Category {
	return core.Category{
		ID:    c.ID,
		Name:  c.Name,
		Type:  core.TransactionType(c.Type),
		Icon:  c.Icon,
		Color: c.Color,
	}
}

func toCoreTransaction(row TransactionRow) core.Transaction {
	t := core.Transaction{
		ID:            row.ID,
		Amount:        core.Money{Cents: row.AmountCents},
		Type:          core.TransactionType(row.Type),
		CategoryID:    row.CategoryID.Int64,
		Description:   row.Description,
		CreatedAt:     row.CreatedAt.Time,
		CategoryName:  row.CategoryName.String,
		CategoryIcon:  row.CategoryIcon.String,
		CategoryColor: row.CategoryColor.String,
	}
	if d, err := core.ParseDate(row.Date); err == nil {
		t.Date = d
	}
	return t
}
