package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Category struct {
	ID    int64
	Name  string
	Type  string
	Icon  string
	Color string
}

type Transaction struct {
	ID          int64
	AmountCents int64
	Type        string
	CategoryID  sql.NullInt64
	Description string
	Date        string
	CreatedAt   NullTime
}

// NullTime scans SQLite DATETIME values whether the driver hands back a
// time.Time or the raw CURRENT_TIMESTAMP text.
type NullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func (n *NullTime) Scan(value interface{}) error {
	n.Time, n.Valid = time.Time{}, false
	var s string
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported time value %T", value)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized time format %q", s)
}

type TransactionRow struct {
	Transaction
	CategoryName  sql.NullString
	CategoryIcon  sql.NullString
	CategoryColor sql.NullString
}

// FilterParams holds optional filters; empty strings match everything.
type FilterParams struct {
	Type      string
	StartDate string
	EndDate   string
}

func (p FilterParams) args() []interface{} {
	return []interface{}{p.Type, p.Type, p.StartDate, p.StartDate, p.EndDate, p.EndDate}
}

const filterClause = `(? = '' OR t.type = ?)
  AND (? = '' OR t.date >= ?)
  AND (? = '' OR t.date <= ?)`

const createTransaction = `
INSERT INTO transactions (amount_cents, type, category_id, description, date)
VALUES (?, ?, ?, ?, ?)
RETURNING id, amount_cents, type, category_id, description, date, created_at`

type CreateTransactionParams struct {
	AmountCents int64
	Type        string
	CategoryID  sql.NullInt64
	Description string
	Date        string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.AmountCents,
		arg.Type,
		arg.CategoryID,
		arg.Description,
		arg.Date,
	)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.AmountCents,
		&i.Type,
		&i.CategoryID,
		&i.Description,
		&i.Date,
		&i.CreatedAt,
	)
	return i, err
}

const updateTransaction = `
UPDATE transactions
SET amount_cents = ?, type = ?, category_id = ?, description = ?, date = ?
WHERE id = ?`

type UpdateTransactionParams struct {
	AmountCents int64
	Type        string
	CategoryID  sql.NullInt64
	Description string
	Date        string
	ID          int64
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.AmountCents,
		arg.Type,
		arg.CategoryID,
		arg.Description,
		arg.Date,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `
DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const transactionColumns = `t.id, t.amount_cents, t.type, t.category_id, t.description, t.date, t.created_at,
       c.name, c.icon, c.color
FROM transactions t
LEFT JOIN categories c ON t.category_id = c.id`

const getTransaction = `
SELECT ` + transactionColumns + `
WHERE t.id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	return scanTransactionRow(row)
}

const listTransactions = `
SELECT ` + transactionColumns + `
WHERE ` + filterClause + `
ORDER BY t.date DESC, t.id DESC
LIMIT ?`

type ListTransactionsParams struct {
	FilterParams
	// Limit < 0 means no limit.
	Limit int64
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]TransactionRow, error) {
	args := append(arg.FilterParams.args(), arg.Limit)
	rows, err := q.db.QueryContext(ctx, listTransactions, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		i, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransactionRow(s rowScanner) (TransactionRow, error) {
	var i TransactionRow
	err := s.Scan(
		&i.ID,
		&i.AmountCents,
		&i.Type,
		&i.CategoryID,
		&i.Description,
		&i.Date,
		&i.CreatedAt,
		&i.CategoryName,
		&i.CategoryIcon,
		&i.CategoryColor,
	)
	return i, err
}

const getStats = `
SELECT
  COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount_cents ELSE 0 END), 0) AS total_income,
  COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount_cents ELSE 0 END), 0) AS total_expense,
  COUNT(*) AS total_transactions
FROM transactions t
WHERE ` + filterClause

type GetStatsRow struct {
	TotalIncome       int64
	TotalExpense      int64
	TotalTransactions int64
}

func (q *Queries) GetStats(ctx context.Context, arg FilterParams) (GetStatsRow, error) {
	row := q.db.QueryRowContext(ctx, getStats, arg.args()...)
	var i GetStatsRow
	err := row.Scan(&i.TotalIncome, &i.TotalExpense, &i.TotalTransactions)
	return i, err
}

const getCategoryTotals = `
SELECT c.id, c.name, c.type, c.icon, c.color,
       COALESCE(SUM(t.amount_cents), 0) AS total_cents,
       COUNT(t.id) AS transaction_count
FROM transactions t
JOIN categories c ON t.category_id = c.id
WHERE ` + filterClause + `
GROUP BY c.id, c.name, c.type, c.icon, c.color
ORDER BY total_cents DESC, c.name`

type GetCategoryTotalsRow struct {
	Category
	TotalCents       int64
	TransactionCount int64
}

func (q *Queries) GetCategoryTotals(ctx context.Context, arg FilterParams) ([]GetCategoryTotalsRow, error) {
	rows, err := q.db.QueryContext(ctx, getCategoryTotals, arg.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetCategoryTotalsRow
	for rows.Next() {
		var i GetCategoryTotalsRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Type,
			&i.Icon,
			&i.Color,
			&i.TotalCents,
			&i.TransactionCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCategories = `
SELECT id, name, type, icon, color
FROM categories
WHERE (? = '' OR type = ?)
ORDER BY name`

func (q *Queries) ListCategories(ctx context.Context, categoryType string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, categoryType, categoryType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Type, &i.Icon, &i.Color); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `
SELECT id, name, type, icon, color FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.Type, &i.Icon, &i.Color)
	return i, err
}

const createCategory = `
INSERT INTO categories (name, type, icon, color)
VALUES (?, ?, ?, ?)
RETURNING id, name, type, icon, color`

type CreateCategoryParams struct {
	Name  string
	Type  string
	Icon  string
	Color string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.Name, arg.Type, arg.Icon, arg.Color)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.Type, &i.Icon, &i.Color)
	return i, err
}

const countCategories = `
SELECT COUNT(*) FROM categories`

func (q *Queries) CountCategories(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCategories)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteAllTransactions = `
DELETE FROM transactions`

func (q *Queries) DeleteAllTransactions(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAllTransactions)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAllCategories = `
DELETE FROM categories`

func (q *Queries) DeleteAllCategories(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllCategories)
	return err
}
