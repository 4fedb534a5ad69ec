package sheets

import (
	"context"

	"moneta/internal/core"
)

// Mirror is an external copy of the transaction table, kept in step by the
// sync worker.
type Mirror interface {
	// Upsert writes t, replacing any existing row with the same ID.
	Upsert(ctx context.Context, t core.Transaction) error
	// Delete removes the row for id. Deleting a missing row is not an error.
	Delete(ctx context.Context, id int64) error
	// Replace discards every row and writes txs in order.
	Replace(ctx context.Context, txs []core.Transaction) error
}
