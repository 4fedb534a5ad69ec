package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moneta/internal/amqp"
	"moneta/internal/core"
)

// TransactionStore is the persistence the services need. It is satisfied by
// *storage.SQLiteRepository.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, f core.Filter) ([]core.Transaction, error)
	Stats(ctx context.Context, f core.Filter) (core.Stats, error)
	CategoryTotals(ctx context.Context, f core.Filter) ([]core.CategoryTotal, error)
	ListCategories(ctx context.Context, t core.TransactionType) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ClearAll(ctx context.Context) (int64, error)
}

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// TransactionService orchestrates transaction operations across SQLite and AMQP.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
}

// NewTransactionService builds the service. publisher may be nil, in which
// case change events are skipped.
func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{store: store, publisher: publisher}
}

func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventCreated, saved.ID))
	return saved, nil
}

func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID <= 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventUpdated, saved.ID))
	return saved, nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventDeleted, id))
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

func (s *TransactionService) Stats(ctx context.Context, f core.Filter) (core.Stats, error) {
	return s.store.Stats(ctx, f)
}

func (s *TransactionService) CategoryTotals(ctx context.Context, f core.Filter) ([]core.CategoryTotal, error) {
	return s.store.CategoryTotals(ctx, f)
}

func (s *TransactionService) Categories(ctx context.Context, t core.TransactionType) ([]core.Category, error) {
	return s.store.ListCategories(ctx, t)
}

// ClearAll deletes every transaction and resets categories to the defaults.
func (s *TransactionService) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.store.ClearAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear data: %w", err)
	}
	s.publish(ctx, amqp.NewBatchEvent(amqp.EventCleared, ""))
	return n, nil
}

// checkCategory requires the category to exist and share the transaction's type.
func (s *TransactionService) checkCategory(ctx context.Context, t core.Transaction) error {
	c, err := s.store.GetCategory(ctx, t.CategoryID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("category %d: %w", t.CategoryID, core.ErrMissingCategory)
	}
	if err != nil {
		return err
	}
	if c.Type != t.Type {
		return fmt.Errorf("%s category %q on %s transaction: %w", c.Type, c.Name, t.Type, core.ErrCategoryTypeMismatch)
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, event *amqp.TransactionEvent) {
	publishEvent(ctx, s.publisher, event)
}

// publishEvent is best effort: the change is already committed locally.
func publishEvent(ctx context.Context, p EventPublisher, event *amqp.TransactionEvent) {
	if p == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping event", "kind", event.Kind)
		return
	}
	if err := p.PublishTransactionEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"kind", event.Kind,
			"id", event.ID,
			"batch_id", event.BatchID,
			"error", err)
	}
}
