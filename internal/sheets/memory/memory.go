package memory

import (
	"context"
	"sort"
	"sync"

	"moneta/internal/core"
	"moneta/internal/sheets"
)

var _ sheets.Mirror = (*Store)(nil)

// Store is an in-process Mirror used when no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items map[int64]core.Transaction
	// replaced counts Replace calls.
	replaced int
}

func New() *Store {
	return &Store{items: make(map[int64]core.Transaction)}
}

func (s *Store) Upsert(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[t.ID] = t
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Store) Replace(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int64]core.Transaction, len(txs))
	for _, t := range txs {
		s.items[t.ID] = t
	}
	s.replaced++
	return nil
}

// List returns a snapshot ordered by date then ID, newest first.
func (s *Store) List() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) Get(id int64) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	return t, ok
}

// Replacements reports how many full backups have been written.
func (s *Store) Replacements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaced
}
