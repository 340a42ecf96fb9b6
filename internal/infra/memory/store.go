// Package memory is an in-process record store used for development and as
// the store test double.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// Store keeps records and config documents in maps. Records are cloned on the
// way in and out so callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	txs     map[string]*domain.Transaction
	configs map[string][]byte
	batches []int
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		txs:     make(map[string]*domain.Transaction),
		configs: make(map[string][]byte),
	}
}

// CreateTransaction stores a copy of tx.
func (s *Store) CreateTransaction(_ context.Context, tx *domain.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.insertLocked(tx)
	return id, nil
}

// CreateTransactions commits txs as one batch.
func (s *Store) CreateTransactions(_ context.Context, txs []*domain.Transaction) error {
	if len(txs) > store.MaxBatchSize {
		return fmt.Errorf("CreateTransactions: %d records: %w", len(txs), store.ErrBatchTooLarge)
	}
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		tx.ID = s.insertLocked(tx)
	}
	s.batches = append(s.batches, len(txs))
	return nil
}

func (s *Store) insertLocked(tx *domain.Transaction) string {
	c := tx.Clone()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.txs[c.ID] = c
	return c.ID
}

// GetTransaction returns a copy of the owner's record.
func (s *Store) GetTransaction(_ context.Context, ownerID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok || tx.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return tx.Clone(), nil
}

// UpdateTransaction replaces an existing record.
func (s *Store) UpdateTransaction(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.txs[tx.ID]
	if !ok || cur.OwnerID != tx.OwnerID {
		return store.ErrNotFound
	}
	s.txs[tx.ID] = tx.Clone()
	return nil
}

// UpdateCompraStatus sets the status of a Compra record.
func (s *Store) UpdateCompraStatus(_ context.Context, ownerID, id string, status domain.CompraStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok || tx.OwnerID != ownerID {
		return store.ErrNotFound
	}
	c, ok := tx.Compra()
	if !ok {
		return fmt.Errorf("UpdateCompraStatus: record %s is a %s", id, tx.Tipo())
	}
	c.Status = status
	return nil
}

// DeleteTransaction removes a record.
func (s *Store) DeleteTransaction(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok || tx.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

// ListTransactions returns copies of the records matching f.
func (s *Store) ListTransactions(_ context.Context, f store.Filter) ([]*domain.Transaction, error) {
	if f.OwnerID == "" {
		return nil, store.ErrOwnerRequired
	}

	s.mu.RLock()
	all := make([]*domain.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		all = append(all, tx)
	}
	s.mu.RUnlock()

	// Map order is random; pin ties to ID order before the stable sort.
	store.SortByID(all)
	matched := f.Apply(all)
	out := make([]*domain.Transaction, len(matched))
	for i, tx := range matched {
		out[i] = tx.Clone()
	}
	return out, nil
}

// CountTransactions counts the records matching f.
func (s *Store) CountTransactions(_ context.Context, f store.Filter) (int, error) {
	if f.OwnerID == "" {
		return 0, store.ErrOwnerRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, tx := range s.txs {
		if f.Matches(tx) {
			n++
		}
	}
	return n, nil
}

// GetConfigDoc decodes a stored config document into dst.
func (s *Store) GetConfigDoc(_ context.Context, ownerID, key string, dst any) error {
	s.mu.RLock()
	b, ok := s.configs[ownerID+"/"+key]
	s.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(b, dst)
}

// PutConfigDoc replaces a config document.
func (s *Store) PutConfigDoc(_ context.Context, ownerID, key string, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("PutConfigDoc: marshal: %w", err)
	}
	s.mu.Lock()
	s.configs[ownerID+"/"+key] = b
	s.mu.Unlock()
	return nil
}

// Batches returns the size of every committed CreateTransactions batch, in order.
func (s *Store) Batches() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.batches...)
}

// Len returns the number of stored records across all owners.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
