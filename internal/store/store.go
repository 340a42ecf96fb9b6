// Package store defines the repository interfaces shared by every record
// store backend (BigQuery, sqlite and in-memory).
package store

import (
	"context"
	"errors"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// MaxBatchSize is the largest number of records a single CreateTransactions
// call commits. Callers split larger sets and commit them sequentially.
const MaxBatchSize = 500

var (
	// ErrNotFound is returned when a record or config document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrOwnerRequired is returned when a query is not scoped to an owner.
	ErrOwnerRequired = errors.New("owner id is required")
)

// TransactionRepository provides an interface for ledger record operations.
// Every operation is scoped to one owner.
type TransactionRepository interface {
	// CreateTransaction stores tx, assigning a new ID when tx.ID is empty.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) (string, error)

	// CreateTransactions commits txs as one batch of at most MaxBatchSize records.
	CreateTransactions(ctx context.Context, txs []*domain.Transaction) error

	// GetTransaction returns the owner's record with the given id, or ErrNotFound.
	GetTransaction(ctx context.Context, ownerID, id string) (*domain.Transaction, error)

	// UpdateTransaction replaces every field of an existing record.
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error

	// UpdateCompraStatus sets the status of a Compra record.
	UpdateCompraStatus(ctx context.Context, ownerID, id string, status domain.CompraStatus) error

	// DeleteTransaction permanently removes a record.
	DeleteTransaction(ctx context.Context, ownerID, id string) error

	// ListTransactions returns the records matching f.
	ListTransactions(ctx context.Context, f Filter) ([]*domain.Transaction, error)

	// CountTransactions returns how many records match f, ignoring f.Limit.
	CountTransactions(ctx context.Context, f Filter) (int, error)
}

// ConfigRepository stores per-owner configuration documents as JSON.
type ConfigRepository interface {
	// GetConfigDoc decodes the document stored under key into dst, or
	// returns ErrNotFound.
	GetConfigDoc(ctx context.Context, ownerID, key string, dst any) error

	// PutConfigDoc replaces the document stored under key.
	PutConfigDoc(ctx context.Context, ownerID, key string, doc any) error
}

// Store is implemented by every backend.
type Store interface {
	TransactionRepository
	ConfigRepository
	Close() error
}
