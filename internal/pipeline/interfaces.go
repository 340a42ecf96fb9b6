package pipeline

import (
	"context"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/service"
)

// StorageService is an interface for storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// RateSource returns the owner's current rate configuration.
// *rateconfig.Service satisfies it.
type RateSource interface {
	Get(ctx context.Context, ownerID string) (domain.RateConfig, error)
}

// Ledger is the write side the pipeline commits through. *service.Service
// satisfies it, so subscribers are notified of every committed batch.
type Ledger interface {
	CountImported(ctx context.Context, ownerID string, source domain.ImportSource) (int, error)
	ClearImported(ctx context.Context, ownerID string, source domain.ImportSource) (service.BulkResult, error)
	CreateTransactions(ctx context.Context, txs []*domain.Transaction) error
}
