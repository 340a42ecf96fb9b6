// Package infra selects the storage backend named by the configuration.
package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/fx-ledger/internal/config"
	"github.com/dvloznov/fx-ledger/internal/infra/bigquery"
	"github.com/dvloznov/fx-ledger/internal/infra/memory"
	"github.com/dvloznov/fx-ledger/internal/infra/sqlite"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// Open returns the configured store. The caller closes it.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendBigQuery:
		repo, err := bigquery.NewRepository(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			return nil, fmt.Errorf("Open: bigquery: %w", err)
		}
		return repo, nil
	case config.BackendSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("Open: sqlite: %w", err)
		}
		return st, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("Open: unknown store backend %q", cfg.StoreBackend)
	}
}
