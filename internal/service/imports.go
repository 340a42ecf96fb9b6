package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// BulkResult reports which deletes succeeded. Failed deletes are not retried.
type BulkResult struct {
	Deleted []string         `json:"deleted"`
	Failed  map[string]error `json:"-"`
}

// FailedIDs lists the ids whose delete failed, with the error text.
func (r BulkResult) FailedIDs() map[string]string {
	out := make(map[string]string, len(r.Failed))
	for id, err := range r.Failed {
		out[id] = err.Error()
	}
	return out
}

// BulkDelete deletes ids concurrently and waits for every delete to finish.
// A failing delete does not cancel the others.
func (s *Service) BulkDelete(ctx context.Context, ownerID string, ids []string) BulkResult {
	res := BulkResult{Deleted: []string{}, Failed: map[string]error{}}
	if len(ids) == 0 {
		return res
	}

	limit := s.BulkLimit
	if limit <= 0 {
		limit = DefaultBulkLimit
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(limit)
	for _, id := range ids {
		g.Go(func() error {
			err := s.repo.DeleteTransaction(ctx, ownerID, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
				return nil
			}
			res.Deleted = append(res.Deleted, id)
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Failed) > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("owner_id", ownerID).
			Int("deleted", len(res.Deleted)).
			Int("failed", len(res.Failed)).
			Msg("Bulk delete finished with failures")
	}
	s.notify(ownerID, ChangeDeleted, len(res.Deleted))
	return res
}

// CountImported returns how many records were imported from source.
func (s *Service) CountImported(ctx context.Context, ownerID string, source domain.ImportSource) (int, error) {
	n, err := s.repo.CountTransactions(ctx, importedFilter(ownerID, source))
	if err != nil {
		return 0, fmt.Errorf("CountImported: %w", err)
	}
	return n, nil
}

// ClearImported deletes every record imported from source.
func (s *Service) ClearImported(ctx context.Context, ownerID string, source domain.ImportSource) (BulkResult, error) {
	txs, err := s.repo.ListTransactions(ctx, importedFilter(ownerID, source))
	if err != nil {
		return BulkResult{}, fmt.Errorf("ClearImported: %w", err)
	}
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}

	res := s.BulkDelete(ctx, ownerID, ids)
	log := logger.FromContext(ctx)
	log.Info().
		Str("owner_id", ownerID).
		Str("source", string(source)).
		Int("deleted", len(res.Deleted)).
		Msg("Cleared imported records")
	if len(res.Failed) > 0 {
		return res, fmt.Errorf("ClearImported: %d of %d deletes failed", len(res.Failed), len(ids))
	}
	return res, nil
}

// CreateTransactions commits one import batch and notifies subscribers of
// every owner in it.
func (s *Service) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if err := s.repo.CreateTransactions(ctx, txs); err != nil {
		return err
	}
	counts := map[string]int{}
	for _, tx := range txs {
		counts[tx.OwnerID]++
	}
	for owner, n := range counts {
		s.notify(owner, ChangeImported, n)
	}
	return nil
}

func importedFilter(ownerID string, source domain.ImportSource) store.Filter {
	return store.Filter{
		OwnerID:        ownerID,
		Importado:      store.Bool(true),
		ImportadoDesde: source,
	}
}
