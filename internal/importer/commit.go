package importer

import (
	"context"
	"fmt"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// BatchWriter commits one batch of records atomically.
type BatchWriter interface {
	CreateTransactions(ctx context.Context, txs []*domain.Transaction) error
}

// CommitResult reports how far a commit got.
type CommitResult struct {
	Committed int
	Batches   int
}

// CommitBatches splits txs into batches of at most limit records and commits
// them one after another. On failure it stops and returns what was already
// committed alongside the error; committed batches are not rolled back.
func CommitBatches(ctx context.Context, w BatchWriter, txs []*domain.Transaction, limit int) (CommitResult, error) {
	var res CommitResult
	if limit <= 0 {
		return res, fmt.Errorf("CommitBatches: invalid batch limit %d", limit)
	}

	for start := 0; start < len(txs); start += limit {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("CommitBatches: %w", err)
		}
		end := min(start+limit, len(txs))
		if err := w.CreateTransactions(ctx, txs[start:end]); err != nil {
			return res, fmt.Errorf("CommitBatches: batch %d (rows %d-%d): %w", res.Batches+1, start, end-1, err)
		}
		res.Committed += end - start
		res.Batches++
	}
	return res, nil
}

// Summary is what an import run reports back to the caller.
type Summary struct {
	Source   domain.ImportSource `json:"source"`
	Total    int                 `json:"total"`
	Created  int                 `json:"created"`
	Skipped  int                 `json:"skipped"`
	Errors   []string            `json:"errors"`
	Batches  int                 `json:"batches"`
	Replaced int                 `json:"replaced,omitempty"`
}

// NewSummary builds a Summary from a reconcile result and its commit.
func NewSummary(source domain.ImportSource, r *Result, c CommitResult) *Summary {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return &Summary{
		Source:  source,
		Total:   r.Total,
		Created: c.Committed,
		Skipped: r.Skipped,
		Errors:  errs,
		Batches: c.Batches,
	}
}
