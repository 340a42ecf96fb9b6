package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/fx-ledger/internal/store"
)

// DeleteTransaction permanently removes one of the owner's records.
func (r *Repository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	n, err := r.runDML(ctx, `
		DELETE FROM `+r.table(transactionsTable)+`
		WHERE owner_id = @owner_id AND id = @id
	`, []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteTransaction: %s: %w", id, store.ErrNotFound)
	}
	return nil
}
