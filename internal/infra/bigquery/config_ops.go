package bigquery

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fx-ledger/internal/store"
)

// GetConfigDoc decodes the owner's document stored under key into dst.
func (r *Repository) GetConfigDoc(ctx context.Context, ownerID, key string, dst any) error {
	q := r.client.Query(`
		SELECT payload
		FROM ` + r.table(configTable) + `
		WHERE owner_id = @owner_id AND doc_key = @doc_key
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "doc_key", Value: key},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("GetConfigDoc: query read: %w", err)
	}
	var row struct {
		Payload string `bigquery:"payload"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return fmt.Errorf("GetConfigDoc: %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("GetConfigDoc: reading row: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Payload), dst); err != nil {
		return fmt.Errorf("GetConfigDoc: decoding %s: %w", key, err)
	}
	return nil
}

// PutConfigDoc upserts the owner's document under key with a MERGE.
func (r *Repository) PutConfigDoc(ctx context.Context, ownerID, key string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("PutConfigDoc: encoding %s: %w", key, err)
	}

	_, err = r.runDML(ctx, `
		MERGE `+r.table(configTable)+` T
		USING (SELECT @owner_id AS owner_id, @doc_key AS doc_key, @payload AS payload) S
		ON T.owner_id = S.owner_id AND T.doc_key = S.doc_key
		WHEN MATCHED THEN
		  UPDATE SET payload = S.payload, updated_at = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
		  INSERT (owner_id, doc_key, payload, updated_at)
		  VALUES (S.owner_id, S.doc_key, S.payload, CURRENT_TIMESTAMP())
	`, []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "doc_key", Value: key},
		{Name: "payload", Value: string(payload)},
	})
	if err != nil {
		return fmt.Errorf("PutConfigDoc: %w", err)
	}
	return nil
}
