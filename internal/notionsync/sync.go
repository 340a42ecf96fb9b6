// Package notionsync mirrors an owner's ledger into a Notion database. The
// ledger is the source of truth: pages are created or updated to match it
// and pages for records that no longer exist are archived.
package notionsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// BatchSize is the number of records written between progress log lines.
const BatchSize = 100

// Result counts what a sync did, or would do in dry-run mode.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Options control a sync run.
type Options struct {
	OwnerID    string
	DatabaseID string
	DryRun     bool
}

// SyncTransactions mirrors every record of opts.OwnerID into the database.
// Individual page failures are logged and counted; only listing failures
// abort the run.
func SyncTransactions(ctx context.Context, src TransactionSource, notion NotionService, opts Options) (Result, error) {
	log := logger.WithOwner(logger.FromContext(ctx), opts.OwnerID)
	var res Result

	if opts.OwnerID == "" || opts.DatabaseID == "" {
		return res, errors.New("SyncTransactions: owner and database id are required")
	}

	log.Info().Bool("dry_run", opts.DryRun).Msg("Starting transaction sync to Notion")

	txs, err := src.List(ctx, opts.OwnerID, store.Filter{})
	if err != nil {
		return res, fmt.Errorf("SyncTransactions: list transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(txs)).Msg("Retrieved ledger records")

	pages, err := queryOwnerPages(ctx, notion, opts.DatabaseID, opts.OwnerID)
	if err != nil {
		return res, fmt.Errorf("SyncTransactions: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(txs))
	for _, tx := range txs {
		valid[tx.ID] = true
	}

	// A record mirrored twice keeps its first page; the rest are stale.
	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		txID := extractTransactionID(page)
		pageID := string(page.ID)
		if txID != "" && valid[txID] && existing[txID] == "" {
			existing[txID] = pageID
			continue
		}
		if opts.DryRun {
			log.Info().Str("transaction_id", txID).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("transaction_id", txID).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for i := 0; i < len(txs); i += BatchSize {
		end := min(i+BatchSize, len(txs))
		log.Info().
			Int("batch_start", i).
			Int("batch_end", end).
			Msg("Processing batch")

		for _, tx := range txs[i:end] {
			pageID, found := existing[tx.ID]
			if opts.DryRun {
				if found {
					res.Updated++
				} else {
					res.Created++
				}
				continue
			}

			props := TransactionToNotionProperties(tx)
			if found {
				if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
					log.Warn().Err(err).Str("transaction_id", tx.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
					res.Failed++
					continue
				}
				res.Updated++
				continue
			}
			if _, err := notion.CreatePage(ctx, opts.DatabaseID, props); err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Bool("dry_run", opts.DryRun).
		Msg("Transaction sync completed")
	return res, nil
}

// queryOwnerPages pages through every database entry belonging to ownerID.
func queryOwnerPages(ctx context.Context, notion NotionService, databaseID, ownerID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: &notionapi.PropertyFilter{
				Property: PropOwner,
				RichText: &notionapi.TextFilterCondition{Equals: ownerID},
			},
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryOwnerPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}
