package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/config"
	"github.com/dvloznov/fx-ledger/internal/infra"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/notionsync"
	"github.com/dvloznov/fx-ledger/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.NewFromFormat(cfg.LogFormat)

	owner := flag.String("owner", os.Getenv("FX_OWNER"), "Owner whose ledger is mirrored (required)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDBID, "Notion database ID (or set NOTION_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	if *notionToken == "" || *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-token and --notion-db-id are required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := infra.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer st.Close()

	svc := service.New(st, nil)
	defer svc.Close()

	res, err := notionsync.SyncTransactions(ctx, svc, notionsync.NewNotionClient(*notionToken), notionsync.Options{
		OwnerID:    *owner,
		DatabaseID: *notionDBID,
		DryRun:     *dryRun,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	prefix := ""
	if *dryRun {
		prefix = "[DRY RUN] "
	}
	fmt.Printf("%sCreated %d, updated %d, archived %d, failed %d.\n", prefix, res.Created, res.Updated, res.Archived, res.Failed)
}
