// Command worker imports workbooks already uploaded to GCS through the job
// queue, one job per sheet source, and waits until every job settles.
//
//	worker -owner u1 ventas=gs://bucket/ventas.xlsx compras=gs://bucket/compras.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/config"
	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/gcsuploader"
	"github.com/dvloznov/fx-ledger/internal/infra"
	"github.com/dvloznov/fx-ledger/internal/jobs"
	"github.com/dvloznov/fx-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/metrics"
	"github.com/dvloznov/fx-ledger/internal/pipeline"
	"github.com/dvloznov/fx-ledger/internal/rateconfig"
	"github.com/dvloznov/fx-ledger/internal/rates"
	"github.com/dvloznov/fx-ledger/internal/service"
)

const pollInterval = 500 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.NewFromFormat(cfg.LogFormat)

	owner := flag.String("owner", os.Getenv("FX_OWNER"), "Owner the records belong to (required)")
	email := flag.String("email", os.Getenv("FX_EMAIL"), "Email recorded as creator")
	replace := flag.Bool("replace", false, "Clear earlier imports of each source first")
	force := flag.Bool("force", false, "Import even if a source was imported before")
	retries := flag.Int("max-retries", 3, "Retries per job for transient failures")
	flag.Parse()

	if *owner == "" || flag.NArg() == 0 {
		log.Fatal().Msg("Usage: worker -owner ID source=gs://bucket/object.xlsx ...")
	}
	targets, err := parseTargets(flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid arguments")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Warn().Msg("Interrupted - cancelling jobs")
		cancel()
	}()

	st, err := infra.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer st.Close()

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer storage.Close()

	cfgSvc := rateconfig.NewService(st)
	defer cfgSvc.Close()
	svc := service.New(st, rates.NewResolver(st, cfg.Location))
	svc.SaleRates = cfgSvc
	defer svc.Close()

	m := metrics.New()
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(targets), jobStore)

	handler := pipeline.JobHandler(pipeline.Deps{Storage: storage, Rates: cfgSvc, Ledger: svc}, m.RecordImport)
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	creator := *email
	if creator == "" {
		creator = *owner
	}
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		job := &jobs.ImportSheetJob{
			OwnerID:         *owner,
			CreadoPor:       creator,
			Source:          t.source,
			GCSURI:          t.uri,
			Filename:        storage.ExtractFilenameFromGCSURI(t.uri),
			Replace:         *replace,
			AllowDuplicates: *force,
			MaxRetries:      *retries,
		}
		if err := jobQueue.PublishImportSheet(ctx, job); err != nil {
			log.Fatal().Err(err).Str("gcs_uri", t.uri).Msg("Failed to enqueue job")
		}
		ids = append(ids, job.JobID)
	}
	log.Info().Int("jobs", len(ids)).Msg("Jobs enqueued, waiting for completion")

	results := waitForJobs(ctx, jobStore, ids)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := 0
	for _, job := range results {
		fmt.Printf("%-8s %-10s %s\n", job.Source, job.Status, job.GCSURI)
		if job.Summary != nil {
			fmt.Printf("         created %d, skipped %d, errors %d\n", job.Summary.Created, job.Summary.Skipped, len(job.Summary.Errors))
		}
		if job.Status != jobs.JobStatusCompleted {
			failed++
			if job.Error != "" {
				fmt.Printf("         %s\n", job.Error)
			}
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

type target struct {
	source domain.ImportSource
	uri    string
}

// parseTargets reads source=gs://... arguments. Each source may appear once,
// since a second job for the same source would see the first one's records.
func parseTargets(args []string) ([]target, error) {
	seen := make(map[domain.ImportSource]bool)
	out := make([]target, 0, len(args))
	for _, arg := range args {
		name, uri, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%q: want source=gs://bucket/object", arg)
		}
		src, err := domain.ParseImportSource(name)
		if err != nil {
			return nil, err
		}
		if _, _, err := gcsuploader.ParseGCSURI(uri); err != nil {
			return nil, err
		}
		if seen[src] {
			return nil, fmt.Errorf("source %s given twice", src)
		}
		seen[src] = true
		out = append(out, target{source: src, uri: uri})
	}
	return out, nil
}

// waitForJobs polls until every job is completed or failed, or ctx ends.
func waitForJobs(ctx context.Context, store jobs.JobStore, ids []string) []*jobs.ImportSheetJob {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		out := make([]*jobs.ImportSheetJob, 0, len(ids))
		done := true
		for _, id := range ids {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				continue
			}
			out = append(out, job)
			if job.Status != jobs.JobStatusCompleted && job.Status != jobs.JobStatusFailed {
				done = false
			}
		}
		if done && len(out) == len(ids) {
			return out
		}

		select {
		case <-ctx.Done():
			return out
		case <-ticker.C:
		}
	}
}
