package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api"
	"github.com/dvloznov/fx-ledger/internal/config"
	"github.com/dvloznov/fx-ledger/internal/gcs"
	"github.com/dvloznov/fx-ledger/internal/gcsuploader"
	"github.com/dvloznov/fx-ledger/internal/infra"
	"github.com/dvloznov/fx-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/metrics"
	"github.com/dvloznov/fx-ledger/internal/ocr"
	"github.com/dvloznov/fx-ledger/internal/pipeline"
	"github.com/dvloznov/fx-ledger/internal/rateconfig"
	"github.com/dvloznov/fx-ledger/internal/rates"
	"github.com/dvloznov/fx-ledger/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	port := flag.Int("port", cfg.Port, "HTTP server port")
	bucket := flag.String("bucket", cfg.GCSBucket, "GCS bucket for workbook uploads (or set GCS_BUCKET)")
	flag.Parse()
	cfg.Port = *port
	cfg.GCSBucket = *bucket

	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.NewFromFormat(cfg.LogFormat)

	ctx := context.Background()

	st, err := infra.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer st.Close()

	m := metrics.New()

	cfgSvc := rateconfig.NewService(st)
	defer cfgSvc.Close()

	resolver := rates.NewResolver(st, cfg.Location)
	resolver.OnResolve = m.ObserveRate

	svc := service.New(st, resolver)
	svc.SaleRates = cfgSvc
	defer svc.Close()

	deps := api.Deps{
		Service:        svc,
		RateConfig:     cfgSvc,
		Resolver:       resolver,
		Bucket:         cfg.GCSBucket,
		Import:         pipeline.Deps{Rates: cfgSvc, Ledger: svc},
		Metrics:        m,
		JWTSecret:      cfg.AuthJWTSecret,
		OCRRatePerMin:  cfg.OCRRatePerMin,
		OCRBurst:       cfg.OCRBurst,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            log,
	}
	if deps.JWTSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET not set - accepting X-User-ID headers (development mode)")
	}

	// Uploads go through GCS and the job queue; without a bucket workbooks
	// are imported within the request.
	var storage gcs.StorageService
	if cfg.UploadsEnabled() {
		gcsSvc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer gcsSvc.Close()
		storage = gcsSvc
	} else {
		log.Warn().Msg("No GCS bucket configured - imports run in-request")
	}
	deps.Storage = storage
	deps.Import.Storage = storage

	if extractor, err := ocr.NewGeminiExtractor(ctx, cfg.GeminiModel); err != nil {
		log.Warn().Err(err).Msg("Capture analysis disabled")
	} else {
		deps.Extractor = extractor
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)
	deps.JobStore = jobStore

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	if storage != nil {
		deps.Publisher = jobQueue
		handler := pipeline.JobHandler(deps.Import, m.RecordImport)
		go func() {
			log.Info().Msg("Starting job worker")
			if err := jobQueue.Start(workerCtx, handler); err != nil {
				log.Error().Err(err).Msg("Job worker stopped with error")
			}
		}()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(deps),
		// Streaming handlers clear the write deadline per connection.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Str("timezone", cfg.Timezone).
			Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open event streams end when the hubs close.
	svc.Close()
	cfgSvc.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	stopQueue(shutdownCtx, jobQueue, log)
	log.Info().Msg("Server stopped")
}

func stopQueue(ctx context.Context, q *inmemory.Queue, log zerolog.Logger) {
	if err := q.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Job worker did not stop cleanly")
	}
	if err := q.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}
}
