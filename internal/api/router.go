// Package api assembles the HTTP surface: the middleware chain, the public
// health and metrics endpoints and the authenticated /api routes.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/handlers"
	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/gcs"
	"github.com/dvloznov/fx-ledger/internal/jobs"
	"github.com/dvloznov/fx-ledger/internal/metrics"
	"github.com/dvloznov/fx-ledger/internal/ocr"
	"github.com/dvloznov/fx-ledger/internal/pipeline"
	"github.com/dvloznov/fx-ledger/internal/rateconfig"
	"github.com/dvloznov/fx-ledger/internal/service"
)

// Deps are the collaborators the routes need. Publisher, Storage, Extractor
// and Metrics may be nil.
type Deps struct {
	Service    *service.Service
	RateConfig *rateconfig.Service
	Resolver   handlers.RateResolver

	JobStore  jobs.JobStore
	Publisher jobs.Publisher
	Storage   gcs.StorageService
	Bucket    string
	Import    pipeline.Deps

	Extractor ocr.Extractor
	Metrics   *metrics.Metrics

	// JWTSecret empty enables the X-User-ID development header.
	JWTSecret      string
	OCRRatePerMin  int
	OCRBurst       int
	MaxUploadBytes int64

	Log zerolog.Logger
}

// NewRouter returns the complete handler.
func NewRouter(d Deps) http.Handler {
	log := d.Log

	txHandler := handlers.NewTransactionsHandler(d.Service, log)
	balHandler := handlers.NewBalancesHandler(d.Service, log)
	cfgHandler := handlers.NewConfigHandler(d.RateConfig, d.Resolver, log)
	importsHandler := handlers.NewImportsHandler(d.Service, d.Publisher, d.Storage, d.Bucket, d.Import, log)
	if d.MaxUploadBytes > 0 {
		importsHandler.MaxBytes = d.MaxUploadBytes
	}
	jobsHandler := handlers.NewJobsHandler(d.JobStore, log)
	reportsHandler := handlers.NewReportsHandler(d.Service, d.RateConfig, log)

	var ocrObserver handlers.OCRObserver
	if d.Metrics != nil {
		ocrObserver = d.Metrics
	}
	ocrHandler := handlers.NewOCRHandler(d.Extractor, ocrObserver, log)

	api := http.NewServeMux()

	ocrLimit := middleware.RateLimit(d.OCRRatePerMin, d.OCRBurst, log)
	api.Handle("POST /api/analizar-capture", ocrLimit(http.HandlerFunc(ocrHandler.AnalyzeCapture)))

	api.HandleFunc("GET /api/transactions", txHandler.ListTransactions)
	api.HandleFunc("POST /api/transactions", txHandler.CreateTransaction)
	api.HandleFunc("POST /api/transactions/bulk-delete", txHandler.BulkDelete)
	api.HandleFunc("GET /api/transactions/{id}", txHandler.GetTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", txHandler.UpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", txHandler.DeleteTransaction)
	api.HandleFunc("PATCH /api/transactions/{id}/status", txHandler.ChangeStatus)

	api.HandleFunc("GET /api/balances", balHandler.GetBalances)
	api.HandleFunc("GET /api/balances/stream", balHandler.StreamBalances)

	api.HandleFunc("GET /api/catalog", cfgHandler.Catalog)
	api.HandleFunc("GET /api/rates/resolve", cfgHandler.ResolveRate)
	api.HandleFunc("GET /api/config/rates", cfgHandler.GetRates)
	api.HandleFunc("PUT /api/config/tasa-venta", cfgHandler.SetTasaVenta)
	api.HandleFunc("PUT /api/config/tasa-cambio", cfgHandler.SetTasaCambio)
	api.HandleFunc("GET /api/config/stream", cfgHandler.StreamRates)

	api.HandleFunc("GET /api/imports/check", importsHandler.CheckImported)
	api.HandleFunc("POST /api/imports/upload", importsHandler.UploadSheet)
	api.HandleFunc("POST /api/imports", importsHandler.EnqueueImport)
	api.HandleFunc("DELETE /api/imports/{source}", importsHandler.ClearImported)

	api.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	api.HandleFunc("GET /api/jobs/{id}", jobsHandler.GetJob)

	api.HandleFunc("GET /api/reports/monthly", reportsHandler.Monthly)
	api.HandleFunc("GET /api/reports/categories", reportsHandler.Categories)
	api.HandleFunc("GET /api/reports/por-cobrar", reportsHandler.PorCobrar)
	api.HandleFunc("GET /api/reports/cambios", reportsHandler.Cambios)
	api.HandleFunc("GET /api/reports/general", reportsHandler.General)
	api.HandleFunc("GET /api/export/xlsx", reportsHandler.ExportXLSX)
	api.HandleFunc("GET /api/export/pdf", reportsHandler.ExportPDF)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		root.Handle("GET /metrics", d.Metrics.Handler())
	}
	root.Handle("/api/", middleware.Auth(d.JWTSecret, log)(api))

	// RequestID runs before Logger so every log line carries the id.
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
	}
	if d.Metrics != nil {
		chain = append(chain, middleware.Metrics(d.Metrics))
	}
	chain = append(chain, middleware.CORS)
	return middleware.Chain(root, chain...)
}
