package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/config"
	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/export"
	"github.com/dvloznov/fx-ledger/internal/gcsuploader"
	"github.com/dvloznov/fx-ledger/internal/infra"
	"github.com/dvloznov/fx-ledger/internal/ledger"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/pipeline"
	"github.com/dvloznov/fx-ledger/internal/rateconfig"
	"github.com/dvloznov/fx-ledger/internal/rates"
	"github.com/dvloznov/fx-ledger/internal/service"
	"github.com/dvloznov/fx-ledger/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.NewFromFormat(cfg.LogFormat)

	switch os.Args[1] {
	case "import":
		runImport(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "balance":
		runBalance(cfg, log)
	case "summary":
		runSummary(cfg, log)
	case "export":
		runExport(cfg, log)
	case "clear-imported":
		runClearImported(cfg, log)
	case "rate":
		runRate(cfg, log)
	case "token":
		runToken(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FX Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import          Import a local ventas/compras/gastos workbook")
	fmt.Println("  upload          Upload a file to GCS")
	fmt.Println("  balance         Print the USD, USDT and Bs balances")
	fmt.Println("  summary         Render balances and monthly totals")
	fmt.Println("  export          Write an xlsx or pdf export")
	fmt.Println("  clear-imported  Delete every imported record of a source")
	fmt.Println("  rate            Resolve the sale rate for a date, or set it")
	fmt.Println("  token           Issue a bearer token for the API")
	fmt.Println("  help            Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// app holds the services every ledger command shares.
type app struct {
	store    store.Store
	svc      *service.Service
	rates    *rateconfig.Service
	resolver *rates.Resolver
}

func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) *app {
	st, err := infra.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn().Msg("STORE_BACKEND is memory - nothing will persist")
	}
	resolver := rates.NewResolver(st, cfg.Location)
	cfgSvc := rateconfig.NewService(st)
	svc := service.New(st, resolver)
	svc.SaleRates = cfgSvc
	return &app{
		store:    st,
		svc:      svc,
		rates:    cfgSvc,
		resolver: resolver,
	}
}

func (a *app) Close() {
	a.svc.Close()
	a.rates.Close()
	a.store.Close()
}

// ownerFlags registers the flags naming whose ledger a command works on.
func ownerFlags(fs *flag.FlagSet) (owner, email *string) {
	owner = fs.String("owner", os.Getenv("FX_OWNER"), "Owner ID (or set FX_OWNER)")
	email = fs.String("email", os.Getenv("FX_EMAIL"), "Email recorded as creator (or set FX_EMAIL)")
	return owner, email
}

func requireOwner(log zerolog.Logger, owner string) {
	if owner == "" {
		log.Fatal().Msg("Error: -owner is required")
	}
}

func runImport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	owner, email := ownerFlags(fs)
	source := fs.String("source", "", "Sheet source: ventas, compras or gastos")
	filePath := fs.String("file", "", "Path to the local .xlsx workbook")
	replace := fs.Bool("replace", false, "Clear earlier imports of the source first")
	force := fs.Bool("force", false, "Import even if the source was imported before")
	fs.Parse(os.Args[2:])

	requireOwner(log, *owner)
	if *filePath == "" {
		log.Fatal().Msg("Usage: cli import -owner ID -source ventas|compras|gastos -file PATH")
	}
	src, err := domain.ParseImportSource(*source)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid source")
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read workbook")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	creator := *email
	if creator == "" {
		creator = *owner
	}
	summary, err := pipeline.ImportBytes(ctx, pipeline.Deps{Rates: a.rates, Ledger: a.svc}, pipeline.Request{
		OwnerID:         *owner,
		CreadoPor:       creator,
		Source:          src,
		Replace:         *replace,
		AllowDuplicates: *force,
	}, data)
	if summary != nil {
		fmt.Printf("Source:   %s\n", summary.Source)
		fmt.Printf("Rows:     %d\n", summary.Total)
		fmt.Printf("Created:  %d\n", summary.Created)
		fmt.Printf("Skipped:  %d\n", summary.Skipped)
		if summary.Replaced > 0 {
			fmt.Printf("Replaced: %d\n", summary.Replaced)
		}
		for _, e := range summary.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (or set GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to the local file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runBalance(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	owner, _ := ownerFlags(fs)
	variant := fs.String("variant", string(ledger.VariantBase), "Balance rules: base or imports")
	fs.Parse(os.Args[2:])
	requireOwner(log, *owner)

	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	b, err := a.svc.Balances(ctx, *owner, ledger.Variant(*variant))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute balances")
	}
	fmt.Printf("USD:  %s\n", export.Amount(b.USD))
	fmt.Printf("USDT: %s\n", export.Amount(b.USDT))
	fmt.Printf("Bs:   %s\n", export.Amount(b.Bs))
}

func runSummary(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	owner, _ := ownerFlags(fs)
	variant := fs.String("variant", string(ledger.VariantBase), "Balance rules: base or imports")
	plain := fs.Bool("plain", false, "Print Markdown without rendering")
	fs.Parse(os.Args[2:])
	requireOwner(log, *owner)

	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	txs, err := a.svc.List(ctx, *owner, store.Filter{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}
	rc, err := a.rates.Get(ctx, *owner)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read rate configuration")
	}

	general := ledger.BalanceGeneral(ledger.Compute(ledger.Variant(*variant), txs), rc.TasaVenta.Valor)
	md := export.SummaryMarkdown(general, ledger.ResumenMensual(txs, rc.TasaCambio))
	if *plain {
		fmt.Print(md)
		return
	}
	out, err := glamour.Render(md, "auto")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render summary")
	}
	fmt.Print(out)
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	owner, email := ownerFlags(fs)
	format := fs.String("format", "xlsx", "Export format: xlsx or pdf")
	out := fs.String("out", "", "Output path (defaults to the generated filename)")
	archive := fs.Bool("archive", false, "Also upload the export to GCS_BUCKET")
	fs.Parse(os.Args[2:])
	requireOwner(log, *owner)

	who := *email
	if who == "" {
		who = *owner
	}
	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	txs, err := a.svc.List(ctx, *owner, store.Filter{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	var buf bytes.Buffer
	var filename string
	now := time.Now()
	switch strings.ToLower(*format) {
	case "xlsx":
		err = export.WriteExcel(&buf, txs)
		filename = export.Filename("contabilidad", who, "xlsx", now)
	case "pdf":
		err = export.WritePDF(&buf, export.ReportTitle(who), txs)
		filename = export.Filename("reporte", who, "pdf", now)
	default:
		log.Fatal().Str("format", *format).Msg("Error: -format must be xlsx or pdf")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	path := *out
	if path == "" {
		path = filename
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write export")
	}
	fmt.Printf("Wrote %d transactions to %s\n", len(txs), path)

	if !*archive {
		return
	}
	if !cfg.UploadsEnabled() {
		log.Fatal().Msg("Error: -archive requires GCS_BUCKET")
	}
	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer storage.Close()

	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	object := gcsuploader.ExportObjectName(*owner, ext, now)
	uri, err := storage.Upload(ctx, cfg.GCSBucket, object, gcsuploader.ContentTypeFor(filename), bytes.NewReader(buf.Bytes()))
	if err != nil {
		log.Fatal().Err(err).Msg("Archive upload failed")
	}
	fmt.Printf("Archived to %s\n", uri)
}

func runClearImported(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("clear-imported", flag.ExitOnError)
	owner, _ := ownerFlags(fs)
	source := fs.String("source", "", "Sheet source: ventas, compras or gastos")
	fs.Parse(os.Args[2:])
	requireOwner(log, *owner)

	src, err := domain.ParseImportSource(*source)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid source")
	}

	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	res, err := a.svc.ClearImported(ctx, *owner, src)
	if err != nil {
		log.Fatal().Err(err).Int("deleted", len(res.Deleted)).Msg("Clear failed")
	}
	fmt.Printf("Deleted %d imported %s records\n", len(res.Deleted), src)
	for id, ferr := range res.Failed {
		fmt.Printf("  failed %s: %v\n", id, ferr)
	}
}

func runRate(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	owner, _ := ownerFlags(fs)
	fecha := fs.String("fecha", "", "Date to resolve, YYYY-MM-DD (defaults to today)")
	set := fs.Float64("set", 0, "Store this value as the configured sale rate instead")
	fs.Parse(os.Args[2:])
	requireOwner(log, *owner)

	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	if *set != 0 {
		rc, err := a.rates.SetTasaVenta(ctx, *owner, *set)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set sale rate")
		}
		fmt.Printf("Tasa de venta: %s\n", export.Amount(rc.TasaVenta.Valor))
		return
	}

	date := *fecha
	if date == "" {
		date = time.Now().In(cfg.Location).Format(time.DateOnly)
	}
	res, err := a.resolver.Resolve(ctx, date, *owner)
	if err != nil {
		log.Fatal().Err(err).Str("fecha", date).Msg("No rate available")
	}
	fmt.Printf("Fecha:  %s\n", date)
	fmt.Printf("Tasa:   %s\n", export.Amount(res.Rate))
	fmt.Printf("Estado: %s\n", res.State)
	if res.SourceDate != "" {
		fmt.Printf("Origen: %s %s\n", res.SourceDate, res.SourceTime)
	}
	fmt.Println(res.Message)
}

func runToken(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	owner, email := ownerFlags(fs)
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	fs.Parse(os.Args[2:])
	requireOwner(log, *owner)

	if cfg.AuthJWTSecret == "" {
		log.Fatal().Msg("Error: AUTH_JWT_SECRET is not set")
	}
	token, err := middleware.GenerateToken(*owner, *email, cfg.AuthJWTSecret, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}
	fmt.Println(token)
}
