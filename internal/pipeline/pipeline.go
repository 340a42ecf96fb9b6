// Package pipeline imports a compras, gastos, ventas or cambios workbook for
// one owner: fetch, read, reconcile and commit in bounded batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// Request describes one import.
type Request struct {
	OwnerID   string
	CreadoPor string
	Source    domain.ImportSource
	GCSURI    string

	// Replace clears earlier imports of Source first. AllowDuplicates skips
	// the check entirely.
	Replace         bool
	AllowDuplicates bool
}

// Deps are the collaborators of an import run. Storage is only needed for
// ImportFromGCS and Rates falls back to the default configuration when nil.
type Deps struct {
	Storage   StorageService
	Rates     RateSource
	Ledger    Ledger
	BatchSize int
	Now       func() time.Time
}

// NewImportPipeline creates the standard six-step pipeline for sheet imports.
func NewImportPipeline(deps Deps) *Pipeline {
	size := deps.BatchSize
	if size <= 0 {
		size = store.MaxBatchSize
	}
	return NewPipeline(
		&FetchSheetStep{Storage: deps.Storage},
		&ReadSheetStep{},
		&LoadRatesStep{Rates: deps.Rates},
		&CheckExistingStep{Ledger: deps.Ledger},
		&ReconcileStep{Now: deps.Now},
		&CommitStep{Ledger: deps.Ledger, BatchSize: size},
	)
}

// ImportFromGCS imports the workbook stored at req.GCSURI.
func ImportFromGCS(ctx context.Context, deps Deps, req Request) (*importer.Summary, error) {
	if req.GCSURI == "" {
		return nil, errors.New("ImportFromGCS: gcs uri is required")
	}
	return run(ctx, deps, &PipelineState{Request: req})
}

// ImportBytes imports a workbook already in memory.
func ImportBytes(ctx context.Context, deps Deps, req Request, data []byte) (*importer.Summary, error) {
	if len(data) == 0 {
		return nil, errors.New("ImportBytes: empty workbook")
	}
	return run(ctx, deps, &PipelineState{Request: req, Data: data})
}

func run(ctx context.Context, deps Deps, state *PipelineState) (*importer.Summary, error) {
	if state.OwnerID == "" {
		return nil, store.ErrOwnerRequired
	}
	if !state.Source.Valid() {
		return nil, fmt.Errorf("unknown import source %q", state.Source)
	}
	if deps.Ledger == nil {
		return nil, errors.New("import pipeline: ledger is required")
	}

	log := logger.FromContext(ctx).With().
		Str("owner_id", state.OwnerID).
		Str("source", string(state.Source)).
		Logger()
	ctx = logger.WithContext(ctx, log)

	err := NewImportPipeline(deps).Execute(ctx, state)
	if err != nil {
		ev := log.Error().Err(err)
		if state.Summary != nil {
			ev = ev.Int("created", state.Summary.Created)
		}
		ev.Msg("Import failed")
		return state.Summary, err
	}

	log.Info().
		Int("rows", state.Summary.Total).
		Int("created", state.Summary.Created).
		Int("skipped", state.Summary.Skipped).
		Int("errors", len(state.Summary.Errors)).
		Int("batches", state.Summary.Batches).
		Msg("Import completed")
	return state.Summary, nil
}
