package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/logger"
)

// ErrAlreadyImported is returned when the owner already has records imported
// from the same source and the request neither replaces nor allows duplicates.
var ErrAlreadyImported = errors.New("source already imported")

// ErrBadWorkbook is returned when the bytes cannot be read as a workbook.
var ErrBadWorkbook = errors.New("unreadable workbook")

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Request

	Data      []byte
	Rows      []importer.Row
	TasaVenta float64
	Replaced  int

	Result  *importer.Result
	Commit  importer.CommitResult
	Summary *importer.Summary
}

// Step 1: FetchSheetStep downloads the workbook unless bytes were given.
type FetchSheetStep struct {
	Storage StorageService
}

func (s *FetchSheetStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Data) > 0 {
		return nil
	}
	if state.GCSURI == "" {
		return errors.New("fetch sheet: no data and no gcs uri")
	}
	if s.Storage == nil {
		return errors.New("fetch sheet: storage is not configured")
	}
	data, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("fetch sheet: %w", err)
	}
	state.Data = data
	return nil
}

// Step 2: ReadSheetStep parses the first worksheet into header-keyed rows.
type ReadSheetStep struct{}

func (s *ReadSheetStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := importer.ReadSheet(bytes.NewReader(state.Data))
	if err != nil {
		return fmt.Errorf("read sheet: %w: %w", ErrBadWorkbook, err)
	}
	state.Rows = rows
	log := logger.FromContext(ctx)
	log.Debug().Int("rows", len(rows)).Msg("Sheet read")
	return nil
}

// Step 3: LoadRatesStep loads the current sale rate used as the gastos fallback.
type LoadRatesStep struct {
	Rates RateSource
}

func (s *LoadRatesStep) Execute(ctx context.Context, state *PipelineState) error {
	cfg := domain.DefaultRateConfig()
	if s.Rates != nil {
		var err error
		cfg, err = s.Rates.Get(ctx, state.OwnerID)
		if err != nil {
			return fmt.Errorf("load rates: %w", err)
		}
	}
	state.TasaVenta = cfg.TasaVenta.Valor
	return nil
}

// Step 4: CheckExistingStep guards against importing the same source twice.
type CheckExistingStep struct {
	Ledger Ledger
}

func (s *CheckExistingStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.AllowDuplicates {
		return nil
	}
	n, err := s.Ledger.CountImported(ctx, state.OwnerID, state.Source)
	if err != nil {
		return fmt.Errorf("check existing: %w", err)
	}
	if n == 0 {
		return nil
	}
	if !state.Replace {
		return fmt.Errorf("%w: %d records from %s", ErrAlreadyImported, n, state.Source)
	}

	res, err := s.Ledger.ClearImported(ctx, state.OwnerID, state.Source)
	state.Replaced = len(res.Deleted)
	if err != nil {
		return fmt.Errorf("check existing: replacing: %w", err)
	}
	return nil
}

// Step 5: ReconcileStep maps rows into records.
type ReconcileStep struct {
	Now func() time.Time
}

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	res, err := importer.Reconcile(state.Rows, state.Source, importer.Context{
		OwnerID:   state.OwnerID,
		CreadoPor: state.CreadoPor,
		TasaVenta: state.TasaVenta,
		Now:       now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	state.Result = res
	return nil
}

// Step 6: CommitStep writes the records in bounded batches. The summary is
// filled in even when a batch fails, so callers can report partial progress.
type CommitStep struct {
	Ledger    Ledger
	BatchSize int
}

func (s *CommitStep) Execute(ctx context.Context, state *PipelineState) error {
	c, err := importer.CommitBatches(ctx, s.Ledger, state.Result.Created, s.BatchSize)
	state.Commit = c
	state.Summary = importer.NewSummary(state.Source, state.Result, c)
	state.Summary.Replaced = state.Replaced
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Pipeline runs steps in order over one state.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
