package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/gcs"
	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/jobs"
	"github.com/dvloznov/fx-ledger/internal/pipeline"
)

type otherJob struct{}

func (otherJob) GetID() string { return "x" }
func (otherJob) GetType() jobs.JobType { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestJobHandler(t *testing.T) {
	data := threeVentas(t)

	tests := []struct {
		name          string
		fetch         func() ([]byte, error)
		imported      int
		failCommit    bool
		wantErr       bool
		wantPermanent bool
		wantCreated   int
	}{
		{name: "success", fetch: func() ([]byte, error) { return data, nil }, wantCreated: 2},
		{name: "fetch fails is retryable", fetch: func() ([]byte, error) { return nil, errors.New("timeout") }, wantErr: true},
		{name: "missing object", fetch: func() ([]byte, error) { return nil, fmt.Errorf("FetchFromGCS: %w", gcs.ErrObjectNotFound) }, wantErr: true, wantPermanent: true},
		{name: "not a workbook", fetch: func() ([]byte, error) { return []byte("hello"), nil }, wantErr: true, wantPermanent: true},
		{name: "already imported", fetch: func() ([]byte, error) { return data, nil }, imported: 3, wantErr: true, wantPermanent: true},
		{name: "commit fails before any batch", fetch: func() ([]byte, error) { return data, nil }, failCommit: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := &MockStorageService{
				FetchFromGCSFunc: func(context.Context, string) ([]byte, error) { return tt.fetch() },
			}
			ledger := &MockLedger{
				CountImportedFunc: func(context.Context, string, domain.ImportSource) (int, error) {
					return tt.imported, nil
				},
				CreateTransactionsFunc: func(context.Context, []*domain.Transaction) error {
					if tt.failCommit {
						return errors.New("quota exceeded")
					}
					return nil
				},
			}
			var observed *importer.Summary
			handler := pipeline.JobHandler(pipeline.Deps{Storage: storage, Ledger: ledger}, func(s *importer.Summary) {
				observed = s
			})

			job := &jobs.ImportSheetJob{JobID: "j1", OwnerID: "u1", Source: domain.SourceVentas, GCSURI: "gs://sheets/v.xlsx"}
			err := handler(context.Background(), job)

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := jobs.IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err %v)", got, tt.wantPermanent, err)
			}
			if tt.wantCreated > 0 {
				if job.Summary == nil || job.Summary.Created != tt.wantCreated {
					t.Errorf("job summary = %+v", job.Summary)
				}
				if observed != job.Summary {
					t.Error("onSummary did not see the job summary")
				}
			}
		})
	}
}

func TestJobHandler_PartialCommitIsPermanent(t *testing.T) {
	calls := 0
	ledger := &MockLedger{
		CreateTransactionsFunc: func(context.Context, []*domain.Transaction) error {
			calls++
			if calls == 2 {
				return errors.New("quota exceeded")
			}
			return nil
		},
	}
	data := threeVentas(t)
	storage := &MockStorageService{
		FetchFromGCSFunc: func(context.Context, string) ([]byte, error) { return data, nil },
	}
	handler := pipeline.JobHandler(pipeline.Deps{Storage: storage, Ledger: ledger, BatchSize: 1}, nil)

	job := &jobs.ImportSheetJob{JobID: "j1", OwnerID: "u1", Source: domain.SourceVentas, GCSURI: "gs://sheets/v.xlsx"}
	err := handler(context.Background(), job)
	if !jobs.IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
	if job.Summary == nil || job.Summary.Created != 1 {
		t.Errorf("summary = %+v", job.Summary)
	}
}

func TestJobHandler_UnknownJob(t *testing.T) {
	handler := pipeline.JobHandler(pipeline.Deps{Ledger: &MockLedger{}}, nil)
	if err := handler(context.Background(), otherJob{}); !jobs.IsPermanent(err) {
		t.Errorf("err = %v, want permanent", err)
	}
}
