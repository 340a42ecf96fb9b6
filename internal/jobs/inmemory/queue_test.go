package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.ImportSheetJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), id)
	t.Fatalf("job %s never reached %q, last = %+v", id, want, job)
	return nil
}

func newTestQueue(store *Store) *Queue {
	q := NewQueue(10, store)
	q.Workers = 2
	q.RetryDelay = time.Millisecond
	return q
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx := context.Background()

	err := q.Start(ctx, func(_ context.Context, j jobs.Job) error {
		job := j.(*jobs.ImportSheetJob)
		job.Summary = &importer.Summary{Source: job.Source, Created: 3}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer q.Stop(ctx)

	job := &jobs.ImportSheetJob{OwnerID: "u1", Source: domain.SourceVentas, GCSURI: "gs://b/o.xlsx"}
	if err := q.PublishImportSheet(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != 3 {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Summary == nil || done.Summary.Created != 3 {
		t.Errorf("summary = %+v", done.Summary)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not set")
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx := context.Background()

	var attempts atomic.Int32
	_ = q.Start(ctx, func(context.Context, jobs.Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	defer q.Stop(ctx)

	job := &jobs.ImportSheetJob{OwnerID: "u1", Source: domain.SourceCompras}
	if err := q.PublishImportSheet(ctx, job); err != nil {
		t.Fatal(err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 2 || attempts.Load() != 3 {
		t.Errorf("retry count = %d, attempts = %d", done.RetryCount, attempts.Load())
	}
}

func TestQueue_GivesUp(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		maxRetries   int
		wantAttempts int32
	}{
		{"permanent error", jobs.Permanent(errors.New("partial commit")), 3, 1},
		{"retries exhausted", errors.New("transient"), 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			q := newTestQueue(store)
			ctx := context.Background()

			var attempts atomic.Int32
			_ = q.Start(ctx, func(context.Context, jobs.Job) error {
				attempts.Add(1)
				return tt.err
			})
			defer q.Stop(ctx)

			job := &jobs.ImportSheetJob{OwnerID: "u1", Source: domain.SourceGastos, MaxRetries: tt.maxRetries}
			if err := q.PublishImportSheet(ctx, job); err != nil {
				t.Fatal(err)
			}

			failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
			if failed.Error == "" {
				t.Error("error message not recorded")
			}
			// Give a wrongly scheduled retry the chance to run.
			time.Sleep(20 * time.Millisecond)
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestQueue_ClosedRejectsPublish(t *testing.T) {
	q := newTestQueue(NewStore())
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.PublishImportSheet(context.Background(), &jobs.ImportSheetJob{}); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting a closed queue")
	}
}

func TestStore_ListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*jobs.ImportSheetJob{
		{JobID: "a", OwnerID: "u1", Source: domain.SourceVentas, Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", OwnerID: "u1", Source: domain.SourceCompras, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour)},
		{JobID: "c", OwnerID: "u1", Source: domain.SourceVentas, Status: jobs.JobStatusPending, CreatedAt: base.Add(2 * time.Hour)},
		{JobID: "d", OwnerID: "u2", Source: domain.SourceVentas, Status: jobs.JobStatusPending, CreatedAt: base},
	}
	for _, j := range seed {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"owner newest first", jobs.JobFilter{OwnerID: "u1"}, []string{"c", "b", "a"}},
		{"source", jobs.JobFilter{OwnerID: "u1", Source: domain.SourceVentas}, []string{"c", "a"}},
		{"status", jobs.JobFilter{Status: jobs.JobStatusPending}, []string{"c", "d"}},
		{"limit offset", jobs.JobFilter{OwnerID: "u1", Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", jobs.JobFilter{OwnerID: "u1", Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("ids = %v, want %v", ids, tt.want)
				}
			}
		})
	}

	if _, err := s.GetJob(ctx, "zzz"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
	if err := s.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatal(err)
	}
	if j, _ := s.GetJob(ctx, "a"); j.Status != jobs.JobStatusFailed || j.Error != "boom" {
		t.Errorf("job = %+v", j)
	}
}
