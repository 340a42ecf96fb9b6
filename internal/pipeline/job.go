package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/fx-ledger/internal/gcs"
	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/jobs"
	"github.com/dvloznov/fx-ledger/internal/logger"
)

// JobHandler runs queued import jobs through ImportFromGCS. The job's Summary
// is set on every run that got far enough to produce one, and onSummary (when
// non-nil) observes it.
//
// Failures that a retry cannot fix are marked jobs.Permanent: an already
// imported source, a missing object, an unreadable workbook, and any run that
// committed records, since retrying it would import them twice.
func JobHandler(deps Deps, onSummary func(*importer.Summary)) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		j, ok := job.(*jobs.ImportSheetJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log := logger.FromContext(ctx)
		log.Info().
			Str("gcs_uri", j.GCSURI).
			Int("attempt", j.RetryCount+1).
			Msg("Processing import job")

		summary, err := ImportFromGCS(ctx, deps, Request{
			OwnerID:         j.OwnerID,
			CreadoPor:       j.CreadoPor,
			Source:          j.Source,
			GCSURI:          j.GCSURI,
			Replace:         j.Replace,
			AllowDuplicates: j.AllowDuplicates,
		})
		if summary != nil {
			j.Summary = summary
			if onSummary != nil {
				onSummary(summary)
			}
		}
		if err == nil {
			return nil
		}

		switch {
		case errors.Is(err, ErrAlreadyImported), errors.Is(err, ErrBadWorkbook), errors.Is(err, gcs.ErrObjectNotFound):
			return jobs.Permanent(err)
		case summary != nil && summary.Created > 0:
			return jobs.Permanent(fmt.Errorf("partial import (%d records committed): %w", summary.Created, err))
		}
		return err
	}
}
