// Package handlers implements the HTTP endpoints of the ledger API. Every
// /api handler reads the caller from middleware.IdentityFrom and only ever
// touches that owner's data.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/jobs"
	"github.com/dvloznov/fx-ledger/internal/pipeline"
	"github.com/dvloznov/fx-ledger/internal/rateconfig"
	"github.com/dvloznov/fx-ledger/internal/service"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// maxJSONBody caps ordinary JSON request bodies.
const maxJSONBody = 1 << 20

// identity returns the caller or writes a 401.
func identity(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return middleware.Identity{}, false
	}
	return id, true
}

// decodeJSON reads a bounded JSON body into dst or writes a 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps domain and service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStatusTransition), errors.Is(err, pipeline.ErrAlreadyImported):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrOwnerRequired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalid), errors.Is(err, service.ErrNotCompra),
		errors.Is(err, rateconfig.ErrInvalidRate), errors.Is(err, store.ErrBatchTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs server-side failures and writes the mapped status.
// Client errors carry the error text, server errors a generic message.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	middleware.WriteError(w, status, err.Error())
}

func queryInt(r *http.Request, key string) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}. Another owner's job is reported as missing.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil || job.OwnerID != id.OwnerID {
		if err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
			h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		}
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		OwnerID: id.OwnerID,
		Source:  domain.ImportSource(query.Get("source")),
		Status:  jobs.JobStatus(query.Get("status")),
	}
	if limit, ok := queryInt(r, "limit"); ok {
		filter.Limit = limit
	}
	if offset, ok := queryInt(r, "offset"); ok {
		filter.Offset = offset
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ImportSheetJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
