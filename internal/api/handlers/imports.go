package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/gcs"
	"github.com/dvloznov/fx-ledger/internal/gcsuploader"
	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/jobs"
	"github.com/dvloznov/fx-ledger/internal/pipeline"
	"github.com/dvloznov/fx-ledger/internal/service"
)

// DefaultMaxUploadBytes bounds an uploaded workbook.
const DefaultMaxUploadBytes = 10 << 20

var zipMagic = []byte("PK\x03\x04")

// ImportsHandler handles workbook uploads and imported-record housekeeping.
//
// With storage and a publisher configured, uploads are stored in the bucket
// and imported by a background job. Without them the workbook is imported
// during the request.
type ImportsHandler struct {
	svc       *service.Service
	publisher jobs.Publisher
	storage   gcs.StorageService
	bucket    string
	deps      pipeline.Deps
	log       zerolog.Logger

	MaxBytes int64
	Now      func() time.Time
}

// NewImportsHandler creates a new imports handler. publisher and storage may
// be nil; deps is used for in-request imports.
func NewImportsHandler(svc *service.Service, publisher jobs.Publisher, storage gcs.StorageService, bucket string, deps pipeline.Deps, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		svc:       svc,
		publisher: publisher,
		storage:   storage,
		bucket:    bucket,
		deps:      deps,
		log:       log,
		MaxBytes:  DefaultMaxUploadBytes,
		Now:       time.Now,
	}
}

func (h *ImportsHandler) async() bool {
	return h.publisher != nil && h.storage != nil && h.bucket != ""
}

func sourceParam(w http.ResponseWriter, s string) (domain.ImportSource, bool) {
	src, err := domain.ParseImportSource(s)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "source must be one of compras, gastos, ventas, cambios")
		return "", false
	}
	return src, true
}

// CheckImported handles GET /api/imports/check?source=
func (h *ImportsHandler) CheckImported(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	src, ok := sourceParam(w, r.URL.Query().Get("source"))
	if !ok {
		return
	}
	n, err := h.svc.CountImported(r.Context(), id.OwnerID, src)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to count imported records")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source": src,
		"count":  n,
		"exists": n > 0,
	})
}

// readWorkbook takes the "file" part of a multipart form, or else the raw body.
func (h *ImportsHandler) readWorkbook(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	filename := r.URL.Query().Get("filename")

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		src = f
		if filename == "" {
			filename = hdr.Filename
		}
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", err
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return nil, "", errors.New("file is not an .xlsx workbook")
	}
	return data, filename, nil
}

// UploadSheet handles POST /api/imports/upload?source=&replace=&force=
func (h *ImportsHandler) UploadSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	src, ok := sourceParam(w, q.Get("source"))
	if !ok {
		return
	}
	req := pipeline.Request{
		OwnerID:         id.OwnerID,
		CreadoPor:       id.Actor(),
		Source:          src,
		Replace:         queryBool(r, "replace"),
		AllowDuplicates: queryBool(r, "force"),
	}

	data, filename, err := h.readWorkbook(w, r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filename == "" {
		filename = string(src) + ".xlsx"
	}

	// Refuse early so the client can ask before replacing.
	if !req.Replace && !req.AllowDuplicates {
		n, err := h.svc.CountImported(r.Context(), id.OwnerID, src)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to count imported records")
			return
		}
		if n > 0 {
			middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
				"error":  "Ya existen registros importados desde " + string(src),
				"source": src,
				"count":  n,
			})
			return
		}
	}

	if !h.async() {
		summary, err := pipeline.ImportBytes(r.Context(), h.deps, req, data)
		h.writeImportResult(w, summary, err)
		return
	}

	object := gcsuploader.SheetObjectName(id.OwnerID, src, filename, h.Now())
	uri, err := h.storage.Upload(r.Context(), h.bucket, object, gcsuploader.ContentTypeFor(filename), bytes.NewReader(data))
	if err != nil {
		h.log.Error().Err(err).Str("object", object).Msg("Failed to upload workbook")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	h.log.Info().
		Str("owner_id", id.OwnerID).
		Str("gcs_uri", uri).
		Int("bytes", len(data)).
		Msg("Workbook uploaded")

	req.GCSURI = uri
	h.enqueue(w, r, req, filename)
}

// EnqueueImport handles POST /api/imports for a workbook already in the bucket.
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body struct {
		GCSURI          string `json:"gcs_uri"`
		Source          string `json:"source"`
		Filename        string `json:"filename"`
		Replace         bool   `json:"replace"`
		AllowDuplicates bool   `json:"allow_duplicates"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	src, ok := sourceParam(w, body.Source)
	if !ok {
		return
	}
	if !h.async() {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Background imports are not configured")
		return
	}
	bucket, object, err := gcsuploader.ParseGCSURI(body.GCSURI)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if bucket != h.bucket || !gcsuploader.OwnsObject(id.OwnerID, object) {
		middleware.WriteError(w, http.StatusForbidden, "gcs_uri is not one of your uploads")
		return
	}

	filename := body.Filename
	if filename == "" {
		filename = gcsuploader.ExtractFilenameFromGCSURI(body.GCSURI)
	}
	h.enqueue(w, r, pipeline.Request{
		OwnerID:         id.OwnerID,
		CreadoPor:       id.Actor(),
		Source:          src,
		GCSURI:          body.GCSURI,
		Replace:         body.Replace,
		AllowDuplicates: body.AllowDuplicates,
	}, filename)
}

func (h *ImportsHandler) enqueue(w http.ResponseWriter, r *http.Request, req pipeline.Request, filename string) {
	job := &jobs.ImportSheetJob{
		OwnerID:         req.OwnerID,
		Source:          req.Source,
		GCSURI:          req.GCSURI,
		Filename:        filename,
		CreadoPor:       req.CreadoPor,
		Replace:         req.Replace,
		AllowDuplicates: req.AllowDuplicates,
	}
	if err := h.publisher.PublishImportSheet(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", string(req.Source)).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": job.GCSURI,
		"status":  string(job.Status),
	})
}

func (h *ImportsHandler) writeImportResult(w http.ResponseWriter, summary *importer.Summary, err error) {
	if err == nil {
		middleware.WriteJSON(w, http.StatusOK, summary)
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Import failed")
	}
	middleware.WriteJSON(w, status, map[string]interface{}{
		"error":   err.Error(),
		"summary": summary,
	})
}

// ClearImported handles DELETE /api/imports/{source}
func (h *ImportsHandler) ClearImported(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	src, ok := sourceParam(w, r.PathValue("source"))
	if !ok {
		return
	}

	res, err := h.svc.ClearImported(r.Context(), id.OwnerID, src)
	body := map[string]interface{}{
		"source":  src,
		"deleted": len(res.Deleted),
		"failed":  res.FailedIDs(),
	}
	if err != nil {
		h.log.Error().Err(err).Str("source", string(src)).Msg("Failed to clear imported records")
		body["error"] = "Failed to clear imported records"
		middleware.WriteJSON(w, http.StatusInternalServerError, body)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, body)
}
