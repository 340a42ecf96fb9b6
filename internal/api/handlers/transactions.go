package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/service"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// TransactionsHandler handles the ledger record endpoints.
type TransactionsHandler struct {
	svc *service.Service
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *service.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// filterFromQuery reads tipo, importado, source, fecha, from, to, limit and
// order=asc|desc (newest first by default).
func filterFromQuery(r *http.Request) (store.Filter, string) {
	q := r.URL.Query()
	f := store.Filter{Newest: q.Get("order") != "asc"}

	if s := q.Get("tipo"); s != "" {
		tipo, err := domain.ParseTipo(s)
		if err != nil {
			return f, err.Error()
		}
		f.Tipo = tipo
	}
	if s := q.Get("importado"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return f, "importado must be true or false"
		}
		f.Importado = store.Bool(b)
	}
	if s := q.Get("source"); s != "" {
		src, err := domain.ParseImportSource(s)
		if err != nil {
			return f, err.Error()
		}
		f.ImportadoDesde = src
	}
	for key, dst := range map[string]*string{"fecha": &f.Fecha, "from": &f.From, "to": &f.To} {
		if s := q.Get(key); s != "" {
			if !domain.ValidDate(s) {
				return f, "Invalid " + key + " format, expected YYYY-MM-DD"
			}
			*dst = s
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, "Invalid limit"
		}
		f.Limit = n
	}
	return f, ""
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	f, problem := filterFromQuery(r)
	if problem != "" {
		middleware.WriteError(w, http.StatusBadRequest, problem)
		return
	}

	txs, err := h.svc.List(r.Context(), id.OwnerID, f)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var tx domain.Transaction
	if !decodeJSON(w, r, &tx) {
		return
	}
	tx.CreadoPor = id.Actor()
	tx.Importado = false
	tx.ImportadoDesde = ""

	created, err := h.svc.Create(r.Context(), id.OwnerID, &tx)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Get(r.Context(), id.OwnerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var tx domain.Transaction
	if !decodeJSON(w, r, &tx) {
		return
	}
	tx.ID = r.PathValue("id")

	updated, err := h.svc.Update(r.Context(), id.OwnerID, &tx)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id.OwnerID, r.PathValue("id")); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeStatus handles PATCH /api/transactions/{id}/status
func (h *TransactionsHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := domain.ParseCompraStatus(req.Status)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.svc.ChangeStatus(r.Context(), id.OwnerID, r.PathValue("id"), status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to change status")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// BulkDelete handles POST /api/transactions/bulk-delete. Partial failures
// are reported per id with status 200.
func (h *TransactionsHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "ids is required")
		return
	}

	res := h.svc.BulkDelete(r.Context(), id.OwnerID, req.IDs)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": res.Deleted,
		"failed":  res.FailedIDs(),
	})
}
