package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/export"
	"github.com/dvloznov/fx-ledger/internal/ledger"
	"github.com/dvloznov/fx-ledger/internal/rateconfig"
	"github.com/dvloznov/fx-ledger/internal/service"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType  = "application/pdf"
)

// ReportsHandler serves the aggregate reports and the file exports. Every
// report accepts the same filters as the transaction list.
type ReportsHandler struct {
	svc *service.Service
	cfg *rateconfig.Service
	log zerolog.Logger

	Now func() time.Time
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(svc *service.Service, cfg *rateconfig.Service, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{svc: svc, cfg: cfg, log: log, Now: time.Now}
}

// load reads the filtered records and the rate configuration.
func (h *ReportsHandler) load(w http.ResponseWriter, r *http.Request) (middleware.Identity, []*domain.Transaction, domain.RateConfig, bool) {
	id, ok := identity(w, r)
	if !ok {
		return id, nil, domain.RateConfig{}, false
	}
	f, problem := filterFromQuery(r)
	if problem != "" {
		middleware.WriteError(w, http.StatusBadRequest, problem)
		return id, nil, domain.RateConfig{}, false
	}
	// Reports aggregate; tipo selects within a report, not the input set.
	f.Tipo = ""

	txs, err := h.svc.List(r.Context(), id.OwnerID, f)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return id, nil, domain.RateConfig{}, false
	}
	cfg, err := h.cfg.Get(r.Context(), id.OwnerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to read rate configuration")
		return id, nil, domain.RateConfig{}, false
	}
	return id, txs, cfg, true
}

// Monthly handles GET /api/reports/monthly
func (h *ReportsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	_, txs, cfg, ok := h.load(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"meses": ledger.ResumenMensual(txs, cfg.TasaCambio),
		"total": ledger.ResumenTotal(txs, cfg.TasaCambio),
	})
}

// Categories handles GET /api/reports/categories?tipo= (Gasto by default).
func (h *ReportsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	tipo := domain.TipoGasto
	if s := r.URL.Query().Get("tipo"); s != "" {
		t, err := domain.ParseTipo(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		tipo = t
	}
	_, txs, cfg, ok := h.load(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tipo":       tipo,
		"categorias": ledger.PorCategoria(txs, tipo, cfg.TasaCambio),
	})
}

// PorCobrar handles GET /api/reports/por-cobrar
func (h *ReportsHandler) PorCobrar(w http.ResponseWriter, r *http.Request) {
	_, txs, _, ok := h.load(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":    ledger.TotalPorCobrar(txs),
		"clientes": ledger.ResumenPorCliente(txs),
	})
}

// Cambios handles GET /api/reports/cambios
func (h *ReportsHandler) Cambios(w http.ResponseWriter, r *http.Request) {
	_, txs, _, ok := h.load(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"estadisticas": ledger.EstadisticasCambios(txs),
		"mensual":      ledger.ResumenMensualCambios(txs),
	})
}

// General handles GET /api/reports/general?variant=: balances valued in USD
// at the configured sale rate.
func (h *ReportsHandler) General(w http.ResponseWriter, r *http.Request) {
	v, ok := variantFrom(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "variant must be base or imports")
		return
	}
	_, txs, cfg, ok := h.load(w, r)
	if !ok {
		return
	}
	b := ledger.Compute(v, txs)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"general":   ledger.BalanceGeneral(b, cfg.TasaVenta.Valor),
		"tasaVenta": cfg.TasaVenta,
	})
}

// ExportXLSX handles GET /api/export/xlsx
func (h *ReportsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	id, txs, _, ok := h.load(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteExcel(&buf, txs); err != nil {
		h.log.Error().Err(err).Msg("Failed to write workbook")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export")
		return
	}
	h.attach(w, export.Filename("contabilidad", id.Actor(), "xlsx", h.Now()), xlsxContentType, buf.Bytes())
}

// ExportPDF handles GET /api/export/pdf
func (h *ReportsHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	id, txs, _, ok := h.load(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, export.ReportTitle(id.Actor()), txs); err != nil {
		h.log.Error().Err(err).Msg("Failed to write PDF")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export")
		return
	}
	h.attach(w, export.Filename("reporte", id.Actor(), "pdf", h.Now()), pdfContentType, buf.Bytes())
}

func (h *ReportsHandler) attach(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.log.Warn().Err(err).Str("filename", filename).Msg("Failed to write export")
	}
}
