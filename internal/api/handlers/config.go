package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/rateconfig"
	"github.com/dvloznov/fx-ledger/internal/rates"
)

// RateResolver resolves the sale rate for a date. *rates.Resolver satisfies it.
type RateResolver interface {
	Resolve(ctx context.Context, fecha, ownerID string) (rates.Result, error)
}

// ConfigHandler serves the rate configuration and rate resolution.
type ConfigHandler struct {
	cfg      *rateconfig.Service
	resolver RateResolver
	log      zerolog.Logger

	// Heartbeat is the idle interval between stream keep-alives.
	Heartbeat time.Duration
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(cfg *rateconfig.Service, resolver RateResolver, log zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, resolver: resolver, log: log, Heartbeat: heartbeatInterval}
}

// GetRates handles GET /api/config/rates
func (h *ConfigHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	cfg, err := h.cfg.Get(r.Context(), id.OwnerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to read rate configuration")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cfg)
}

// SetTasaVenta handles PUT /api/config/tasa-venta
func (h *ConfigHandler) SetTasaVenta(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req struct {
		Valor float64 `json:"valor"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cfg, err := h.cfg.SetTasaVenta(r.Context(), id.OwnerID, req.Valor)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update tasa de venta")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cfg)
}

// SetTasaCambio handles PUT /api/config/tasa-cambio
func (h *ConfigHandler) SetTasaCambio(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req struct {
		UsdToBs   float64 `json:"usdToBs"`
		UsdtToUsd float64 `json:"usdtToUsd"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cfg, err := h.cfg.SetTasaCambio(r.Context(), id.OwnerID, req.UsdToBs, req.UsdtToUsd)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update tasas de cambio")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cfg)
}

// StreamRates handles GET /api/config/stream. It sends the configuration
// once, then after every update.
func (h *ConfigHandler) StreamRates(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	updates, cancel := h.cfg.Subscribe(id.OwnerID)
	defer cancel()

	ctx := r.Context()
	cfg, err := h.cfg.Get(ctx, id.OwnerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to read rate configuration")
		return
	}

	stream := startStream(w)
	if stream.Send("config", cfg) != nil {
		return
	}

	ticker := time.NewTicker(h.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, open := <-updates:
			if !open || stream.Send("config", cfg) != nil {
				return
			}
		case <-ticker.C:
			if stream.Heartbeat() != nil {
				return
			}
		}
	}
}

// ResolveRate handles GET /api/rates/resolve?fecha=YYYY-MM-DD
func (h *ConfigHandler) ResolveRate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	fecha := r.URL.Query().Get("fecha")
	if !domain.ValidDate(fecha) {
		middleware.WriteError(w, http.StatusBadRequest, "fecha is required as YYYY-MM-DD")
		return
	}

	res, err := h.resolver.Resolve(r.Context(), fecha, id.OwnerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to resolve rate")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Catalog handles GET /api/catalog: the fixed category and account lists.
func (h *ConfigHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categoriasGasto": domain.CategoriasGasto,
		"cuentas":         domain.CuentasBanco,
		"monedas":         []domain.Moneda{domain.USD, domain.USDT, domain.Bs},
	})
}
