package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/ledger"
	"github.com/dvloznov/fx-ledger/internal/service"
)

// BalancesHandler serves the running USD, USDT and Bs balances.
type BalancesHandler struct {
	svc *service.Service
	log zerolog.Logger

	// Heartbeat is the idle interval between stream keep-alives.
	Heartbeat time.Duration
}

// NewBalancesHandler creates a new balances handler.
func NewBalancesHandler(svc *service.Service, log zerolog.Logger) *BalancesHandler {
	return &BalancesHandler{svc: svc, log: log, Heartbeat: heartbeatInterval}
}

func variantFrom(r *http.Request) (ledger.Variant, bool) {
	switch v := ledger.Variant(r.URL.Query().Get("variant")); v {
	case "":
		return ledger.VariantBase, true
	case ledger.VariantBase, ledger.VariantImports:
		return v, true
	default:
		return "", false
	}
}

// GetBalances handles GET /api/balances?variant=base|imports
func (h *BalancesHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	v, ok := variantFrom(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "variant must be base or imports")
		return
	}

	b, err := h.svc.Balances(r.Context(), id.OwnerID, v)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to compute balances")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, b)
}

// StreamBalances handles GET /api/balances/stream. It sends the balances
// once, then again after every change to the owner's records.
func (h *BalancesHandler) StreamBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	v, ok := variantFrom(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "variant must be base or imports")
		return
	}

	// Subscribe before the first read so no change falls in between.
	changes, cancel := h.svc.Subscribe(id.OwnerID)
	defer cancel()

	ctx := r.Context()
	stream := startStream(w)
	send := func() bool {
		b, err := h.svc.Balances(ctx, id.OwnerID, v)
		if err != nil {
			h.log.Error().Err(err).Str("owner_id", id.OwnerID).Msg("Failed to compute balances for stream")
			return stream.Send("error", map[string]string{"error": "Failed to compute balances"}) == nil
		}
		return stream.Send("balances", b) == nil
	}
	if !send() {
		return
	}

	ticker := time.NewTicker(h.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-changes:
			if !open || !send() {
				return
			}
		case <-ticker.C:
			if stream.Heartbeat() != nil {
				return
			}
		}
	}
}
