package rates

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// latestScan bounds how many recent sales Latest inspects looking for one
// that carries a rate.
const latestScan = 20

// SameDay matches a sale recorded on the queried date. Manually entered sales
// win over imported ones; among equals the latest hora wins.
type SameDay struct {
	Source VentaSource
}

func (SameDay) Name() string { return "same_day" }

func (s SameDay) Resolve(ctx context.Context, q Query) (Result, bool, error) {
	ventas, err := s.Source.ListTransactions(ctx, store.Filter{
		OwnerID: q.OwnerID,
		Tipo:    domain.TipoVenta,
		Fecha:   q.Fecha.String(),
		Newest:  true,
	})
	if err != nil {
		return Result{}, false, err
	}

	var best *domain.Transaction
	for _, tx := range ventas {
		if rateOf(tx) <= 0 {
			continue
		}
		// Newest first, so the first record of each kind has the latest hora.
		if best == nil || (best.Importado && !tx.Importado) {
			best = tx
		}
	}
	if best == nil {
		return Result{}, false, nil
	}
	return Result{
		Rate:       rateOf(best),
		SourceDate: best.Fecha,
		SourceTime: horaOf(best),
		State:      StateFound,
		Message:    fmt.Sprintf("Tasa encontrada para %s", q.Fecha),
	}, true, nil
}

// Latest applies only when the queried date is today. It uses the most recent
// sale on any date, flagging it as stale when older than MaxRecentAge days.
type Latest struct {
	Source VentaSource
}

func (Latest) Name() string { return "latest" }

func (s Latest) Resolve(ctx context.Context, q Query) (Result, bool, error) {
	if !q.IsToday() {
		return Result{}, false, nil
	}

	ventas, err := s.Source.ListTransactions(ctx, store.Filter{
		OwnerID: q.OwnerID,
		Tipo:    domain.TipoVenta,
		Newest:  true,
		Limit:   latestScan,
	})
	if err != nil {
		return Result{}, false, err
	}

	var latest *domain.Transaction
	for _, tx := range ventas {
		if rateOf(tx) > 0 {
			latest = tx
			break
		}
	}
	if latest == nil {
		return Result{
			State:       StateNoRate,
			Message:     "No hay tasas registradas. Por favor registra una venta primero.",
			NeedsUpdate: true,
		}, true, nil
	}

	res := Result{SourceDate: latest.Fecha, SourceTime: horaOf(latest)}
	if age := ageInDays(latest.Fecha, q.Today); age > MaxRecentAge {
		res.State = StateStale
		res.StaleRate = rateOf(latest)
		res.NeedsUpdate = true
		res.Message = fmt.Sprintf("La última tasa es del %s. Por favor registra una venta de hoy.", latest.Fecha)
		return res, true, nil
	}
	res.State = StateRecent
	res.Rate = rateOf(latest)
	res.Message = fmt.Sprintf("Usando última tasa del %s", latest.Fecha)
	return res, true, nil
}

// Historical is terminal: past dates never borrow a rate from another day.
type Historical struct{}

func (Historical) Name() string { return "historical" }

func (Historical) Resolve(_ context.Context, q Query) (Result, bool, error) {
	return Result{
		State:       StateHistoricalNoRate,
		Message:     fmt.Sprintf("No hay ventas registradas para %s. Ingresa la tasa manualmente.", q.Fecha),
		AllowManual: true,
	}, true, nil
}

func rateOf(tx *domain.Transaction) float64 {
	if v, ok := tx.Venta(); ok {
		return v.TasaVenta
	}
	return 0
}

func horaOf(tx *domain.Transaction) string {
	if tx.Hora == "" {
		return "00:00"
	}
	return tx.Hora
}

// ageInDays is the absolute distance between fecha and today. An unparseable
// fecha counts as infinitely old.
func ageInDays(fecha string, today civil.Date) int {
	d, err := civil.ParseDate(fecha)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	n := today.DaysSince(d)
	if n < 0 {
		n = -n
	}
	return n
}
