// Package importer turns spreadsheet rows from the compras, gastos, ventas and
// cambios workbooks into ledger records.
package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/ledger"
)

// Context carries the values a row mapping needs beyond the row itself.
type Context struct {
	OwnerID   string
	CreadoPor string
	// TasaVenta is the fallback sale rate for gastos rows without one.
	TasaVenta float64
	Now       time.Time
}

// Result is the outcome of reconciling one sheet.
type Result struct {
	Created []*domain.Transaction
	Errors  []string
	Skipped int
	Total   int
}

// errEmptyRow marks a row with no date or no amounts. It is counted, not
// reported.
var errEmptyRow = errors.New("empty row")

// mapper converts one data row into zero or more records.
type mapper func(row Row, index int, ctx Context) ([]*domain.Transaction, error)

func mapperFor(source domain.ImportSource) (mapper, error) {
	switch source {
	case domain.SourceCompras:
		return mapCompra, nil
	case domain.SourceGastos:
		return mapGasto, nil
	case domain.SourceVentas:
		return mapVenta, nil
	case domain.SourceCambios:
		return mapCambio, nil
	}
	return nil, fmt.Errorf("no mapping available for source %q", source)
}

// Reconcile maps every row of a source sheet. Row problems never abort the
// run: empty rows are counted as skipped and malformed rows are reported as
// "Fila N: ..." where N is the spreadsheet row number (the header is row 1).
func Reconcile(rows []Row, source domain.ImportSource, ctx Context) (*Result, error) {
	m, err := mapperFor(source)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}

	res := &Result{Total: len(rows)}
	for i, row := range rows {
		txs, err := m(row, i, ctx)
		switch {
		case errors.Is(err, errEmptyRow):
			res.Skipped++
			continue
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("Fila %d: %v", i+2, err))
			continue
		}
		for _, tx := range txs {
			tx.OwnerID = ctx.OwnerID
			tx.CreadoPor = ctx.CreadoPor
			tx.CreadoEn = ctx.Now
			tx.Importado = true
			tx.ImportadoDesde = source
		}
		res.Created = append(res.Created, txs...)
	}
	return res, nil
}

// fields parses numeric columns, collecting the first problem.
type fields struct {
	row Row
	err error
}

func (f *fields) num(cols ...string) float64 {
	raw := f.row.Get(cols...)
	n, err := ParseNumber(raw)
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("%s: %w", cols[0], err)
	}
	return n
}

// fecha returns the parsed date, or "" when the column is blank.
func (f *fields) fecha(cols ...string) string {
	raw := f.row.Get(cols...)
	if raw == "" {
		return ""
	}
	d, err := ParseDate(raw)
	if err != nil && f.err == nil {
		f.err = err
	}
	return d
}

func (f *fields) hora(cols ...string) string {
	h, err := ParseTime(f.row.Get(cols...))
	if err != nil && f.err == nil {
		f.err = err
	}
	return h
}

func mapCompra(row Row, _ int, _ Context) ([]*domain.Transaction, error) {
	f := &fields{row: row}
	fecha := f.fecha("Fecha")
	compraBs := f.num("Depositos")
	comision := f.num("Comision Banco.", "Comision Banco")
	tasa := f.num("TASA", "Tasa")
	compraDolar := f.num("COMPRA $")
	gananciaBs := f.num("Ganancia en Bs")
	gananciaDolar := f.num("Ganancia en Dolar")
	tasaVenta := f.num("Tasa Venta")
	if f.err != nil {
		return nil, f.err
	}
	cliente := row.Get("Cliente")
	if fecha == "" || cliente == "" || (compraBs == 0 && compraDolar == 0) {
		return nil, errEmptyRow
	}
	status, err := domain.ParseCompraStatus(row.Get("Status"))
	if err != nil {
		return nil, err
	}

	if comision == 0 {
		comision = compraBs * domain.ComisionBancoRate
	}
	if compraDolar == 0 {
		compraDolar = ledger.DeriveCompra(compraBs, tasa, tasaVenta).CompraDolar
	}

	return []*domain.Transaction{{
		Fecha:       fecha,
		Monto:       compraDolar,
		Moneda:      domain.USD,
		Descripcion: fmt.Sprintf("Compra - Cliente: %s (Importado)", cliente),
		Categoria:   domain.CategoriaCompra,
		Cuenta:      domain.CuentaOperaciones,
		Detail: &domain.Compra{
			CompraBs:      compraBs,
			Tasa:          tasa,
			CompraDolar:   compraDolar,
			TasaVenta:     tasaVenta,
			GananciaBs:    gananciaBs,
			GananciaDolar: gananciaDolar,
			ComisionBanco: comision,
			Status:        status,
			Cliente:       cliente,
			Operador:      row.Get("Operador"),
		},
	}}, nil
}

func mapGasto(row Row, index int, ctx Context) ([]*domain.Transaction, error) {
	f := &fields{row: row}
	fecha := f.fecha("Fecha")
	hora := f.hora("Hora")
	gastoDolar := f.num("Gasto en $", "Gasto en", "gasto en $")
	tasa := f.num("Tasa de venta", "Tasa Venta", "tasa de venta")
	porCategoria := make(map[string]float64, len(domain.CategoriasGasto))
	for _, cat := range domain.CategoriasGasto {
		porCategoria[cat] = f.num(cat)
	}
	if f.err != nil {
		return nil, f.err
	}
	if fecha == "" {
		return nil, errEmptyRow
	}
	if tasa == 0 {
		tasa = ctx.TasaVenta
	}

	descripcion := row.Get("Descripcion", "descripcion")
	if descripcion == "" {
		descripcion = fmt.Sprintf("Gasto %d", index+1)
	}

	gasto := func(categoria string, monto float64) *domain.Transaction {
		return &domain.Transaction{
			Fecha:       fecha,
			Hora:        hora,
			Monto:       monto,
			Moneda:      domain.USD,
			Descripcion: descripcion,
			Categoria:   categoria,
			Cuenta:      domain.CuentaGeneral,
			Detail:      &domain.Gasto{GastoDolar: monto, TasaUsada: tasa, Total: monto * tasa},
		}
	}

	var out []*domain.Transaction
	for _, cat := range domain.CategoriasGasto {
		if v := porCategoria[cat]; v != 0 {
			out = append(out, gasto(cat, v))
		}
	}
	if len(out) == 0 && gastoDolar != 0 {
		out = append(out, gasto(domain.CategoriaSinCategoria, gastoDolar))
	}
	if len(out) == 0 {
		return nil, errEmptyRow
	}
	return out, nil
}

func mapVenta(row Row, _ int, _ Context) ([]*domain.Transaction, error) {
	f := &fields{row: row}
	fecha := f.fecha("Fecha")
	hora := f.hora("Hora")
	ventaUsd := f.num("VENTA $")
	tasa := f.num("Tasa")
	recibidoBs := f.num("Recibido en CTA")
	if f.err != nil {
		return nil, f.err
	}
	if fecha == "" || ventaUsd == 0 {
		return nil, errEmptyRow
	}

	d := ledger.DeriveVenta(ventaUsd, tasa)
	if recibidoBs == 0 {
		recibidoBs = d.MontoBs
	}

	return []*domain.Transaction{{
		Fecha:       fecha,
		Hora:        hora,
		Monto:       ventaUsd,
		Moneda:      domain.USDT,
		Descripcion: fmt.Sprintf("Venta Binance - %.2f USDT @ %s (Importado)", ventaUsd, trimFloat(tasa)),
		Categoria:   domain.CategoriaVenta,
		Cuenta:      domain.CuentaBinance,
		Detail: &domain.Venta{
			MontoUSDT:       ventaUsd,
			TasaVenta:       tasa,
			ComisionBinance: d.ComisionBinance,
			UsdtNeto:        d.UsdtNeto,
			MontoBs:         recibidoBs,
			CuentaDestino:   domain.CuentaProvincial,
		},
	}}, nil
}

func mapCambio(row Row, _ int, _ Context) ([]*domain.Transaction, error) {
	f := &fields{row: row}
	fecha := f.fecha("fecha", "Fecha")
	hora := f.hora("hora", "Hora")
	usd := f.num("usd", "USD")
	usdt := f.num("usdt", "USDT")
	comision := f.num("Comision", "comision")
	if f.err != nil {
		return nil, f.err
	}
	if fecha == "" || usd == 0 || usdt == 0 {
		return nil, errEmptyRow
	}

	d := ledger.DeriveCambio(usd, usdt, comision)
	descripcion := row.Get("Descripcion", "descripcion")
	if descripcion == "" {
		descripcion = fmt.Sprintf("Cambio USD→USDT - %.2f USD → %.2f USDT", usd, usdt)
	}

	return []*domain.Transaction{{
		Fecha:       fecha,
		Hora:        hora,
		Monto:       usd,
		Moneda:      domain.USD,
		Descripcion: descripcion,
		Categoria:   domain.CategoriaCambio,
		Cuenta:      domain.CuentaBinance,
		Detail: &domain.Cambio{
			MontoUSD:           usd,
			MontoUSDT:          usdt,
			Comision:           d.Comision,
			ComisionPorcentaje: d.ComisionPorcentaje,
			TasaCambio:         d.TasaCambio,
			Usuario:            row.Get("Usuario Cambiador"),
		},
	}}, nil
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
