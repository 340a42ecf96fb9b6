package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Tipo identifies the kind of a transaction.
type Tipo string

const (
	TipoIngreso Tipo = "Ingreso"
	TipoGasto   Tipo = "Gasto"
	TipoCompra  Tipo = "Compra"
	TipoVenta   Tipo = "Venta"
	TipoCambio  Tipo = "Cambio"
)

// Tipos lists every transaction kind.
var Tipos = []Tipo{TipoIngreso, TipoGasto, TipoCompra, TipoVenta, TipoCambio}

// ParseTipo matches s against the known kinds, ignoring case.
func ParseTipo(s string) (Tipo, error) {
	for _, t := range Tipos {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tipo %q", s)
}

// Moneda is the currency a record's Monto is expressed in.
type Moneda string

const (
	USD  Moneda = "USD"
	USDT Moneda = "USDT"
	Bs   Moneda = "Bs"
)

// ParseMoneda accepts the stored spellings, including the legacy "BS".
func ParseMoneda(s string) (Moneda, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USD", "$":
		return USD, nil
	case "USDT":
		return USDT, nil
	case "BS", "BS.", "VES":
		return Bs, nil
	}
	return "", fmt.Errorf("unknown moneda %q", s)
}

func (m Moneda) Valid() bool {
	return m == USD || m == USDT || m == Bs
}

// CompraStatus tracks whether the client has paid a purchase.
type CompraStatus string

const (
	StatusPagado    CompraStatus = "Pagado"
	StatusPorCobrar CompraStatus = "Por Cobrar"
)

// ErrInvalidStatusTransition is returned when a status change is not allowed.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// ParseCompraStatus accepts "Pagado", "Por Cobrar" and "PorCobrar" in any case.
// Blank input yields Por Cobrar.
func ParseCompraStatus(s string) (CompraStatus, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch norm {
	case "", "porcobrar":
		return StatusPorCobrar, nil
	case "pagado":
		return StatusPagado, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s CompraStatus) Valid() bool {
	return s == StatusPagado || s == StatusPorCobrar
}

// CanTransitionTo reports whether a Compra may move from s to next.
func (s CompraStatus) CanTransitionTo(next CompraStatus) bool {
	switch s {
	case StatusPorCobrar:
		return next == StatusPagado
	case StatusPagado:
		return next == StatusPorCobrar
	}
	return false
}

// ImportSource names the spreadsheet family a record was imported from.
type ImportSource string

const (
	SourceCompras ImportSource = "compras"
	SourceGastos  ImportSource = "gastos"
	SourceVentas  ImportSource = "ventas"
	SourceCambios ImportSource = "cambios"
)

// ImportSources lists every import source.
var ImportSources = []ImportSource{SourceCompras, SourceGastos, SourceVentas, SourceCambios}

func ParseImportSource(s string) (ImportSource, error) {
	src := ImportSource(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", fmt.Errorf("unknown import source %q", s)
	}
	return src, nil
}

func (s ImportSource) Valid() bool {
	switch s {
	case SourceCompras, SourceGastos, SourceVentas, SourceCambios:
		return true
	}
	return false
}
