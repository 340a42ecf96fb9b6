package ledger

import (
	"fmt"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// CompraFields are the values derived from a purchase's inputs.
type CompraFields struct {
	ComisionBanco float64 `json:"comisionBanco"`
	CompraDolar   float64 `json:"compraDolar"`
	GananciaBs    float64 `json:"gananciaBs"`
	GananciaDolar float64 `json:"gananciaDolar"`
}

// DeriveCompra computes commission, dollar amount and profit versus the sale
// rate. A non-positive tasa yields zero dollar amount and zero profit.
func DeriveCompra(compraBs, tasa, tasaVenta float64) CompraFields {
	compraBs, tasa, tasaVenta = num(compraBs), num(tasa), num(tasaVenta)

	f := CompraFields{ComisionBanco: compraBs * domain.ComisionBancoRate}
	if tasa <= 0 {
		return f
	}
	f.CompraDolar = compraBs / tasa
	f.GananciaBs = f.CompraDolar*tasaVenta - compraBs
	f.GananciaDolar = f.GananciaBs / tasa
	return f
}

// VentaFields are the values derived from a sale's inputs.
type VentaFields struct {
	ComisionBinance float64 `json:"comisionBinance"`
	UsdtNeto        float64 `json:"usdtNeto"`
	MontoBs         float64 `json:"montoBs"`
}

// DeriveVenta applies the exchange commission and converts the net USDT to Bs.
func DeriveVenta(montoUSDT, tasaVenta float64) VentaFields {
	montoUSDT, tasaVenta = num(montoUSDT), num(tasaVenta)
	comision := montoUSDT * domain.ComisionBinanceRate
	neto := montoUSDT - comision
	return VentaFields{
		ComisionBinance: comision,
		UsdtNeto:        neto,
		MontoBs:         neto * tasaVenta,
	}
}

// DeriveGastoDolar returns the dollar equivalent of an expense. USD and USDT
// are taken 1:1; Bs is divided by tasa, or 0 when no positive tasa is known.
func DeriveGastoDolar(monto float64, moneda domain.Moneda, tasa float64) float64 {
	monto, tasa = num(monto), num(tasa)
	if moneda != domain.Bs {
		return monto
	}
	if tasa <= 0 {
		return 0
	}
	return monto / tasa
}

// CambioFields are the values derived from a USD to USDT exchange.
type CambioFields struct {
	Comision           float64 `json:"comision"`
	ComisionPorcentaje float64 `json:"comisionPorcentaje"`
	TasaCambio         float64 `json:"tasaCambio"`
}

// DeriveCambio uses an explicit positive commission when given, otherwise the
// difference between the USD handed over and the USDT received.
func DeriveCambio(usd, usdt, comision float64) CambioFields {
	usd, usdt, comision = num(usd), num(usdt), num(comision)
	if comision <= 0 {
		comision = usd - usdt
	}
	f := CambioFields{Comision: comision}
	if usd > 0 {
		f.TasaCambio = usdt / usd
		f.ComisionPorcentaje = comision / usd * 100
	}
	return f
}

// ApplyDerived recomputes every derived field of tx in place, so a record is
// never persisted half-derived. Monto and Moneda are normalized for the kinds
// whose primary amount is itself derived.
func ApplyDerived(tx *domain.Transaction) error {
	switch d := tx.Detail.(type) {
	case *domain.Compra:
		f := DeriveCompra(d.CompraBs, d.Tasa, d.TasaVenta)
		d.ComisionBanco = f.ComisionBanco
		d.CompraDolar = f.CompraDolar
		d.GananciaBs = f.GananciaBs
		d.GananciaDolar = f.GananciaDolar
		if d.Status == "" {
			d.Status = domain.StatusPorCobrar
		}
		tx.Monto = f.CompraDolar
		tx.Moneda = domain.USD
	case *domain.Venta:
		f := DeriveVenta(d.MontoUSDT, d.TasaVenta)
		d.ComisionBinance = f.ComisionBinance
		d.UsdtNeto = f.UsdtNeto
		d.MontoBs = f.MontoBs
		tx.Monto = num(d.MontoUSDT)
		tx.Moneda = domain.USDT
	case *domain.Gasto:
		d.GastoDolar = DeriveGastoDolar(tx.Monto, tx.Moneda, d.TasaUsada)
		switch {
		case tx.Moneda == domain.Bs:
			d.Total = num(tx.Monto)
		case num(d.TasaUsada) > 0:
			d.Total = num(tx.Monto) * d.TasaUsada
		default:
			d.Total = 0
		}
	case *domain.Cambio:
		f := DeriveCambio(d.MontoUSD, d.MontoUSDT, d.Comision)
		d.Comision = f.Comision
		d.ComisionPorcentaje = f.ComisionPorcentaje
		d.TasaCambio = f.TasaCambio
		tx.Monto = num(d.MontoUSD)
		tx.Moneda = domain.USD
	case *domain.Ingreso:
	default:
		return fmt.Errorf("ApplyDerived: unsupported detail %T", tx.Detail)
	}
	return nil
}
