// Package ledger folds transaction sets into balances, derived fields and
// report projections. Everything here is pure and recomputed from scratch.
package ledger

import (
	"math"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// Balances are the three running currency positions.
type Balances struct {
	USD  float64 `json:"usd"`
	USDT float64 `json:"usdt"`
	Bs   float64 `json:"bs"`
}

// Variant selects which folding rules apply.
type Variant string

const (
	// VariantBase counts manually entered records only.
	VariantBase Variant = "base"
	// VariantImports also counts imported records using per-source rules.
	VariantImports Variant = "imports"
)

// Compute dispatches to the fold for v. Unknown variants use the base fold.
func Compute(v Variant, txs []*domain.Transaction) Balances {
	if v == VariantImports {
		return ComputeBalancesWithImports(txs)
	}
	return ComputeBalances(txs)
}

// ComputeBalances is the live-dashboard fold. Imported records and Cambio
// records are ignored. A Compra always debits its Bs deposit but credits USD
// only once its status is Pagado.
func ComputeBalances(txs []*domain.Transaction) Balances {
	var b Balances
	for _, tx := range txs {
		if tx == nil || tx.Importado {
			continue
		}
		b.applyManual(tx)
	}
	return b.sanitize()
}

// ComputeBalancesWithImports folds every record. Manual records follow the
// base rules plus Cambio; imported records follow the rule of their source.
func ComputeBalancesWithImports(txs []*domain.Transaction) Balances {
	var b Balances
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if tx.Importado {
			b.applyImported(tx)
			continue
		}
		if c, ok := tx.Cambio(); ok {
			b.applyCambio(c)
			continue
		}
		b.applyManual(tx)
	}
	return b.sanitize()
}

func (b *Balances) applyManual(tx *domain.Transaction) {
	switch d := tx.Detail.(type) {
	case *domain.Venta:
		b.applyVenta(tx, d)
	case *domain.Gasto:
		amount := math.Abs(num(tx.Monto))
		if tx.Moneda == domain.Bs && num(d.Total) != 0 {
			amount = math.Abs(num(d.Total))
		}
		b.add(tx.Moneda, -amount)
	case *domain.Compra:
		b.Bs -= num(d.CompraBs)
		if d.Status == domain.StatusPagado {
			credit := num(tx.Monto)
			if credit == 0 {
				credit = num(d.CompraDolar)
			}
			b.USD += credit
		}
	case *domain.Ingreso:
		b.add(tx.Moneda, num(tx.Monto))
	}
}

func (b *Balances) applyImported(tx *domain.Transaction) {
	switch d := tx.Detail.(type) {
	case *domain.Compra:
		// Principal was reconciled outside the ledger; only profit is credited.
		b.Bs -= num(d.CompraBs)
		if d.Status == domain.StatusPagado {
			b.USD += num(d.GananciaDolar)
		}
	case *domain.Gasto:
		amount := num(d.GastoDolar)
		if amount == 0 {
			amount = num(tx.Monto)
		}
		b.USDT -= math.Abs(amount)
	case *domain.Venta:
		b.applyVenta(tx, d)
	case *domain.Cambio:
		b.applyCambio(d)
	case *domain.Ingreso:
		b.add(tx.Moneda, num(tx.Monto))
	}
}

func (b *Balances) applyVenta(tx *domain.Transaction, v *domain.Venta) {
	usdt := num(v.MontoUSDT)
	if usdt == 0 {
		usdt = num(tx.Monto)
	}
	b.USDT -= usdt
	b.Bs += num(v.MontoBs)
}

func (b *Balances) applyCambio(c *domain.Cambio) {
	b.USD -= num(c.MontoUSD)
	b.USDT += num(c.MontoUSDT)
}

func (b *Balances) add(m domain.Moneda, amount float64) {
	switch m {
	case domain.USD:
		b.USD += amount
	case domain.USDT:
		b.USDT += amount
	case domain.Bs:
		b.Bs += amount
	}
}

func (b Balances) sanitize() Balances {
	return Balances{USD: num(b.USD), USDT: num(b.USDT), Bs: num(b.Bs)}
}

// num coerces NaN and infinities to 0 so bad input never poisons a fold.
func num(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
