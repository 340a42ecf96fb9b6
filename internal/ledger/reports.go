package ledger

import (
	"math"
	"sort"
	"strings"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// ToUSD expresses |monto| in dollars using the owner's conversion factors.
func ToUSD(monto float64, moneda domain.Moneda, tc domain.TasaCambio) float64 {
	m := math.Abs(num(monto))
	switch moneda {
	case domain.USDT:
		return m * num(tc.UsdtToUsd)
	case domain.Bs:
		if num(tc.UsdToBs) <= 0 {
			return 0
		}
		return m / tc.UsdToBs
	}
	return m
}

// Resumen totals a period in USD.
type Resumen struct {
	Mes      string  `json:"mes,omitempty"`
	Ingresos float64 `json:"ingresos"`
	Gastos   float64 `json:"gastos"`
	Compras  float64 `json:"compras"`
	Ventas   float64 `json:"ventas"`
	Balance  float64 `json:"balance"`
}

func (r *Resumen) add(tx *domain.Transaction, tc domain.TasaCambio) {
	usd := ToUSD(tx.Monto, tx.Moneda, tc)
	switch tx.Tipo() {
	case domain.TipoIngreso:
		r.Ingresos += usd
	case domain.TipoGasto:
		r.Gastos += usd
	case domain.TipoCompra:
		r.Compras += usd
	case domain.TipoVenta:
		r.Ventas += usd
	}
}

func (r *Resumen) close() {
	r.Balance = r.Ingresos + r.Ventas - r.Gastos - r.Compras
}

// ResumenTotal sums every record into one Resumen.
func ResumenTotal(txs []*domain.Transaction, tc domain.TasaCambio) Resumen {
	var r Resumen
	for _, tx := range txs {
		if tx != nil {
			r.add(tx, tc)
		}
	}
	r.close()
	return r
}

// ResumenMensual groups records by YYYY-MM, most recent month first.
func ResumenMensual(txs []*domain.Transaction, tc domain.TasaCambio) []Resumen {
	byMonth := map[string]*Resumen{}
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		mes := monthOf(tx.Fecha)
		r, ok := byMonth[mes]
		if !ok {
			r = &Resumen{Mes: mes}
			byMonth[mes] = r
		}
		r.add(tx, tc)
	}

	out := make([]Resumen, 0, len(byMonth))
	for _, r := range byMonth {
		r.close()
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mes > out[j].Mes })
	return out
}

// CategoriaTotal is one row of a per-category breakdown.
type CategoriaTotal struct {
	Categoria string  `json:"categoria"`
	TotalUSD  float64 `json:"totalUsd"`
}

// PorCategoria totals records of the given tipo per categoria in USD, largest
// first. An empty tipo includes every record.
func PorCategoria(txs []*domain.Transaction, tipo domain.Tipo, tc domain.TasaCambio) []CategoriaTotal {
	totals := map[string]float64{}
	for _, tx := range txs {
		if tx == nil || (tipo != "" && tx.Tipo() != tipo) {
			continue
		}
		totals[tx.Categoria] += ToUSD(tx.Monto, tx.Moneda, tc)
	}

	out := make([]CategoriaTotal, 0, len(totals))
	for cat, total := range totals {
		out = append(out, CategoriaTotal{Categoria: cat, TotalUSD: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalUSD != out[j].TotalUSD {
			return out[i].TotalUSD > out[j].TotalUSD
		}
		return out[i].Categoria < out[j].Categoria
	})
	return out
}

// PorCobrar totals the purchases still awaiting payment.
type PorCobrar struct {
	Cantidad         int     `json:"cantidad"`
	TotalBs          float64 `json:"totalBs"`
	TotalUSD         float64 `json:"totalUsd"`
	TotalGananciaBs  float64 `json:"totalGananciaBs"`
	TotalGananciaUSD float64 `json:"totalGananciaUsd"`
}

// TotalPorCobrar sums the Compra records whose status is Por Cobrar.
func TotalPorCobrar(txs []*domain.Transaction) PorCobrar {
	var p PorCobrar
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		c, ok := tx.Compra()
		if !ok || c.Status != domain.StatusPorCobrar {
			continue
		}
		p.Cantidad++
		p.TotalBs += num(c.CompraBs)
		p.TotalUSD += num(c.CompraDolar)
		p.TotalGananciaBs += num(c.GananciaBs)
		p.TotalGananciaUSD += num(c.GananciaDolar)
	}
	return p
}

// ClienteResumen aggregates one client's purchases.
type ClienteResumen struct {
	Cliente   string  `json:"cliente"`
	Cantidad  int     `json:"cantidad"`
	TotalBs   float64 `json:"totalBs"`
	TotalUSD  float64 `json:"totalUsd"`
	PorCobrar float64 `json:"porCobrar"`
	Pagado    float64 `json:"pagado"`
}

// ResumenPorCliente groups Compra records by cliente, largest USD total first.
func ResumenPorCliente(txs []*domain.Transaction) []ClienteResumen {
	byClient := map[string]*ClienteResumen{}
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		c, ok := tx.Compra()
		if !ok {
			continue
		}
		r, ok := byClient[c.Cliente]
		if !ok {
			r = &ClienteResumen{Cliente: c.Cliente}
			byClient[c.Cliente] = r
		}
		usd := num(c.CompraDolar)
		r.Cantidad++
		r.TotalBs += num(c.CompraBs)
		r.TotalUSD += usd
		if c.Status == domain.StatusPorCobrar {
			r.PorCobrar += usd
		} else {
			r.Pagado += usd
		}
	}

	out := make([]ClienteResumen, 0, len(byClient))
	for _, r := range byClient {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalUSD != out[j].TotalUSD {
			return out[i].TotalUSD > out[j].TotalUSD
		}
		return out[i].Cliente < out[j].Cliente
	})
	return out
}

// General converts the Bs balance with the sale rate and totals everything in USD.
type General struct {
	Balances
	BsToUSD  float64 `json:"bsToUsd"`
	TotalUSD float64 `json:"totalUsd"`
}

// BalanceGeneral values b at tasaVenta Bs per dollar. A non-positive rate
// values the Bs position at 0.
func BalanceGeneral(b Balances, tasaVenta float64) General {
	g := General{Balances: b}
	if t := num(tasaVenta); t > 0 {
		g.BsToUSD = num(b.Bs) / t
	}
	g.TotalUSD = num(b.USD) + num(b.USDT) + g.BsToUSD
	return g
}

func monthOf(fecha string) string {
	parts := strings.SplitN(fecha, "-", 3)
	if len(parts) < 2 {
		return fecha
	}
	return parts[0] + "-" + parts[1]
}
