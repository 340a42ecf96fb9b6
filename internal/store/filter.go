package store

import (
	"sort"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// Filter selects records by equality on the indexed fields. Zero values mean
// "any". From and To bound Fecha inclusively.
type Filter struct {
	OwnerID        string
	Tipo           domain.Tipo
	Fecha          string
	From           string
	To             string
	Importado      *bool
	ImportadoDesde domain.ImportSource

	// Newest orders by fecha desc, hora desc. The default is fecha asc, hora asc.
	Newest bool
	Limit  int
}

// Bool returns a pointer to b, for Filter.Importado.
func Bool(b bool) *bool { return &b }

// Matches reports whether tx satisfies every predicate of f.
func (f Filter) Matches(tx *domain.Transaction) bool {
	switch {
	case f.OwnerID != "" && tx.OwnerID != f.OwnerID:
		return false
	case f.Tipo != "" && tx.Tipo() != f.Tipo:
		return false
	case f.Fecha != "" && tx.Fecha != f.Fecha:
		return false
	case f.From != "" && tx.Fecha < f.From:
		return false
	case f.To != "" && tx.Fecha > f.To:
		return false
	case f.Importado != nil && tx.Importado != *f.Importado:
		return false
	case f.ImportadoDesde != "" && tx.ImportadoDesde != f.ImportadoDesde:
		return false
	}
	return true
}

// Apply filters, orders and limits txs in memory. Backends without a query
// engine use it directly.
func (f Filter) Apply(txs []*domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	SortByFechaHora(out, f.Newest)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SortByFechaHora orders by fecha then hora, treating a blank hora as 00:00.
// Ties keep their original order.
func SortByFechaHora(txs []*domain.Transaction, desc bool) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := sortKey(txs[i]), sortKey(txs[j])
		if desc {
			return a > b
		}
		return a < b
	})
}

// SortByID orders records by ID.
func SortByID(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
}

func sortKey(tx *domain.Transaction) string {
	hora := tx.Hora
	if hora == "" {
		hora = "00:00"
	}
	return tx.Fecha + " " + hora
}
