package export

import (
	"fmt"
	"strings"

	"github.com/dvloznov/fx-ledger/internal/ledger"
)

// SummaryMarkdown renders the balance position and the monthly USD totals as
// Markdown, for terminal rendering.
func SummaryMarkdown(g ledger.General, monthly []ledger.Resumen) string {
	var b strings.Builder

	b.WriteString("# Resumen\n\n")
	b.WriteString("## Saldos\n\n")
	b.WriteString("| Moneda | Saldo |\n|---|---:|\n")
	fmt.Fprintf(&b, "| USD | %s |\n", Amount(g.USD))
	fmt.Fprintf(&b, "| USDT | %s |\n", Amount(g.USDT))
	fmt.Fprintf(&b, "| Bs | %s |\n", Amount(g.Bs))
	fmt.Fprintf(&b, "\nBs en USD: **%s**. Total en USD: **%s**.\n", Amount(g.BsToUSD), Amount(g.TotalUSD))

	b.WriteString("\n## Por mes (USD)\n\n")
	if len(monthly) == 0 {
		b.WriteString("_Sin transacciones._\n")
		return b.String()
	}
	b.WriteString("| Mes | Ingresos | Gastos | Compras | Ventas | Balance |\n|---|---:|---:|---:|---:|---:|\n")
	for _, m := range monthly {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			m.Mes, Amount(m.Ingresos), Amount(m.Gastos), Amount(m.Compras), Amount(m.Ventas), Amount(m.Balance))
	}
	return b.String()
}
