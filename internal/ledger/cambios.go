package ledger

import (
	"sort"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

const usuarioDesconocido = "Sin especificar"

// CambioRef points at one exchange record and the value it was ranked by.
type CambioRef struct {
	ID      string  `json:"id"`
	Fecha   string  `json:"fecha"`
	Usuario string  `json:"usuario"`
	Valor   float64 `json:"valor"`
}

// DiaCambios aggregates the exchanges of one date.
type DiaCambios struct {
	Fecha    string  `json:"fecha,omitempty"`
	Cantidad int     `json:"cantidad"`
	TotalUSD float64 `json:"totalUSD"`
}

// UsuarioCambios aggregates the exchanges done by one exchanger.
type UsuarioCambios struct {
	Nombre    string  `json:"nombre,omitempty"`
	Cantidad  int     `json:"cantidad"`
	TotalUSD  float64 `json:"totalUSD"`
	TotalUSDT float64 `json:"totalUSDT"`
}

// CambioStats summarizes USD to USDT exchanges.
type CambioStats struct {
	TotalCambios        int                       `json:"totalCambios"`
	TotalUSD            float64                   `json:"totalUSD"`
	TotalUSDT           float64                   `json:"totalUSDT"`
	TotalComision       float64                   `json:"totalComision"`
	PromedioComision    float64                   `json:"promedioComision"`
	CambioMasAlto       *CambioRef                `json:"cambioMasAlto,omitempty"`
	CambioMasBajo       *CambioRef                `json:"cambioMasBajo,omitempty"`
	MejorTasa           *CambioRef                `json:"mejorTasa,omitempty"`
	PeorTasa            *CambioRef                `json:"peorTasa,omitempty"`
	DiaConMasCambios    DiaCambios                `json:"diaConMasCambios"`
	UsuarioTop          UsuarioCambios            `json:"usuarioTop"`
	CambiosPorFecha     map[string]DiaCambios     `json:"cambiosPorFecha"`
	CambiosPorUsuario   map[string]UsuarioCambios `json:"cambiosPorUsuario"`
	TasaPromedioGeneral float64                   `json:"tasaPromedioGeneral"`
}

// cambiosOf returns the exchange records, both imported and manual.
func cambiosOf(txs []*domain.Transaction) []*domain.Transaction {
	var out []*domain.Transaction
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if _, ok := tx.Cambio(); ok {
			out = append(out, tx)
		}
	}
	return out
}

// EstadisticasCambios returns nil when there are no exchange records.
func EstadisticasCambios(txs []*domain.Transaction) *CambioStats {
	cambios := cambiosOf(txs)
	if len(cambios) == 0 {
		return nil
	}

	s := &CambioStats{
		TotalCambios:      len(cambios),
		CambiosPorFecha:   map[string]DiaCambios{},
		CambiosPorUsuario: map[string]UsuarioCambios{},
	}
	for _, tx := range cambios {
		c, _ := tx.Cambio()
		usd, usdt := num(c.MontoUSD), num(c.MontoUSDT)
		tasa := num(c.TasaCambio)
		usuario := c.Usuario
		if usuario == "" {
			usuario = usuarioDesconocido
		}
		ref := func(v float64) *CambioRef {
			return &CambioRef{ID: tx.ID, Fecha: tx.Fecha, Usuario: usuario, Valor: v}
		}

		s.TotalUSD += usd
		s.TotalUSDT += usdt
		s.TotalComision += num(c.Comision)

		if usd > 0 && (s.CambioMasAlto == nil || usd > s.CambioMasAlto.Valor) {
			s.CambioMasAlto = ref(usd)
		}
		if usd > 0 && (s.CambioMasBajo == nil || usd < s.CambioMasBajo.Valor) {
			s.CambioMasBajo = ref(usd)
		}
		if tasa > 0 && (s.MejorTasa == nil || tasa > s.MejorTasa.Valor) {
			s.MejorTasa = ref(tasa)
		}
		if tasa > 0 && (s.PeorTasa == nil || tasa < s.PeorTasa.Valor) {
			s.PeorTasa = ref(tasa)
		}

		d := s.CambiosPorFecha[tx.Fecha]
		d.Cantidad++
		d.TotalUSD += usd
		s.CambiosPorFecha[tx.Fecha] = d

		u := s.CambiosPorUsuario[usuario]
		u.Cantidad++
		u.TotalUSD += usd
		u.TotalUSDT += usdt
		s.CambiosPorUsuario[usuario] = u
	}

	// Map order is random; walk keys sorted so ties resolve to the earliest.
	for _, fecha := range sortedKeys(s.CambiosPorFecha) {
		d := s.CambiosPorFecha[fecha]
		if d.Cantidad > s.DiaConMasCambios.Cantidad {
			s.DiaConMasCambios = DiaCambios{Fecha: fecha, Cantidad: d.Cantidad, TotalUSD: d.TotalUSD}
		}
	}
	for _, nombre := range sortedKeys(s.CambiosPorUsuario) {
		u := s.CambiosPorUsuario[nombre]
		if u.TotalUSD > s.UsuarioTop.TotalUSD {
			s.UsuarioTop = UsuarioCambios{Nombre: nombre, Cantidad: u.Cantidad, TotalUSD: u.TotalUSD, TotalUSDT: u.TotalUSDT}
		}
	}

	s.TasaPromedioGeneral = 1
	if s.TotalUSD > 0 {
		s.PromedioComision = s.TotalComision / s.TotalUSD * 100
		s.TasaPromedioGeneral = s.TotalUSDT / s.TotalUSD
	}
	return s
}

// MesCambios aggregates the exchanges of one month.
type MesCambios struct {
	Mes           string  `json:"mes"`
	Cantidad      int     `json:"cantidad"`
	TotalUSD      float64 `json:"totalUSD"`
	TotalUSDT     float64 `json:"totalUSDT"`
	TotalComision float64 `json:"totalComision"`
}

// ResumenMensualCambios groups exchanges by YYYY-MM, most recent first.
func ResumenMensualCambios(txs []*domain.Transaction) []MesCambios {
	byMonth := map[string]*MesCambios{}
	for _, tx := range cambiosOf(txs) {
		c, _ := tx.Cambio()
		mes := monthOf(tx.Fecha)
		m, ok := byMonth[mes]
		if !ok {
			m = &MesCambios{Mes: mes}
			byMonth[mes] = m
		}
		m.Cantidad++
		m.TotalUSD += num(c.MontoUSD)
		m.TotalUSDT += num(c.MontoUSDT)
		m.TotalComision += num(c.Comision)
	}

	out := make([]MesCambios, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mes > out[j].Mes })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
