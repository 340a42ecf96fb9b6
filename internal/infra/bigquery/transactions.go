package bigquery

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// TransactionRow is one record of the transacciones table. The table carries
// the columns of every variant; columns that do not apply to a record's tipo
// hold zero values.
type TransactionRow struct {
	ID      string `bigquery:"id" json:"id"`             // REQUIRED
	OwnerID string `bigquery:"owner_id" json:"owner_id"` // REQUIRED
	Tipo    string `bigquery:"tipo" json:"tipo"`         // REQUIRED

	Fecha civil.Date `bigquery:"fecha" json:"fecha"` // REQUIRED DATE
	Hora  string     `bigquery:"hora" json:"hora"`

	Monto  float64 `bigquery:"monto" json:"monto"`
	Moneda string  `bigquery:"moneda" json:"moneda"`

	Descripcion string `bigquery:"descripcion" json:"descripcion"`
	Categoria   string `bigquery:"categoria" json:"categoria"`
	Cuenta      string `bigquery:"cuenta" json:"cuenta"`

	Importado      bool   `bigquery:"importado" json:"importado"`
	ImportadoDesde string `bigquery:"importado_desde" json:"importado_desde"`

	CreadoPor string    `bigquery:"creado_por" json:"creado_por"`
	CreadoEn  time.Time `bigquery:"creado_en" json:"creado_en"` // REQUIRED TIMESTAMP

	// Gasto
	GastoDolar float64 `bigquery:"gasto_dolar" json:"gasto_dolar"`
	TasaUsada  float64 `bigquery:"tasa_usada" json:"tasa_usada"`
	Total      float64 `bigquery:"total" json:"total"`

	// Compra
	CompraBs      float64 `bigquery:"compra_bs" json:"compra_bs"`
	Tasa          float64 `bigquery:"tasa" json:"tasa"`
	CompraDolar   float64 `bigquery:"compra_dolar" json:"compra_dolar"`
	GananciaBs    float64 `bigquery:"ganancia_bs" json:"ganancia_bs"`
	GananciaDolar float64 `bigquery:"ganancia_dolar" json:"ganancia_dolar"`
	ComisionBanco float64 `bigquery:"comision_banco" json:"comision_banco"`
	Status        string  `bigquery:"status" json:"status"`
	Cliente       string  `bigquery:"cliente" json:"cliente"`
	Operador      string  `bigquery:"operador" json:"operador"`
	Referencia    string  `bigquery:"referencia" json:"referencia"`

	// Compra and Venta
	TasaVenta float64 `bigquery:"tasa_venta" json:"tasa_venta"`

	// Venta and Cambio
	MontoUSDT float64 `bigquery:"monto_usdt" json:"monto_usdt"`

	// Venta
	ComisionBinance float64 `bigquery:"comision_binance" json:"comision_binance"`
	UsdtNeto        float64 `bigquery:"usdt_neto" json:"usdt_neto"`
	MontoBs         float64 `bigquery:"monto_bs" json:"monto_bs"`
	CuentaDestino   string  `bigquery:"cuenta_destino" json:"cuenta_destino"`

	// Cambio
	MontoUSD           float64 `bigquery:"monto_usd" json:"monto_usd"`
	Comision           float64 `bigquery:"comision" json:"comision"`
	ComisionPorcentaje float64 `bigquery:"comision_porcentaje" json:"comision_porcentaje"`
	TasaCambio         float64 `bigquery:"tasa_cambio" json:"tasa_cambio"`
	UsuarioCambiador   string  `bigquery:"usuario_cambiador" json:"usuario_cambiador"`
}

// RowFromTransaction flattens tx into a table row.
func RowFromTransaction(tx *domain.Transaction) (*TransactionRow, error) {
	fecha, err := civil.ParseDate(tx.Fecha)
	if err != nil {
		return nil, fmt.Errorf("RowFromTransaction: fecha %q: %w", tx.Fecha, err)
	}
	r := &TransactionRow{
		ID:             tx.ID,
		OwnerID:        tx.OwnerID,
		Tipo:           string(tx.Tipo()),
		Fecha:          fecha,
		Hora:           tx.Hora,
		Monto:          tx.Monto,
		Moneda:         string(tx.Moneda),
		Descripcion:    tx.Descripcion,
		Categoria:      tx.Categoria,
		Cuenta:         tx.Cuenta,
		Importado:      tx.Importado,
		ImportadoDesde: string(tx.ImportadoDesde),
		CreadoPor:      tx.CreadoPor,
		CreadoEn:       tx.CreadoEn.UTC(),
	}

	switch d := tx.Detail.(type) {
	case *domain.Gasto:
		r.GastoDolar, r.TasaUsada, r.Total = d.GastoDolar, d.TasaUsada, d.Total
	case *domain.Compra:
		r.CompraBs = d.CompraBs
		r.Tasa = d.Tasa
		r.CompraDolar = d.CompraDolar
		r.TasaVenta = d.TasaVenta
		r.GananciaBs = d.GananciaBs
		r.GananciaDolar = d.GananciaDolar
		r.ComisionBanco = d.ComisionBanco
		r.Status = string(d.Status)
		r.Cliente = d.Cliente
		r.Operador = d.Operador
		r.Referencia = d.Referencia
	case *domain.Venta:
		r.MontoUSDT = d.MontoUSDT
		r.TasaVenta = d.TasaVenta
		r.ComisionBinance = d.ComisionBinance
		r.UsdtNeto = d.UsdtNeto
		r.MontoBs = d.MontoBs
		r.CuentaDestino = d.CuentaDestino
	case *domain.Cambio:
		r.MontoUSD = d.MontoUSD
		r.MontoUSDT = d.MontoUSDT
		r.Comision = d.Comision
		r.ComisionPorcentaje = d.ComisionPorcentaje
		r.TasaCambio = d.TasaCambio
		r.UsuarioCambiador = d.Usuario
	case *domain.Ingreso:
	default:
		return nil, fmt.Errorf("RowFromTransaction: unsupported detail %T", tx.Detail)
	}
	return r, nil
}

// ToTransaction rebuilds the record, picking the variant from Tipo.
func (r *TransactionRow) ToTransaction() (*domain.Transaction, error) {
	tipo, err := domain.ParseTipo(r.Tipo)
	if err != nil {
		return nil, fmt.Errorf("ToTransaction: %s: %w", r.ID, err)
	}

	var detail domain.Detail
	switch tipo {
	case domain.TipoIngreso:
		detail = &domain.Ingreso{}
	case domain.TipoGasto:
		detail = &domain.Gasto{GastoDolar: r.GastoDolar, TasaUsada: r.TasaUsada, Total: r.Total}
	case domain.TipoCompra:
		detail = &domain.Compra{
			CompraBs:      r.CompraBs,
			Tasa:          r.Tasa,
			CompraDolar:   r.CompraDolar,
			TasaVenta:     r.TasaVenta,
			GananciaBs:    r.GananciaBs,
			GananciaDolar: r.GananciaDolar,
			ComisionBanco: r.ComisionBanco,
			Status:        domain.CompraStatus(r.Status),
			Cliente:       r.Cliente,
			Operador:      r.Operador,
			Referencia:    r.Referencia,
		}
	case domain.TipoVenta:
		detail = &domain.Venta{
			MontoUSDT:       r.MontoUSDT,
			TasaVenta:       r.TasaVenta,
			ComisionBinance: r.ComisionBinance,
			UsdtNeto:        r.UsdtNeto,
			MontoBs:         r.MontoBs,
			CuentaDestino:   r.CuentaDestino,
		}
	case domain.TipoCambio:
		detail = &domain.Cambio{
			MontoUSD:           r.MontoUSD,
			MontoUSDT:          r.MontoUSDT,
			Comision:           r.Comision,
			ComisionPorcentaje: r.ComisionPorcentaje,
			TasaCambio:         r.TasaCambio,
			Usuario:            r.UsuarioCambiador,
		}
	}

	return &domain.Transaction{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Fecha:          r.Fecha.String(),
		Hora:           r.Hora,
		Monto:          r.Monto,
		Moneda:         domain.Moneda(r.Moneda),
		Descripcion:    r.Descripcion,
		Categoria:      r.Categoria,
		Cuenta:         r.Cuenta,
		Importado:      r.Importado,
		ImportadoDesde: domain.ImportSource(r.ImportadoDesde),
		CreadoPor:      r.CreadoPor,
		CreadoEn:       r.CreadoEn,
		Detail:         detail,
	}, nil
}

// mutableColumns are rewritten by a full-field update, in SET order.
var mutableColumns = []string{
	"tipo", "fecha", "hora", "monto", "moneda", "descripcion", "categoria", "cuenta",
	"importado", "importado_desde", "creado_por",
	"gasto_dolar", "tasa_usada", "total",
	"compra_bs", "tasa", "compra_dolar", "ganancia_bs", "ganancia_dolar", "comision_banco",
	"status", "cliente", "operador", "referencia",
	"tasa_venta", "monto_usdt",
	"comision_binance", "usdt_neto", "monto_bs", "cuenta_destino",
	"monto_usd", "comision", "comision_porcentaje", "tasa_cambio", "usuario_cambiador",
}

// values maps every mutable column to its value.
func (r *TransactionRow) values() map[string]any {
	return map[string]any{
		"tipo":                r.Tipo,
		"fecha":               r.Fecha,
		"hora":                r.Hora,
		"monto":               r.Monto,
		"moneda":              r.Moneda,
		"descripcion":         r.Descripcion,
		"categoria":           r.Categoria,
		"cuenta":              r.Cuenta,
		"importado":           r.Importado,
		"importado_desde":     r.ImportadoDesde,
		"creado_por":          r.CreadoPor,
		"gasto_dolar":         r.GastoDolar,
		"tasa_usada":          r.TasaUsada,
		"total":               r.Total,
		"compra_bs":           r.CompraBs,
		"tasa":                r.Tasa,
		"compra_dolar":        r.CompraDolar,
		"ganancia_bs":         r.GananciaBs,
		"ganancia_dolar":      r.GananciaDolar,
		"comision_banco":      r.ComisionBanco,
		"status":              r.Status,
		"cliente":             r.Cliente,
		"operador":            r.Operador,
		"referencia":          r.Referencia,
		"tasa_venta":          r.TasaVenta,
		"monto_usdt":          r.MontoUSDT,
		"comision_binance":    r.ComisionBinance,
		"usdt_neto":           r.UsdtNeto,
		"monto_bs":            r.MontoBs,
		"cuenta_destino":      r.CuentaDestino,
		"monto_usd":           r.MontoUSD,
		"comision":            r.Comision,
		"comision_porcentaje": r.ComisionPorcentaje,
		"tasa_cambio":         r.TasaCambio,
		"usuario_cambiador":   r.UsuarioCambiador,
	}
}
