package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the canonical calendar-date format used for Fecha.
const DateLayout = "2006-01-02"

var horaPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Transaction is one ledger record. Fields shared by every kind of record live
// here; the kind-specific fields live in Detail, whose concrete type determines
// the Tipo.
type Transaction struct {
	ID      string
	OwnerID string

	Fecha string // YYYY-MM-DD
	Hora  string // HH:MM, optional

	Monto  float64
	Moneda Moneda

	Descripcion string
	Categoria   string
	Cuenta      string

	Importado      bool
	ImportadoDesde ImportSource

	CreadoPor string
	CreadoEn  time.Time

	Detail Detail
}

// Detail is implemented by exactly one struct per Tipo.
type Detail interface {
	Tipo() Tipo
	clone() Detail
}

// Ingreso carries no fields beyond the common ones.
type Ingreso struct{}

// Gasto is an expense. GastoDolar is the dollar equivalent used for reporting.
type Gasto struct {
	GastoDolar float64 `json:"gastoDolar"`
	TasaUsada  float64 `json:"tasaUsada,omitempty"`
	Total      float64 `json:"total,omitempty"`
}

// Compra is a purchase of dollars from a client paid in Bs.
type Compra struct {
	CompraBs      float64      `json:"compraBs"`
	Tasa          float64      `json:"tasa"`
	CompraDolar   float64      `json:"compraDolar"`
	TasaVenta     float64      `json:"tasaVenta"`
	GananciaBs    float64      `json:"gananciaBs"`
	GananciaDolar float64      `json:"gananciaDolar"`
	ComisionBanco float64      `json:"comisionBanco"`
	Status        CompraStatus `json:"status"`
	Cliente       string       `json:"cliente,omitempty"`
	Operador      string       `json:"operador,omitempty"`
	Referencia    string       `json:"referencia,omitempty"`
}

// Venta is a sale of USDT for Bs.
type Venta struct {
	MontoUSDT       float64 `json:"montoUSDT"`
	TasaVenta       float64 `json:"tasaVenta"`
	ComisionBinance float64 `json:"comisionBinance"`
	UsdtNeto        float64 `json:"usdtNeto"`
	MontoBs         float64 `json:"montoBs"`
	CuentaDestino   string  `json:"cuentaDestino,omitempty"`
}

// Cambio converts USD into USDT through an exchanger.
type Cambio struct {
	MontoUSD           float64 `json:"montoUSD"`
	MontoUSDT          float64 `json:"montoUSDT"`
	Comision           float64 `json:"comision"`
	ComisionPorcentaje float64 `json:"comisionPorcentaje"`
	TasaCambio         float64 `json:"tasaCambio"`
	Usuario            string  `json:"usuarioCambiador,omitempty"`
}

func (*Ingreso) Tipo() Tipo { return TipoIngreso }
func (*Gasto) Tipo() Tipo   { return TipoGasto }
func (*Compra) Tipo() Tipo  { return TipoCompra }
func (*Venta) Tipo() Tipo   { return TipoVenta }
func (*Cambio) Tipo() Tipo  { return TipoCambio }

func (d *Ingreso) clone() Detail { c := *d; return &c }
func (d *Gasto) clone() Detail   { c := *d; return &c }
func (d *Compra) clone() Detail  { c := *d; return &c }
func (d *Venta) clone() Detail   { c := *d; return &c }
func (d *Cambio) clone() Detail  { c := *d; return &c }

// NewDetail returns an empty Detail for the given Tipo.
func NewDetail(t Tipo) (Detail, error) {
	switch t {
	case TipoIngreso:
		return &Ingreso{}, nil
	case TipoGasto:
		return &Gasto{}, nil
	case TipoCompra:
		return &Compra{Status: StatusPorCobrar}, nil
	case TipoVenta:
		return &Venta{}, nil
	case TipoCambio:
		return &Cambio{}, nil
	}
	return nil, fmt.Errorf("unknown tipo %q", t)
}

// Tipo reports the record kind, or "" when Detail is unset.
func (t *Transaction) Tipo() Tipo {
	if t.Detail == nil {
		return ""
	}
	return t.Detail.Tipo()
}

// Compra returns the Compra detail when the record is a purchase.
func (t *Transaction) Compra() (*Compra, bool) {
	c, ok := t.Detail.(*Compra)
	return c, ok
}

// Venta returns the Venta detail when the record is a sale.
func (t *Transaction) Venta() (*Venta, bool) {
	v, ok := t.Detail.(*Venta)
	return v, ok
}

// Gasto returns the Gasto detail when the record is an expense.
func (t *Transaction) Gasto() (*Gasto, bool) {
	g, ok := t.Detail.(*Gasto)
	return g, ok
}

// Cambio returns the Cambio detail when the record is an exchange.
func (t *Transaction) Cambio() (*Cambio, bool) {
	c, ok := t.Detail.(*Cambio)
	return c, ok
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.Detail != nil {
		c.Detail = t.Detail.clone()
	}
	return &c
}

// Validate checks the fields every record must carry.
func (t *Transaction) Validate() error {
	var errs []error
	if t.OwnerID == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	if t.Detail == nil {
		errs = append(errs, errors.New("tipo is required"))
	}
	if !ValidDate(t.Fecha) {
		errs = append(errs, fmt.Errorf("invalid fecha %q", t.Fecha))
	}
	if t.Hora != "" && !horaPattern.MatchString(t.Hora) {
		errs = append(errs, fmt.Errorf("invalid hora %q", t.Hora))
	}
	if !t.Moneda.Valid() {
		errs = append(errs, fmt.Errorf("invalid moneda %q", t.Moneda))
	}
	if t.Importado && !t.ImportadoDesde.Valid() {
		errs = append(errs, fmt.Errorf("invalid importadoDesde %q", t.ImportadoDesde))
	}
	if c, ok := t.Compra(); ok && !c.Status.Valid() {
		errs = append(errs, fmt.Errorf("invalid status %q", c.Status))
	}
	return errors.Join(errs...)
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
