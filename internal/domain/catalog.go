package domain

import "time"

// Expense categories. The gastos spreadsheet has one column per name.
var CategoriasGasto = []string{
	"Varios",
	"Escuela",
	"Servicios",
	"Rafael",
	"Emilys",
	"Casa",
	"Carro",
	"Prestamos",
	"Remesas",
	"Pasajes",
}

// Bank accounts money can land in.
var CuentasBanco = []string{"Provincial", "Venezuela", "USD", "Binance"}

// Defaults stamped on imported records.
const (
	CategoriaCompra       = "Compra de Divisas"
	CategoriaVenta        = "Venta de Divisas"
	CategoriaCambio       = "Cambio de Divisa"
	CategoriaSinCategoria = "Sin Categoría"

	CuentaOperaciones = "Operaciones"
	CuentaBinance     = "Binance"
	CuentaGeneral     = "General"
	CuentaProvincial  = "Provincial"
)

// Fixed fee schedule.
const (
	ComisionBancoRate   = 0.003
	ComisionBinanceRate = 0.002
)

// Keys of the per-owner configuration documents.
const (
	ConfigKeyTasaVenta  = "tasaVenta"
	ConfigKeyTasaCambio = "tasaCambio"
)

// TasaVenta is the owner's configured Bs-per-USD sale rate.
type TasaVenta struct {
	Valor         float64   `json:"valor"`
	ActualizadoEn time.Time `json:"actualizadoEn"`
}

// TasaCambio holds the conversion factors used to express totals in USD.
type TasaCambio struct {
	UsdToBs       float64   `json:"usdToBs"`
	UsdtToUsd     float64   `json:"usdtToUsd"`
	ActualizadoEn time.Time `json:"actualizadoEn"`
}

// RateConfig is the owner's full rate configuration.
type RateConfig struct {
	TasaVenta  TasaVenta  `json:"tasaVenta"`
	TasaCambio TasaCambio `json:"tasaCambio"`
}

// DefaultRateConfig is used when an owner has no stored configuration yet.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		TasaVenta:  TasaVenta{Valor: 37.00},
		TasaCambio: TasaCambio{UsdToBs: 36.50, UsdtToUsd: 1.00},
	}
}
