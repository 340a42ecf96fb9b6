package importer

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/infra/memory"
	"github.com/dvloznov/fx-ledger/internal/store"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 0, false},
		{"40020", 40020, false},
		{"1,000.50", 1000.50, false},
		{"1.000,50", 1000.50, false},
		{"40,00", 40, false},
		{"1009,8", 1009.8, false},
		{"1,000,000", 1000000, false},
		{"1.000.000", 1000000, false},
		{"37.5", 37.5, false},
		{"Bs 4.000,00", 4000, false},
		{"$ 25", 25, false},
		{"3%", 3, false},
		{"-12,5", -12.5, false},
		{"abc", 0, true},
		{"12a", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNumber(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !approx(got, tt.want) {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"15/01/2025", "2025-01-15", false},
		{"5/1/2025", "2025-01-05", false},
		{"15-01-2025", "2025-01-15", false},
		{"15/01/25", "2025-01-15", false},
		{"2025-01-15", "2025-01-15", false},
		{"45672", "2025-01-15", false},
		{"45672.75", "2025-01-15", false},
		{"31/02/2025", "", true},
		{"ayer", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "00:00"},
		{"09:30", "09:30"},
		{"9:30:15", "09:30"},
		{"0.5", "12:00"},
		{"0.75", "18:00"},
		{"45672.25", "06:00"},
		{"3:15 pm", "15:15"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ParseTime(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseTime("tarde"); err == nil {
		t.Error("expected error for non-time text")
	}
}

func TestReconcile_VentaEuropeanRow(t *testing.T) {
	rows := []Row{{
		"Fecha":           "15/01/2025",
		"VENTA $":         "1,000.50",
		"Tasa":            "40,00",
		"Recibido en CTA": "40020",
	}}

	res, err := Reconcile(rows, domain.SourceVentas, Context{OwnerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 1 || len(res.Errors) != 0 {
		t.Fatalf("res = %+v", res)
	}

	tx := res.Created[0]
	v, ok := tx.Venta()
	if !ok {
		t.Fatalf("detail = %T", tx.Detail)
	}
	if !approx(v.MontoUSDT, 1000.50) || !approx(v.TasaVenta, 40) {
		t.Errorf("ventaUsd = %v, tasa = %v", v.MontoUSDT, v.TasaVenta)
	}
	if !approx(v.ComisionBinance, 2.001) || !approx(v.UsdtNeto, 998.499) {
		t.Errorf("comision = %v, neto = %v", v.ComisionBinance, v.UsdtNeto)
	}
	if v.MontoBs != 40020 || tx.Fecha != "2025-01-15" || tx.Moneda != domain.USDT {
		t.Errorf("tx = %+v", tx)
	}
	if !tx.Importado || tx.ImportadoDesde != domain.SourceVentas || tx.OwnerID != "u1" {
		t.Errorf("import tags = %v %q %q", tx.Importado, tx.ImportadoDesde, tx.OwnerID)
	}
}

func TestReconcile_RowClassification(t *testing.T) {
	rows := []Row{
		{"Fecha": "01/02/2025", "VENTA $": "100", "Tasa": "40"},
		{"Fecha": "", "VENTA $": "100"},
		{"Fecha": "02/02/2025", "VENTA $": "0"},
		{"Fecha": "03/02/2025", "VENTA $": "cien"},
		{"Fecha": "32/13/2025", "VENTA $": "100"},
	}

	res, err := Reconcile(rows, domain.SourceVentas, Context{OwnerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 1 || res.Skipped != 2 || res.Total != 5 {
		t.Errorf("created=%d skipped=%d total=%d", len(res.Created), res.Skipped, res.Total)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "Fila 5:") || !strings.HasPrefix(res.Errors[1], "Fila 6:") {
		t.Errorf("row numbers = %v", res.Errors)
	}

	v, _ := res.Created[0].Venta()
	if !approx(v.MontoBs, 99.8*40) {
		t.Errorf("montoBs fallback = %v", v.MontoBs)
	}
}

func TestReconcile_Compras(t *testing.T) {
	rows := []Row{
		{"Fecha": "10/01/2025", "Cliente": " Ana ", "Depositos": "4.000,00", "TASA": "40", "COMPRA $": "100", "Ganancia en Dolar": "2,5"},
		{"Fecha": "11/01/2025", "Cliente": "Luis", "Status": "Pagado", "Depositos": "3800", "TASA": "38"},
		{"Fecha": "12/01/2025", "Depositos": "1000", "TASA": "40"},
		{"Fecha": "13/01/2025", "Cliente": "Eva", "Status": "Cancelado", "Depositos": "1000"},
	}

	res, err := Reconcile(rows, domain.SourceCompras, Context{OwnerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 2 || res.Skipped != 1 || len(res.Errors) != 1 {
		t.Fatalf("created=%d skipped=%d errors=%v", len(res.Created), res.Skipped, res.Errors)
	}

	first, _ := res.Created[0].Compra()
	if first.Cliente != "Ana" || first.Status != domain.StatusPorCobrar || !approx(first.ComisionBanco, 12) || !approx(first.GananciaDolar, 2.5) {
		t.Errorf("first = %+v", first)
	}
	second, _ := res.Created[1].Compra()
	if second.Status != domain.StatusPagado || !approx(second.CompraDolar, 100) {
		t.Errorf("second = %+v", second)
	}
	if res.Created[1].Cuenta != domain.CuentaOperaciones || res.Created[1].Monto != second.CompraDolar {
		t.Errorf("common fields = %+v", res.Created[1])
	}
	if !strings.Contains(res.Errors[0], "Fila 5") {
		t.Errorf("bad status error = %q", res.Errors[0])
	}
}

func TestReconcile_GastosFanOut(t *testing.T) {
	rows := []Row{
		{"Fecha": "45672", "Hora": "0.5", "Descripcion": "Mercado", "Gasto en $": "30", "Casa": "20", "Carro": "10", "Tasa de venta": "40"},
		{"Fecha": "16/01/2025", "Gasto en $": "12"},
		{"Fecha": "17/01/2025"},
	}

	res, err := Reconcile(rows, domain.SourceGastos, Context{OwnerID: "u1", TasaVenta: 37})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 3 || res.Skipped != 1 {
		t.Fatalf("created=%d skipped=%d errors=%v", len(res.Created), res.Skipped, res.Errors)
	}

	casa, carro, sin := res.Created[0], res.Created[1], res.Created[2]
	if casa.Categoria != "Casa" || casa.Monto != 20 || carro.Categoria != "Carro" || carro.Monto != 10 {
		t.Errorf("fan-out = %+v / %+v", casa, carro)
	}
	if casa.Fecha != "2025-01-15" || casa.Hora != "12:00" {
		t.Errorf("fecha/hora = %s %s", casa.Fecha, casa.Hora)
	}
	if g, _ := casa.Gasto(); g.Total != 800 || g.TasaUsada != 40 {
		t.Errorf("casa gasto = %+v", g)
	}

	if sin.Categoria != domain.CategoriaSinCategoria || sin.Descripcion != "Gasto 2" {
		t.Errorf("uncategorized = %+v", sin)
	}
	if g, _ := sin.Gasto(); g.TasaUsada != 37 || g.Total != 12*37 {
		t.Errorf("fallback tasa = %+v", g)
	}
}

func TestReconcile_Cambios(t *testing.T) {
	rows := []Row{
		{"fecha": "20/01/2025", "hora": "10:15", "usd": "100", "usdt": "97", "Usuario Cambiador": "Pedro"},
		{"fecha": "21/01/2025", "usd": "200", "usdt": "195", "Comision": "4"},
		{"fecha": "22/01/2025", "usd": "200", "usdt": ""},
	}

	res, err := Reconcile(rows, domain.SourceCambios, Context{OwnerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 2 || res.Skipped != 1 {
		t.Fatalf("res = %+v", res)
	}

	c, _ := res.Created[0].Cambio()
	if !approx(c.Comision, 3) || !approx(c.TasaCambio, 0.97) || !approx(c.ComisionPorcentaje, 3) || c.Usuario != "Pedro" {
		t.Errorf("first = %+v", c)
	}
	c2, _ := res.Created[1].Cambio()
	if !approx(c2.Comision, 4) || !approx(c2.ComisionPorcentaje, 2) {
		t.Errorf("explicit comision = %+v", c2)
	}
	if res.Created[0].Cuenta != domain.CuentaBinance || res.Created[0].Monto != 100 {
		t.Errorf("common = %+v", res.Created[0])
	}
}

func TestReconcile_UnknownSource(t *testing.T) {
	if _, err := Reconcile(nil, domain.ImportSource("nomina"), Context{}); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestCommitBatches_SplitsAtLimit(t *testing.T) {
	rows := make([]Row, 501)
	for i := range rows {
		rows[i] = Row{"Fecha": "15/01/2025", "VENTA $": "10", "Tasa": "40"}
	}
	res, err := Reconcile(rows, domain.SourceVentas, Context{OwnerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	s := memory.New()
	c, err := CommitBatches(context.Background(), s, res.Created, store.MaxBatchSize)
	if err != nil {
		t.Fatalf("CommitBatches: %v", err)
	}
	if c.Committed != 501 || c.Batches != 2 {
		t.Errorf("commit = %+v", c)
	}
	if b := s.Batches(); len(b) != 2 || b[0] != 500 || b[1] != 1 {
		t.Errorf("store batches = %v", b)
	}
	if s.Len() != 501 {
		t.Errorf("stored = %d", s.Len())
	}
}

type mockBatchWriter struct {
	CreateTransactionsFunc func(ctx context.Context, txs []*domain.Transaction) error
}

func (m *mockBatchWriter) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	return m.CreateTransactionsFunc(ctx, txs)
}

func TestCommitBatches_StopsOnFailure(t *testing.T) {
	calls := 0
	w := &mockBatchWriter{CreateTransactionsFunc: func(ctx context.Context, txs []*domain.Transaction) error {
		calls++
		if calls == 2 {
			return errors.New("quota exceeded")
		}
		return nil
	}}

	txs := make([]*domain.Transaction, 25)
	c, err := CommitBatches(context.Background(), w, txs, 10)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v", err)
	}
	if c.Committed != 10 || c.Batches != 1 || calls != 2 {
		t.Errorf("partial = %+v, calls = %d", c, calls)
	}
}

func TestReadSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	grid := [][]any{
		{" Fecha ", "VENTA $", "Tasa", "Recibido en CTA"},
		{"15/01/2025", 1000.5, "40,00", 40020},
		{nil, nil, nil, nil},
		{"16/01/2025", 20, 41, nil},
	}
	for i, r := range grid {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	rows, err := ReadSheet(buf)
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank row dropped)", len(rows))
	}
	if rows[0]["Fecha"] != "15/01/2025" || rows[0]["Tasa"] != "40,00" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if n, err := ParseNumber(rows[0]["VENTA $"]); err != nil || n != 1000.5 {
		t.Errorf("VENTA $ = %q (%v)", rows[0]["VENTA $"], err)
	}
}

func TestNewSummary(t *testing.T) {
	r := &Result{Total: 4, Skipped: 1}
	s := NewSummary(domain.SourceGastos, r, CommitResult{Committed: 3, Batches: 1})
	if s.Errors == nil || s.Created != 3 || s.Source != domain.SourceGastos {
		t.Errorf("summary = %+v", s)
	}
}
