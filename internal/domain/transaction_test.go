package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompraStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from CompraStatus
		to   CompraStatus
		want bool
	}{
		{StatusPorCobrar, StatusPagado, true},
		{StatusPagado, StatusPorCobrar, true},
		{StatusPagado, StatusPagado, false},
		{StatusPorCobrar, StatusPorCobrar, false},
		{CompraStatus("Anulado"), StatusPagado, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMoneda(t *testing.T) {
	tests := []struct {
		input   string
		want    Moneda
		wantErr bool
	}{
		{"USD", USD, false},
		{"usdt", USDT, false},
		{"BS", Bs, false},
		{"Bs", Bs, false},
		{" bs ", Bs, false},
		{"EUR", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMoneda(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMoneda(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMoneda(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCompraStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    CompraStatus
		wantErr bool
	}{
		{"", StatusPorCobrar, false},
		{"Por Cobrar", StatusPorCobrar, false},
		{"PorCobrar", StatusPorCobrar, false},
		{"pagado", StatusPagado, false},
		{"cobrado", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompraStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	valid := func() *Transaction {
		return &Transaction{
			OwnerID: "u1",
			Fecha:   "2025-01-15",
			Hora:    "10:30",
			Monto:   100,
			Moneda:  USD,
			Detail:  &Ingreso{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr string
	}{
		{"valid", func(tx *Transaction) {}, ""},
		{"missing owner", func(tx *Transaction) { tx.OwnerID = "" }, "owner"},
		{"missing detail", func(tx *Transaction) { tx.Detail = nil }, "tipo"},
		{"bad fecha", func(tx *Transaction) { tx.Fecha = "15/01/2025" }, "fecha"},
		{"bad hora", func(tx *Transaction) { tx.Hora = "25:00" }, "hora"},
		{"bad moneda", func(tx *Transaction) { tx.Moneda = "EUR" }, "moneda"},
		{"imported without source", func(tx *Transaction) { tx.Importado = true }, "importadoDesde"},
		{"bad compra status", func(tx *Transaction) { tx.Detail = &Compra{Status: "x"} }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid()
			tt.mutate(tx)
			err := tx.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_JSONIsFlatWithDiscriminator(t *testing.T) {
	tx := Transaction{
		ID:      "abc",
		OwnerID: "u1",
		Fecha:   "2025-01-15",
		Monto:   250,
		Moneda:  USD,
		Detail: &Compra{
			CompraBs:    10000,
			Tasa:        40,
			CompraDolar: 250,
			Status:      StatusPorCobrar,
			Cliente:     "Maria",
		},
	}

	b, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	if flat["tipo"] != "Compra" {
		t.Errorf("tipo = %v, want Compra", flat["tipo"])
	}
	if flat["compraBs"] != 10000.0 {
		t.Errorf("compraBs = %v, want 10000", flat["compraBs"])
	}
	if flat["status"] != "Por Cobrar" {
		t.Errorf("status = %v, want Por Cobrar", flat["status"])
	}
	if _, ok := flat["creadoEn"]; ok {
		t.Error("zero creadoEn should be omitted")
	}

	var back Transaction
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	c, ok := back.Compra()
	if !ok {
		t.Fatalf("decoded detail is %T, want *Compra", back.Detail)
	}
	if c.Cliente != "Maria" || c.CompraDolar != 250 {
		t.Errorf("decoded compra = %+v", c)
	}
}

func TestTransaction_UnmarshalLegacyMoneda(t *testing.T) {
	var tx Transaction
	err := json.Unmarshal([]byte(`{"tipo":"Ingreso","fecha":"2025-02-01","monto":500,"moneda":"BS"}`), &tx)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if tx.Moneda != Bs {
		t.Errorf("Moneda = %q, want Bs", tx.Moneda)
	}
	if tx.Tipo() != TipoIngreso {
		t.Errorf("Tipo = %q, want Ingreso", tx.Tipo())
	}
}

func TestTransaction_UnmarshalUnknownTipo(t *testing.T) {
	var tx Transaction
	if err := json.Unmarshal([]byte(`{"tipo":"Prestamo","fecha":"2025-02-01"}`), &tx); err == nil {
		t.Error("expected error for unknown tipo")
	}
}

func TestTransaction_CloneIsDeep(t *testing.T) {
	orig := &Transaction{Detail: &Venta{MontoUSDT: 100}}
	cp := orig.Clone()
	v, _ := cp.Venta()
	v.MontoUSDT = 5

	ov, _ := orig.Venta()
	if ov.MontoUSDT != 100 {
		t.Errorf("original mutated through clone: %v", ov.MontoUSDT)
	}
}
