package bigquery

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

func TestRowFromTransaction_CompraColumns(t *testing.T) {
	tx := &domain.Transaction{
		ID:      "c1",
		OwnerID: "u1",
		Fecha:   "2025-01-15",
		Hora:    "09:30",
		Monto:   100,
		Moneda:  domain.USD,
		Detail: &domain.Compra{
			CompraBs:    4000,
			Tasa:        40,
			CompraDolar: 100,
			Status:      domain.StatusPorCobrar,
			Cliente:     "Ana",
		},
	}

	row, err := RowFromTransaction(tx)
	if err != nil {
		t.Fatalf("RowFromTransaction: %v", err)
	}
	if row.Tipo != "Compra" || row.CompraBs != 4000 || row.Status != "Por Cobrar" || row.Cliente != "Ana" {
		t.Errorf("row = %+v", row)
	}
	if row.Fecha != (civil.Date{Year: 2025, Month: time.January, Day: 15}) {
		t.Errorf("Fecha = %v", row.Fecha)
	}
	if row.MontoUSDT != 0 || row.UsuarioCambiador != "" {
		t.Errorf("columns of other variants should stay zero: %+v", row)
	}

	back, err := row.ToTransaction()
	if err != nil {
		t.Fatalf("ToTransaction: %v", err)
	}
	c, ok := back.Compra()
	if !ok || c.Status != domain.StatusPorCobrar || back.Fecha != "2025-01-15" || back.Hora != "09:30" {
		t.Errorf("back = %+v (%+v)", back, back.Detail)
	}
}

func TestRowFromTransaction_Variants(t *testing.T) {
	tests := []struct {
		name   string
		detail domain.Detail
		check  func(*TransactionRow) bool
	}{
		{
			name:   "venta",
			detail: &domain.Venta{MontoUSDT: 50, TasaVenta: 41, CuentaDestino: "Provincial"},
			check:  func(r *TransactionRow) bool { return r.MontoUSDT == 50 && r.TasaVenta == 41 && r.CuentaDestino == "Provincial" },
		},
		{
			name:   "cambio",
			detail: &domain.Cambio{MontoUSD: 100, MontoUSDT: 97, Usuario: "Luis"},
			check:  func(r *TransactionRow) bool { return r.MontoUSD == 100 && r.MontoUSDT == 97 && r.UsuarioCambiador == "Luis" },
		},
		{
			name:   "gasto",
			detail: &domain.Gasto{GastoDolar: 10, TasaUsada: 40, Total: 400},
			check:  func(r *TransactionRow) bool { return r.GastoDolar == 10 && r.Total == 400 },
		},
		{
			name:   "ingreso",
			detail: &domain.Ingreso{},
			check:  func(r *TransactionRow) bool { return r.Tipo == "Ingreso" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &domain.Transaction{ID: "x", OwnerID: "u1", Fecha: "2025-02-01", Moneda: domain.USD, Detail: tt.detail}
			row, err := RowFromTransaction(tx)
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(row) {
				t.Errorf("row = %+v", row)
			}
			back, err := row.ToTransaction()
			if err != nil {
				t.Fatal(err)
			}
			if back.Tipo() != tt.detail.Tipo() {
				t.Errorf("Tipo = %q, want %q", back.Tipo(), tt.detail.Tipo())
			}
		})
	}
}

func TestRowFromTransaction_BadFecha(t *testing.T) {
	tx := &domain.Transaction{OwnerID: "u1", Fecha: "15/01/2025", Detail: &domain.Ingreso{}}
	if _, err := RowFromTransaction(tx); err == nil {
		t.Error("expected error for non-ISO fecha")
	}
}

func TestEncodeRows_AssignsIDsAndWritesJSONLines(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []*domain.Transaction{
		{OwnerID: "u1", Fecha: "2025-03-01", Moneda: domain.USD, Detail: &domain.Ingreso{}},
		{ID: "keep", OwnerID: "u1", Fecha: "2025-03-01", Moneda: domain.USDT, Detail: &domain.Venta{MontoUSDT: 5}},
	}

	body, err := encodeRows(txs, now)
	if err != nil {
		t.Fatalf("encodeRows: %v", err)
	}
	if txs[0].ID == "" || txs[1].ID != "keep" {
		t.Errorf("ids = %q, %q", txs[0].ID, txs[1].ID)
	}
	if !txs[0].CreadoEn.Equal(now) {
		t.Errorf("CreadoEn = %v", txs[0].CreadoEn)
	}

	sc := bufio.NewScanner(bytes.NewReader(body))
	var lines int
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if m["fecha"] != "2025-03-01" {
			t.Errorf("fecha = %v", m["fecha"])
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}

	if _, err := encodeRows([]*domain.Transaction{{Fecha: "2025-03-01", Detail: &domain.Ingreso{}}}, now); !errors.Is(err, store.ErrOwnerRequired) {
		t.Errorf("err = %v, want ErrOwnerRequired", err)
	}
}

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name       string
		filter     store.Filter
		wantWhere  string
		wantParams int
		wantErr    error
	}{
		{
			name:    "owner required",
			filter:  store.Filter{},
			wantErr: store.ErrOwnerRequired,
		},
		{
			name:       "owner only",
			filter:     store.Filter{OwnerID: "u1"},
			wantWhere:  "owner_id = @owner_id",
			wantParams: 1,
		},
		{
			name: "every predicate",
			filter: store.Filter{
				OwnerID:        "u1",
				Tipo:           domain.TipoVenta,
				Fecha:          "2025-01-15",
				From:           "2025-01-01",
				To:             "2025-01-31",
				Importado:      store.Bool(true),
				ImportadoDesde: domain.SourceVentas,
			},
			wantWhere:  "owner_id = @owner_id AND tipo = @tipo AND fecha = @fecha AND fecha >= @desde AND fecha <= @hasta AND importado = @importado AND importado_desde = @importado_desde",
			wantParams: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, params, err := whereClause(tt.filter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if where != tt.wantWhere {
				t.Errorf("where = %q\nwant    %q", where, tt.wantWhere)
			}
			if len(params) != tt.wantParams {
				t.Errorf("params = %d, want %d", len(params), tt.wantParams)
			}
		})
	}

	if _, _, err := whereClause(store.Filter{OwnerID: "u1", Fecha: "yesterday"}); err == nil {
		t.Error("expected error for invalid fecha")
	}
}

func TestUpdateStatement(t *testing.T) {
	row := &TransactionRow{ID: "t1", OwnerID: "u1", Tipo: "Gasto"}
	sql, params := updateStatement("`p.d.transacciones`", row)

	if !strings.HasPrefix(sql, "UPDATE `p.d.transacciones`") {
		t.Errorf("sql = %q", sql)
	}
	if !strings.Contains(sql, "WHERE owner_id = @owner_id AND id = @id") {
		t.Errorf("missing owner scope: %q", sql)
	}
	if len(params) != len(mutableColumns)+2 {
		t.Errorf("params = %d, want %d", len(params), len(mutableColumns)+2)
	}
	if strings.Contains(sql, "creado_en") {
		t.Error("creado_en must not be rewritten")
	}
}

func TestOrderBy(t *testing.T) {
	if got := orderBy(true); got != "fecha DESC, IF(hora = '', '00:00', hora) DESC, id" {
		t.Errorf("orderBy(true) = %q", got)
	}
	if got := orderBy(false); !strings.HasPrefix(got, "fecha ASC") {
		t.Errorf("orderBy(false) = %q", got)
	}
}
