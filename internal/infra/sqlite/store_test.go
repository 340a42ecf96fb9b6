package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func venta(owner, fecha, hora string, tasa float64) *domain.Transaction {
	return &domain.Transaction{
		OwnerID: owner,
		Fecha:   fecha,
		Hora:    hora,
		Monto:   100,
		Moneda:  domain.USDT,
		Detail:  &domain.Venta{MontoUSDT: 100, TasaVenta: tasa},
	}
}

func TestStore_RoundTripKeepsDetail(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.CreateTransaction(ctx, venta("u1", "2025-02-01", "10:00", 38.5))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	got, err := s.GetTransaction(ctx, "u1", id)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	v, ok := got.Venta()
	if !ok || v.TasaVenta != 38.5 || got.ID != id {
		t.Errorf("got %+v (%T)", got, got.Detail)
	}

	if _, err := s.GetTransaction(ctx, "u2", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-owner err = %v", err)
	}
}

func TestStore_ListOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	imported := venta("u1", "2025-02-02", "08:00", 40)
	imported.Importado = true
	imported.ImportadoDesde = domain.SourceVentas
	batch := []*domain.Transaction{
		venta("u1", "2025-02-01", "10:00", 38),
		imported,
		venta("u1", "2025-02-02", "19:00", 39),
		venta("u2", "2025-02-03", "10:00", 41),
	}
	if err := s.CreateTransactions(ctx, batch); err != nil {
		t.Fatalf("CreateTransactions: %v", err)
	}

	newest, err := s.ListTransactions(ctx, store.Filter{OwnerID: "u1", Tipo: domain.TipoVenta, Newest: true, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(newest) != 2 || newest[0].Hora != "19:00" || newest[1].Hora != "08:00" {
		t.Errorf("newest = %+v", newest)
	}

	n, err := s.CountTransactions(ctx, store.Filter{OwnerID: "u1", Importado: store.Bool(true), ImportadoDesde: domain.SourceVentas})
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}

	day, err := s.ListTransactions(ctx, store.Filter{OwnerID: "u1", Fecha: "2025-02-02"})
	if err != nil || len(day) != 2 {
		t.Errorf("same-day list = %d, %v", len(day), err)
	}
}

func TestStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	compra := &domain.Transaction{
		OwnerID: "u1",
		Fecha:   "2025-02-01",
		Monto:   100,
		Moneda:  domain.USD,
		Detail:  &domain.Compra{CompraBs: 4000, Tasa: 40, Status: domain.StatusPorCobrar},
	}
	id, err := s.CreateTransaction(ctx, compra)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateCompraStatus(ctx, "u1", id, domain.StatusPagado); err != nil {
		t.Fatalf("UpdateCompraStatus: %v", err)
	}
	got, _ := s.GetTransaction(ctx, "u1", id)
	if c, _ := got.Compra(); c.Status != domain.StatusPagado {
		t.Errorf("status = %q", c.Status)
	}

	got.Fecha = "2025-02-05"
	if err := s.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	list, _ := s.ListTransactions(ctx, store.Filter{OwnerID: "u1", Fecha: "2025-02-05"})
	if len(list) != 1 {
		t.Errorf("indexed fecha not updated")
	}

	if err := s.DeleteTransaction(ctx, "u1", id); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTransaction(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestStore_BatchLimit(t *testing.T) {
	s := openTestStore(t)
	txs := make([]*domain.Transaction, store.MaxBatchSize+1)
	for i := range txs {
		txs[i] = venta("u1", "2025-02-01", "", 1)
	}
	if err := s.CreateTransactions(context.Background(), txs); !errors.Is(err, store.ErrBatchTooLarge) {
		t.Errorf("err = %v", err)
	}
}

func TestStore_ConfigUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, v := range []float64{36, 37.25} {
		if err := s.PutConfigDoc(ctx, "u1", domain.ConfigKeyTasaVenta, domain.TasaVenta{Valor: v}); err != nil {
			t.Fatal(err)
		}
	}
	var tv domain.TasaVenta
	if err := s.GetConfigDoc(ctx, "u1", domain.ConfigKeyTasaVenta, &tv); err != nil || tv.Valor != 37.25 {
		t.Errorf("got %+v, %v", tv, err)
	}
	if err := s.GetConfigDoc(ctx, "u1", domain.ConfigKeyTasaCambio, &tv); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing doc err = %v", err)
	}
}
