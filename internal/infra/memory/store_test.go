package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

func newCompra(owner string) *domain.Transaction {
	return &domain.Transaction{
		OwnerID: owner,
		Fecha:   "2025-01-10",
		Monto:   100,
		Moneda:  domain.USD,
		Detail:  &domain.Compra{CompraBs: 4000, Tasa: 40, Status: domain.StatusPorCobrar},
	}
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreateTransaction(ctx, newCompra("u1"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	got, err := s.GetTransaction(ctx, "u1", id)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.ID != id || got.Tipo() != domain.TipoCompra {
		t.Errorf("got %+v", got)
	}

	if _, err := s.GetTransaction(ctx, "u2", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("other owner err = %v, want ErrNotFound", err)
	}

	if err := s.UpdateCompraStatus(ctx, "u1", id, domain.StatusPagado); err != nil {
		t.Fatalf("UpdateCompraStatus: %v", err)
	}
	got, _ = s.GetTransaction(ctx, "u1", id)
	if c, _ := got.Compra(); c.Status != domain.StatusPagado {
		t.Errorf("status = %q", c.Status)
	}

	got.Descripcion = "edited"
	if err := s.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	again, _ := s.GetTransaction(ctx, "u1", id)
	if again.Descripcion != "edited" {
		t.Errorf("Descripcion = %q", again.Descripcion)
	}

	if err := s.DeleteTransaction(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx := newCompra("u1")
	id, _ := s.CreateTransaction(ctx, tx)

	tx.Monto = 999
	got, _ := s.GetTransaction(ctx, "u1", id)
	got.Monto = 555

	stored, _ := s.GetTransaction(ctx, "u1", id)
	if stored.Monto != 100 {
		t.Errorf("stored record mutated: %v", stored.Monto)
	}
}

func TestStore_CreateTransactionsBatches(t *testing.T) {
	ctx := context.Background()
	s := New()

	tooMany := make([]*domain.Transaction, store.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = newCompra("u1")
	}
	if err := s.CreateTransactions(ctx, tooMany); !errors.Is(err, store.ErrBatchTooLarge) {
		t.Fatalf("err = %v, want ErrBatchTooLarge", err)
	}
	if s.Len() != 0 {
		t.Fatalf("rejected batch stored %d records", s.Len())
	}

	if err := s.CreateTransactions(ctx, tooMany[:3]); err != nil {
		t.Fatal(err)
	}
	for _, tx := range tooMany[:3] {
		if tx.ID == "" {
			t.Error("batch insert did not assign IDs")
		}
	}
	if b := s.Batches(); len(b) != 1 || b[0] != 3 {
		t.Errorf("Batches = %v", b)
	}
}

func TestStore_ListAndCount(t *testing.T) {
	ctx := context.Background()
	s := New()

	imported := newCompra("u1")
	imported.Importado = true
	imported.ImportadoDesde = domain.SourceCompras
	for _, tx := range []*domain.Transaction{newCompra("u1"), imported, newCompra("u2")} {
		if _, err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListTransactions(ctx, store.Filter{OwnerID: "u1"})
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %d, %v", len(list), err)
	}

	n, err := s.CountTransactions(ctx, store.Filter{OwnerID: "u1", ImportadoDesde: domain.SourceCompras})
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}

	if _, err := s.ListTransactions(ctx, store.Filter{}); !errors.Is(err, store.ErrOwnerRequired) {
		t.Errorf("unscoped list err = %v", err)
	}
}

func TestStore_ConfigDocs(t *testing.T) {
	ctx := context.Background()
	s := New()

	var tv domain.TasaVenta
	if err := s.GetConfigDoc(ctx, "u1", domain.ConfigKeyTasaVenta, &tv); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.PutConfigDoc(ctx, "u1", domain.ConfigKeyTasaVenta, domain.TasaVenta{Valor: 39}); err != nil {
		t.Fatal(err)
	}
	if err := s.GetConfigDoc(ctx, "u1", domain.ConfigKeyTasaVenta, &tv); err != nil || tv.Valor != 39 {
		t.Errorf("got %+v, %v", tv, err)
	}
}
