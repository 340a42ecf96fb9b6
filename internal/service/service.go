// Package service is the single write path for ledger records. It derives
// fields before persisting, enforces status transitions and notifies
// subscribers whenever an owner's records change.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/ledger"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/rates"
	"github.com/dvloznov/fx-ledger/internal/store"
	"github.com/dvloznov/fx-ledger/internal/watch"
)

// DefaultBulkLimit bounds concurrent deletes in BulkDelete.
const DefaultBulkLimit = 16

var (
	// ErrRateRequired is returned when a Bs expense or a Compra has no rate
	// and none can be filled in automatically.
	ErrRateRequired = errors.New("a manual rate is required")

	// ErrNotCompra is returned by ChangeStatus for any other kind of record.
	ErrNotCompra = errors.New("record is not a Compra")

	// ErrInvalid wraps derivation and validation failures.
	ErrInvalid = errors.New("invalid transaction")
)

// RateResolver resolves the sale rate for a date. *rates.Resolver satisfies it.
type RateResolver interface {
	Resolve(ctx context.Context, fecha, ownerID string) (rates.Result, error)
}

// SaleRateSource reads an owner's configured sale rate. *rateconfig.Service
// satisfies it.
type SaleRateSource interface {
	Get(ctx context.Context, ownerID string) (domain.RateConfig, error)
}

// ChangeKind names what happened to an owner's records.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeImported ChangeKind = "imported"
)

// Change is published to subscribers after a successful write.
type Change struct {
	OwnerID string     `json:"ownerId"`
	Kind    ChangeKind `json:"kind"`
	Count   int        `json:"count"`
}

// Service wraps a record repository.
type Service struct {
	repo  store.TransactionRepository
	rates RateResolver
	hub   *watch.Hub[Change]

	// SaleRates fills the sale rate of a Compra sent without one.
	SaleRates SaleRateSource

	// Now stamps CreadoEn. BulkLimit caps concurrent deletes.
	Now       func() time.Time
	BulkLimit int
}

// New returns a Service. rates may be nil, in which case Bs expenses must
// always carry their own TasaUsada.
func New(repo store.TransactionRepository, rates RateResolver) *Service {
	return &Service{
		repo:      repo,
		rates:     rates,
		hub:       watch.NewHub[Change](),
		Now:       time.Now,
		BulkLimit: DefaultBulkLimit,
	}
}

// Subscribe returns a channel of change notifications for ownerID. Call the
// returned func to unsubscribe.
func (s *Service) Subscribe(ownerID string) (<-chan Change, func()) {
	return s.hub.Subscribe(ownerID)
}

// Close ends every subscription.
func (s *Service) Close() {
	s.hub.Close()
}

func (s *Service) notify(ownerID string, kind ChangeKind, count int) {
	if count <= 0 {
		return
	}
	s.hub.Publish(ownerID, Change{OwnerID: ownerID, Kind: kind, Count: count})
}

// Create derives, validates and persists a new record for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, tx *domain.Transaction) (*domain.Transaction, error) {
	if ownerID == "" {
		return nil, store.ErrOwnerRequired
	}
	out := tx.Clone()
	out.ID = ""
	out.OwnerID = ownerID
	if out.CreadoPor == "" {
		out.CreadoPor = ownerID
	}
	out.CreadoEn = s.Now().UTC()

	if err := s.prepare(ctx, out); err != nil {
		return nil, err
	}

	id, err := s.repo.CreateTransaction(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	out.ID = id

	log := logger.FromContext(ctx)
	log.Info().
		Str("owner_id", ownerID).
		Str("id", id).
		Str("tipo", string(out.Tipo())).
		Msg("Transaction created")
	s.notify(ownerID, ChangeCreated, 1)
	return out, nil
}

// Update replaces every field of an existing record and re-derives it. The
// creation stamp and import provenance of the stored record are kept.
func (s *Service) Update(ctx context.Context, ownerID string, tx *domain.Transaction) (*domain.Transaction, error) {
	current, err := s.repo.GetTransaction(ctx, ownerID, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	out := tx.Clone()
	out.OwnerID = ownerID
	out.CreadoPor = current.CreadoPor
	out.CreadoEn = current.CreadoEn
	out.Importado = current.Importado
	out.ImportadoDesde = current.ImportadoDesde

	// A moved Bs expense that still carries the old day's rate is re-resolved.
	if g, ok := out.Gasto(); ok && out.Moneda == domain.Bs && out.Fecha != current.Fecha {
		if old, ok := current.Gasto(); ok && g.TasaUsada == old.TasaUsada {
			g.TasaUsada = 0
		}
	}

	if err := s.prepare(ctx, out); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTransaction(ctx, out); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	s.notify(ownerID, ChangeUpdated, 1)
	return out, nil
}

// prepare fills missing rates, then derives and validates.
func (s *Service) prepare(ctx context.Context, tx *domain.Transaction) error {
	if c, ok := tx.Compra(); ok && c.TasaVenta <= 0 {
		tasa, err := s.saleRate(ctx, tx)
		if err != nil {
			return err
		}
		c.TasaVenta = tasa
	}
	if g, ok := tx.Gasto(); ok && tx.Moneda == domain.Bs && g.TasaUsada <= 0 {
		tasa, err := s.resolveTasa(ctx, tx)
		if err != nil {
			return err
		}
		g.TasaUsada = tasa
	}
	if err := ledger.ApplyDerived(tx); err != nil {
		return fmt.Errorf("%w: deriving fields: %w", ErrInvalid, err)
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// saleRate prefers the owner's configured sale rate and falls back to the
// rate resolved for the record's date.
func (s *Service) saleRate(ctx context.Context, tx *domain.Transaction) (float64, error) {
	if s.SaleRates != nil {
		cfg, err := s.SaleRates.Get(ctx, tx.OwnerID)
		if err != nil {
			return 0, fmt.Errorf("reading sale rate: %w", err)
		}
		if cfg.TasaVenta.Valor > 0 {
			return cfg.TasaVenta.Valor, nil
		}
	}
	return s.resolveTasa(ctx, tx)
}

func (s *Service) resolveTasa(ctx context.Context, tx *domain.Transaction) (float64, error) {
	if s.rates == nil {
		return 0, ErrRateRequired
	}
	res, err := s.rates.Resolve(ctx, tx.Fecha, tx.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("resolving rate: %w", err)
	}
	if !res.Usable() {
		return 0, fmt.Errorf("%w: %s", ErrRateRequired, res.Message)
	}
	return res.Rate, nil
}

// ChangeStatus moves a Compra between Por Cobrar and Pagado.
func (s *Service) ChangeStatus(ctx context.Context, ownerID, id string, next domain.CompraStatus) (*domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("ChangeStatus: %w", err)
	}
	c, ok := tx.Compra()
	if !ok {
		return nil, fmt.Errorf("ChangeStatus: %s: %w", id, ErrNotCompra)
	}
	if !c.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("ChangeStatus: %q to %q: %w", c.Status, next, domain.ErrInvalidStatusTransition)
	}
	if err := s.repo.UpdateCompraStatus(ctx, ownerID, id, next); err != nil {
		return nil, fmt.Errorf("ChangeStatus: %w", err)
	}
	c.Status = next

	s.notify(ownerID, ChangeUpdated, 1)
	return tx, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, ownerID, id)
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeleteTransaction(ctx, ownerID, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	s.notify(ownerID, ChangeDeleted, 1)
	return nil
}

// List returns the owner's records matching f.
func (s *Service) List(ctx context.Context, ownerID string, f store.Filter) ([]*domain.Transaction, error) {
	f.OwnerID = ownerID
	return s.repo.ListTransactions(ctx, f)
}

// Balances folds every record of the owner with the given variant.
func (s *Service) Balances(ctx context.Context, ownerID string, v ledger.Variant) (ledger.Balances, error) {
	txs, err := s.repo.ListTransactions(ctx, store.Filter{OwnerID: ownerID})
	if err != nil {
		return ledger.Balances{}, fmt.Errorf("Balances: %w", err)
	}
	return ledger.Compute(v, txs), nil
}
