// Package rateconfig owns the per-owner rate configuration: the sale rate and
// the USD conversion factors. Reads are cached; every write is published to
// subscribers.
package rateconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/logger"
	"github.com/dvloznov/fx-ledger/internal/store"
	"github.com/dvloznov/fx-ledger/internal/watch"
)

const (
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// ErrInvalidRate is returned when a rate is not a positive number.
var ErrInvalidRate = errors.New("rate must be greater than zero")

// Service reads and writes rate configuration documents.
type Service struct {
	repo  store.ConfigRepository
	cache *cache.Cache
	hub   *watch.Hub[domain.RateConfig]
	now   func() time.Time
}

// NewService creates a Service backed by repo.
func NewService(repo store.ConfigRepository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(DefaultCacheExpiration, CacheCleanupInterval),
		hub:   watch.NewHub[domain.RateConfig](),
		now:   time.Now,
	}
}

// Get returns the owner's configuration. Missing documents fall back to the
// defaults and are not persisted until the owner saves a value.
func (s *Service) Get(ctx context.Context, ownerID string) (domain.RateConfig, error) {
	if cached, found := s.cache.Get(ownerID); found {
		return cached.(domain.RateConfig), nil
	}

	cfg := domain.DefaultRateConfig()

	var tv domain.TasaVenta
	switch err := s.repo.GetConfigDoc(ctx, ownerID, domain.ConfigKeyTasaVenta, &tv); {
	case err == nil:
		cfg.TasaVenta = tv
	case !errors.Is(err, store.ErrNotFound):
		return domain.RateConfig{}, fmt.Errorf("Get: reading %s: %w", domain.ConfigKeyTasaVenta, err)
	}

	var tc domain.TasaCambio
	switch err := s.repo.GetConfigDoc(ctx, ownerID, domain.ConfigKeyTasaCambio, &tc); {
	case err == nil:
		cfg.TasaCambio = tc
	case !errors.Is(err, store.ErrNotFound):
		return domain.RateConfig{}, fmt.Errorf("Get: reading %s: %w", domain.ConfigKeyTasaCambio, err)
	}

	s.cache.Set(ownerID, cfg, cache.DefaultExpiration)
	return cfg, nil
}

// SetTasaVenta stores a new sale rate.
func (s *Service) SetTasaVenta(ctx context.Context, ownerID string, valor float64) (domain.RateConfig, error) {
	if !(valor > 0) {
		return domain.RateConfig{}, ErrInvalidRate
	}
	doc := domain.TasaVenta{Valor: valor, ActualizadoEn: s.now().UTC()}
	if err := s.repo.PutConfigDoc(ctx, ownerID, domain.ConfigKeyTasaVenta, doc); err != nil {
		return domain.RateConfig{}, fmt.Errorf("SetTasaVenta: writing: %w", err)
	}
	return s.refresh(ctx, ownerID)
}

// SetTasaCambio stores new conversion factors.
func (s *Service) SetTasaCambio(ctx context.Context, ownerID string, usdToBs, usdtToUsd float64) (domain.RateConfig, error) {
	if !(usdToBs > 0) || !(usdtToUsd > 0) {
		return domain.RateConfig{}, ErrInvalidRate
	}
	doc := domain.TasaCambio{UsdToBs: usdToBs, UsdtToUsd: usdtToUsd, ActualizadoEn: s.now().UTC()}
	if err := s.repo.PutConfigDoc(ctx, ownerID, domain.ConfigKeyTasaCambio, doc); err != nil {
		return domain.RateConfig{}, fmt.Errorf("SetTasaCambio: writing: %w", err)
	}
	return s.refresh(ctx, ownerID)
}

// Subscribe delivers the owner's configuration after every successful write.
// Call the returned func to unsubscribe.
func (s *Service) Subscribe(ownerID string) (<-chan domain.RateConfig, func()) {
	return s.hub.Subscribe(ownerID)
}

// Invalidate drops the cached configuration for ownerID.
func (s *Service) Invalidate(ownerID string) {
	s.cache.Delete(ownerID)
}

// Close ends every subscription.
func (s *Service) Close() {
	s.hub.Close()
}

func (s *Service) refresh(ctx context.Context, ownerID string) (domain.RateConfig, error) {
	s.Invalidate(ownerID)
	cfg, err := s.Get(ctx, ownerID)
	if err != nil {
		return domain.RateConfig{}, err
	}
	s.hub.Publish(ownerID, cfg)
	log := logger.FromContext(ctx)
	log.Info().
		Str("owner_id", ownerID).
		Float64("tasa_venta", cfg.TasaVenta.Valor).
		Msg("Rate configuration updated")
	return cfg, nil
}
