// Package rates resolves the Bs-per-USD sale rate that applies to a date.
//
// There is no independent rate feed: the most recent Venta record is the
// authority. Resolution is an ordered chain of strategies where the first one
// that matches wins.
package rates

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/store"
)

// State classifies a resolution outcome. Only Found and Recent carry a usable rate.
type State string

const (
	StateFound            State = "found"
	StateRecent           State = "recent"
	StateStale            State = "stale"
	StateNoRate           State = "no_rate"
	StateHistoricalNoRate State = "historical_no_rate"
)

// MaxRecentAge is the oldest, in days, the latest sale may be and still be used for today.
const MaxRecentAge = 1

// Result is the outcome of resolving a rate.
type Result struct {
	Rate       float64 `json:"rate"`
	SourceDate string  `json:"sourceDate,omitempty"`
	SourceTime string  `json:"sourceTime,omitempty"`
	State      State   `json:"state"`

	// StaleRate is the rejected rate when State is StateStale.
	StaleRate float64 `json:"staleRate,omitempty"`

	Message     string `json:"message"`
	NeedsUpdate bool   `json:"needsUpdate"`
	AllowManual bool   `json:"allowManual"`
}

// Usable reports whether Rate may be applied without asking the user.
func (r Result) Usable() bool {
	return r.State == StateFound || r.State == StateRecent
}

// VentaSource lists records. Any store.TransactionRepository satisfies it.
type VentaSource interface {
	ListTransactions(ctx context.Context, f store.Filter) ([]*domain.Transaction, error)
}

// Query is what every strategy sees.
type Query struct {
	OwnerID string
	Fecha   civil.Date
	Today   civil.Date
}

// IsToday reports whether the queried date is the current date.
func (q Query) IsToday() bool { return q.Fecha == q.Today }

// Strategy tries to resolve q. ok=false passes control to the next strategy.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, q Query) (res Result, ok bool, err error)
}

// Resolver runs Strategies in order.
type Resolver struct {
	Strategies []Strategy

	// Now and Location define "today". Both default when nil.
	Now      func() time.Time
	Location *time.Location

	// OnResolve, when set, observes every successful resolution.
	OnResolve func(Result)
}

// NewResolver returns the standard chain: same day, latest sale when the date
// is today, then a terminal historical fallback.
func NewResolver(src VentaSource, loc *time.Location) *Resolver {
	return &Resolver{
		Strategies: []Strategy{
			SameDay{Source: src},
			Latest{Source: src},
			Historical{},
		},
		Now:      time.Now,
		Location: loc,
	}
}

// Resolve finds the rate for fecha (YYYY-MM-DD, blank for today).
func (r *Resolver) Resolve(ctx context.Context, fecha, ownerID string) (Result, error) {
	today := r.today()
	q := Query{OwnerID: ownerID, Fecha: today, Today: today}
	if fecha != "" {
		d, err := civil.ParseDate(fecha)
		if err != nil {
			return Result{}, fmt.Errorf("Resolve: parsing fecha %q: %w", fecha, err)
		}
		q.Fecha = d
	}

	for _, s := range r.Strategies {
		res, ok, err := s.Resolve(ctx, q)
		if err != nil {
			return Result{}, fmt.Errorf("Resolve: %s: %w", s.Name(), err)
		}
		if ok {
			if r.OnResolve != nil {
				r.OnResolve(res)
			}
			return res, nil
		}
	}
	return Result{}, fmt.Errorf("Resolve: no strategy matched %s", q.Fecha)
}

func (r *Resolver) today() civil.Date {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return civil.DateOf(now().In(loc))
}
