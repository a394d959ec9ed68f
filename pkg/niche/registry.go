// Package niche manages the registry of researched niches.
package niche

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

// Registry resolves niches by name and maintains their commission rates.
type Registry struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewRegistry creates a niche registry.
func NewRegistry(s store.Store, log *zap.Logger) *Registry {
	return &Registry{store: s, log: log, now: time.Now}
}

// FormatName normalizes a raw niche name before lookup.
func FormatName(name string) string {
	return source.FormatNicheName(name)
}

// FindOrInsert returns the niche with exactly this name, creating it when absent.
// A concurrent insert of the same name resolves to the existing row.
func (r *Registry) FindOrInsert(ctx context.Context, name string) (*store.Niche, error) {
	var n *store.Niche
	err := r.store.InTx(ctx, "find or insert niche", func(q store.Querier) error {
		existing, err := q.NicheByName(ctx, name)
		if err == nil {
			n = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		n = &store.Niche{Name: name, CreatedAt: r.now().UTC()}
		return q.InsertNiche(ctx, n)
	})
	if errors.Is(err, store.ErrConflict) {
		return r.store.NicheByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// AllNames lists every niche name in insertion order.
func (r *Registry) AllNames(ctx context.Context) ([]string, error) {
	return r.store.ListNicheNames(ctx, store.NicheNameOpts{})
}

// NamesWithNoCommissionRate lists niches whose commission rate is unknown.
func (r *Registry) NamesWithNoCommissionRate(ctx context.Context) ([]string, error) {
	return r.store.ListNicheNames(ctx, store.NicheNameOpts{WithoutCommissionRate: true})
}

// UpdateCommissionRates applies the rates in one transaction and returns the
// niches that were updated. Unknown niche names are skipped.
func (r *Registry) UpdateCommissionRates(ctx context.Context, rates []source.NicheCommission) ([]store.Niche, error) {
	var updated []store.Niche
	err := r.store.InTx(ctx, "update commission rates", func(q store.Querier) error {
		for _, rate := range rates {
			n, err := q.NicheByName(ctx, rate.Niche)
			if errors.Is(err, store.ErrNotFound) {
				r.log.Debug("commission for unknown niche skipped", zap.String("niche", rate.Niche))
				continue
			}
			if err != nil {
				return err
			}
			if err := q.SetCommissionRate(ctx, n.ID, rate.CommissionRate); err != nil {
				return err
			}
			v := rate.CommissionRate
			n.AmazonCommissionRate = &v
			updated = append(updated, *n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Registry) ByID(ctx context.Context, id int64) (*store.Niche, error) {
	return r.store.NicheByID(ctx, id)
}

func (r *Registry) ByName(ctx context.Context, name string) (*store.Niche, error) {
	return r.store.NicheByName(ctx, name)
}

func (r *Registry) List(ctx context.Context) ([]store.Niche, error) {
	return r.store.ListNiches(ctx)
}

// Keywords returns the primary keywords linked to a niche.
func (r *Registry) Keywords(ctx context.Context, nicheID int64) ([]store.Keyword, error) {
	return r.store.NicheKeywords(ctx, nicheID)
}
