// Package product keeps the current state of marketplace listings per niche.
package product

import (
	"context"
	"fmt"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

// Catalog upserts product snapshots and links them to niches.
type Catalog struct {
	store store.Store
}

// NewCatalog creates a product catalog.
func NewCatalog(s store.Store) *Catalog {
	return &Catalog{store: s}
}

// Upsert stores snap under the niche. An existing listing with the same ASIN
// is overwritten and the niche link is created at most once.
func (c *Catalog) Upsert(ctx context.Context, snap source.ProductSnapshot, nicheID int64) (*store.AmazonProduct, error) {
	if _, err := c.store.NicheByID(ctx, nicheID); err != nil {
		return nil, fmt.Errorf("upsert product %s: %w", snap.ASIN, err)
	}

	p := &store.AmazonProduct{
		ASIN:            snap.ASIN,
		Title:           snap.Title,
		PriceUSD:        snap.PriceUSD,
		IsSponsored:     snap.IsSponsored,
		Rating:          snap.Rating,
		Reviews:         snap.Reviews,
		BoughtLastMonth: snap.BoughtLastMonth,
		SeenAt:          snap.SeenAt.UTC(),
	}
	err := c.store.InTx(ctx, "upsert product", func(q store.Querier) error {
		if err := q.UpsertProduct(ctx, p); err != nil {
			return err
		}
		return q.LinkNicheProduct(ctx, nicheID, p.ASIN)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ForNiche lists the products linked to a niche.
func (c *Catalog) ForNiche(ctx context.Context, nicheID int64) ([]store.AmazonProduct, error) {
	return c.store.NicheProducts(ctx, nicheID)
}

func (c *Catalog) ByASIN(ctx context.Context, asin string) (*store.AmazonProduct, error) {
	return c.store.ProductByASIN(ctx, asin)
}
