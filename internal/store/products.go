package store

import (
	"context"
	"fmt"
)

func (r *records) ProductByASIN(ctx context.Context, asin string) (*AmazonProduct, error) {
	var p AmazonProduct
	if err := r.get(ctx, &p, "SELECT * FROM amazon_products WHERE asin = ?", asin); err != nil {
		return nil, fmt.Errorf("get product %s: %w", asin, err)
	}
	return &p, nil
}

// UpsertProduct inserts p or overwrites the mutable fields of the existing row.
func (r *records) UpsertProduct(ctx context.Context, p *AmazonProduct) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO amazon_products (asin, title, price_usd, is_sponsored, rating, reviews, bought_last_month, seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asin) DO UPDATE SET
			title = excluded.title,
			price_usd = excluded.price_usd,
			is_sponsored = excluded.is_sponsored,
			rating = excluded.rating,
			reviews = excluded.reviews,
			bought_last_month = excluded.bought_last_month,
			seen_at = excluded.seen_at
	`, p.ASIN, p.Title, p.PriceUSD, p.IsSponsored, p.Rating, p.Reviews, p.BoughtLastMonth, p.SeenAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ASIN, err)
	}
	return nil
}

func (r *records) LinkNicheProduct(ctx context.Context, nicheID int64, asin string) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO niches_amazon_products (niche_id, amazon_product_asin) VALUES (?, ?)",
		nicheID, asin)
	if err != nil {
		return fmt.Errorf("link niche %d product %s: %w", nicheID, asin, err)
	}
	return nil
}

func (r *records) NicheProducts(ctx context.Context, nicheID int64) ([]AmazonProduct, error) {
	var products []AmazonProduct
	err := r.selectAll(ctx, &products, `
		SELECT p.* FROM amazon_products p
		JOIN niches_amazon_products np ON np.amazon_product_asin = p.asin
		WHERE np.niche_id = ?
		ORDER BY np.rowid
	`, nicheID)
	if err != nil {
		return nil, fmt.Errorf("list products for niche %d: %w", nicheID, err)
	}
	return products, nil
}
