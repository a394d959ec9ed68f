package store

import (
	"context"
	"fmt"
)

func (r *records) NicheByID(ctx context.Context, id int64) (*Niche, error) {
	var n Niche
	if err := r.get(ctx, &n, "SELECT * FROM niches WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get niche %d: %w", id, err)
	}
	return &n, nil
}

func (r *records) NicheByName(ctx context.Context, name string) (*Niche, error) {
	var n Niche
	if err := r.get(ctx, &n, "SELECT * FROM niches WHERE name = ?", name); err != nil {
		return nil, fmt.Errorf("get niche %q: %w", name, err)
	}
	return &n, nil
}

func (r *records) ListNiches(ctx context.Context) ([]Niche, error) {
	var niches []Niche
	if err := r.selectAll(ctx, &niches, "SELECT * FROM niches ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list niches: %w", err)
	}
	return niches, nil
}

func (r *records) ListNicheNames(ctx context.Context, opts NicheNameOpts) ([]string, error) {
	query := "SELECT name FROM niches WHERE 1=1"
	if opts.WithoutCommissionRate {
		query += " AND amazon_commission_rate IS NULL"
	}
	query += " ORDER BY id"

	names := []string{}
	if err := r.selectAll(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list niche names: %w", err)
	}
	return names, nil
}

func (r *records) InsertNiche(ctx context.Context, n *Niche) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO niches (name, amazon_commission_rate, created_at)
		VALUES (?, ?, ?)
	`, n.Name, n.AmazonCommissionRate, n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert niche %q: %w", n.Name, classify(err))
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

func (r *records) SetCommissionRate(ctx context.Context, nicheID int64, rate float64) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE niches SET amazon_commission_rate = ? WHERE id = ?", rate, nicheID)
	if err != nil {
		return fmt.Errorf("set commission rate %d: %w", nicheID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set commission rate %d: %w", nicheID, ErrNotFound)
	}
	return nil
}

func (r *records) LinkNicheKeyword(ctx context.Context, nicheID, keywordID int64) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO niches_keywords (niche_id, keyword_id) VALUES (?, ?)",
		nicheID, keywordID)
	if err != nil {
		return fmt.Errorf("link niche %d keyword %d: %w", nicheID, keywordID, err)
	}
	return nil
}

func (r *records) NicheKeywords(ctx context.Context, nicheID int64) ([]Keyword, error) {
	var kws []Keyword
	err := r.selectAll(ctx, &kws, `
		SELECT k.* FROM keywords k
		JOIN niches_keywords nk ON nk.keyword_id = k.id
		WHERE nk.niche_id = ?
		ORDER BY nk.rowid
	`, nicheID)
	if err != nil {
		return nil, fmt.Errorf("list keywords for niche %d: %w", nicheID, err)
	}
	return kws, nil
}
