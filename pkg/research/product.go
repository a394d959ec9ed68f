package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/pkg/candidate"
	"github.com/brunotatsuya/affiliana-cli/pkg/niche"
	"github.com/brunotatsuya/affiliana-cli/pkg/product"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

// Thresholds are the candidate selection parameters.
type Thresholds struct {
	MinVolume          int
	MaxDomainAuthority int
}

// ProductResearch fetches marketplace listings for niches.
type ProductResearch struct {
	niches  *niche.Registry
	catalog *product.Catalog
	engine  *candidate.Engine
	search  source.ProductSource
	limits  Thresholds
	log     *zap.Logger
}

// NewProductResearch creates a product research orchestrator.
func NewProductResearch(
	niches *niche.Registry,
	catalog *product.Catalog,
	engine *candidate.Engine,
	search source.ProductSource,
	limits Thresholds,
	log *zap.Logger,
) *ProductResearch {
	return &ProductResearch{
		niches:  niches,
		catalog: catalog,
		engine:  engine,
		search:  search,
		limits:  limits,
		log:     log,
	}
}

// FetchForNiche searches listings for the niche and stores every result.
// It returns the number of listings stored.
func (p *ProductResearch) FetchForNiche(ctx context.Context, name string) (int, error) {
	name = niche.FormatName(name)
	n, err := p.niches.FindOrInsert(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("fetch products for %q: %w", name, err)
	}

	p.log.Info("searching products", zap.String("niche", name))
	snaps, err := p.search.SearchProducts(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("fetch products for %q: %w", name, err)
	}

	for _, snap := range snaps {
		if _, err := p.catalog.Upsert(ctx, snap, n.ID); err != nil {
			return 0, err
		}
	}
	p.log.Info("products saved", zap.String("niche", name), zap.Int("count", len(snaps)))
	return len(snaps), nil
}

// FetchForCandidates fetches listings for every candidate niche that has no
// products yet. Per-niche failures are logged.
func (p *ProductResearch) FetchForCandidates(ctx context.Context) (int, error) {
	p.log.Info("calculating niche candidates")
	niches, err := p.engine.Candidates(ctx, p.limits.MinVolume, p.limits.MaxDomainAuthority)
	if err != nil {
		return 0, err
	}

	fetched := 0
	for _, n := range niches {
		existing, err := p.catalog.ForNiche(ctx, n.ID)
		if err != nil {
			return fetched, err
		}
		if len(existing) > 0 {
			p.log.Debug("niche already has products", zap.String("niche", n.Name))
			continue
		}

		if _, err := p.FetchForNiche(ctx, n.Name); err != nil {
			if ctx.Err() != nil {
				return fetched, ctx.Err()
			}
			p.log.Error("product research failed", zap.String("niche", n.Name), zap.Error(err))
			continue
		}
		fetched++
	}
	return fetched, nil
}
