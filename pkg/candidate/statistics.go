package candidate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/stats"
)

const (
	// minProductRating excludes poorly rated listings from product statistics.
	minProductRating = 4.0
	// lowAuthority is the domain authority considered beatable.
	lowAuthority = 30
)

// KeywordStatistics summarizes the latest SERP of one reachable keyword.
type KeywordStatistics struct {
	Keyword              string        `json:"keyword"`
	Volume               int           `json:"volume"`
	DomainsWithDAUnder30 int           `json:"domains_with_DA_under_30"`
	DATop1               *int          `json:"da_top_1"`
	DATop2               *int          `json:"da_top_2"`
	DATop3               *int          `json:"da_top_3"`
	DA                   stats.Summary `json:"da"`
	Backlinks            stats.Summary `json:"backlinks"`
	ReferringDomains     stats.Summary `json:"referring_domains"`
	NofollowBacklinks    stats.Summary `json:"nofollow_backlinks"`
	DofollowBacklinks    stats.Summary `json:"dofollow_backlinks"`
}

// CandidateStatistics summarizes a niche's products and keywords.
type CandidateStatistics struct {
	Niche                 string              `json:"niche"`
	AmazonCommissionRate  *float64            `json:"amazon_commission_rate"`
	AmazonProductsPrice   stats.Summary       `json:"amazon_products_price"`
	AmazonProductsReviews stats.Summary       `json:"amazon_products_reviews"`
	AmazonProductsRatings stats.Summary       `json:"amazon_products_ratings"`
	AmazonProductsBought  stats.Summary       `json:"amazon_products_bought"`
	Keywords              []KeywordStatistics `json:"keywords"`
}

// Statistics computes the candidate statistics of a niche. Keywords missing
// either metrics or SERP history are skipped. A keyword with fewer than three
// first-page results fails the niche with *InsufficientDataError.
func (e *Engine) Statistics(ctx context.Context, niche store.Niche) (*CandidateStatistics, error) {
	products, err := e.store.NicheProducts(ctx, niche.ID)
	if err != nil {
		return nil, fmt.Errorf("statistics for %q: %w", niche.Name, err)
	}

	var price, reviews, ratings, bought []float64
	for _, p := range products {
		if p.IsSponsored || p.Rating == nil || *p.Rating < minProductRating {
			continue
		}
		price = append(price, p.PriceUSD)
		ratings = append(ratings, *p.Rating)
		if p.Reviews != nil {
			reviews = append(reviews, float64(*p.Reviews))
		}
		if p.BoughtLastMonth != nil {
			bought = append(bought, float64(*p.BoughtLastMonth))
		}
	}

	cs := &CandidateStatistics{
		Niche:                 niche.Name,
		AmazonCommissionRate:  niche.AmazonCommissionRate,
		AmazonProductsPrice:   stats.Describe(price),
		AmazonProductsReviews: stats.Describe(reviews),
		AmazonProductsRatings: stats.Describe(ratings),
		AmazonProductsBought:  stats.Describe(bought),
		Keywords:              []KeywordStatistics{},
	}

	keywords, err := Reachable(ctx, e.store, niche.ID)
	if err != nil {
		return nil, fmt.Errorf("statistics for %q: %w", niche.Name, err)
	}
	for _, kw := range keywords {
		row, ok, err := e.keywordStatistics(ctx, kw)
		if err != nil {
			return nil, fmt.Errorf("statistics for %q: %w", niche.Name, err)
		}
		if ok {
			cs.Keywords = append(cs.Keywords, *row)
		}
	}
	return cs, nil
}

func (e *Engine) keywordStatistics(ctx context.Context, kw store.Keyword) (*KeywordStatistics, bool, error) {
	reports, err := e.store.MetricsReports(ctx, kw.ID)
	if err != nil {
		return nil, false, err
	}
	metrics, ok := reports.Latest()
	if !ok {
		return nil, false, nil
	}
	analyses, err := e.store.SERPAnalyses(ctx, kw.ID)
	if err != nil {
		return nil, false, err
	}
	serp, ok := analyses.Latest()
	if !ok {
		return nil, false, nil
	}

	var top []store.SERPAnalysisItem
	for _, item := range serp.Items {
		if onFirstPage(item) {
			top = append(top, item)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return *top[i].Position < *top[j].Position })
	if len(top) < 3 {
		return nil, false, &InsufficientDataError{Keyword: kw.Keyword, Have: len(top)}
	}

	row := &KeywordStatistics{
		Keyword: kw.Keyword,
		Volume:  metrics.Volume,
		DATop1:  top[0].DomainAuthority,
		DATop2:  top[1].DomainAuthority,
		DATop3:  top[2].DomainAuthority,
	}

	var da, backlinks, refDomains, nofollow, dofollow []*int
	for _, item := range top {
		if item.DomainAuthority != nil && *item.DomainAuthority <= lowAuthority {
			row.DomainsWithDAUnder30++
		}
		da = append(da, item.DomainAuthority)
		backlinks = append(backlinks, item.Backlinks)
		refDomains = append(refDomains, item.ReferringDomains)
		nofollow = append(nofollow, item.NofollowBacklinks)
		dofollow = append(dofollow, item.DofollowBacklinks)
	}
	row.DA = stats.Describe(stats.Ints(da))
	row.Backlinks = stats.Describe(stats.Ints(backlinks))
	row.ReferringDomains = stats.Describe(stats.Ints(refDomains))
	row.NofollowBacklinks = stats.Describe(stats.Ints(nofollow))
	row.DofollowBacklinks = stats.Describe(stats.Ints(dofollow))
	return row, true, nil
}

// StatisticsForAll computes statistics for every niche with at most workers
// in flight. Results keep the order of niches; a niche that fails leaves a nil
// slot and its error is joined into the returned error.
func (e *Engine) StatisticsForAll(ctx context.Context, niches []store.Niche, workers int) ([]*CandidateStatistics, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]*CandidateStatistics, len(niches))
	errs := make([]error, len(niches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, n := range niches {
		g.Go(func() error {
			cs, err := e.Statistics(gctx, n)
			if err != nil {
				e.log.Warn("candidate statistics failed", zap.String("niche", n.Name), zap.Error(err))
				errs[i] = err
				return nil
			}
			results[i] = cs
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}
