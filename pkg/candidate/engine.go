// Package candidate selects promising niches from accumulated keyword history
// and summarizes them for export.
package candidate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
)

// topResults is the rank cutoff for first-page SERP items.
const topResults = 10

// Engine is the read-only candidate analytics engine.
type Engine struct {
	store store.Querier
	log   *zap.Logger
}

// NewEngine creates an engine over the record store.
func NewEngine(q store.Querier, log *zap.Logger) *Engine {
	return &Engine{store: q, log: log}
}

// Candidates returns the niches where at least one reachable keyword has a
// latest volume of at least minVolume and a latest SERP with a first-page
// result whose domain authority is at most maxDomainAuthority.
func (e *Engine) Candidates(ctx context.Context, minVolume, maxDomainAuthority int) ([]store.Niche, error) {
	niches, err := e.store.ListNiches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	var candidates []store.Niche
	for _, n := range niches {
		ok, err := e.IsCandidate(ctx, n.ID, minVolume, maxDomainAuthority)
		if err != nil {
			return nil, fmt.Errorf("check candidate %q: %w", n.Name, err)
		}
		if ok {
			candidates = append(candidates, n)
		}
	}
	return candidates, nil
}

// IsCandidate applies the candidate test to a single niche, stopping at the
// first qualifying keyword.
func (e *Engine) IsCandidate(ctx context.Context, nicheID int64, minVolume, maxDomainAuthority int) (bool, error) {
	found := false
	err := walkReachable(ctx, e.store, nicheID, func(kw store.Keyword) (bool, error) {
		ok, err := e.qualifies(ctx, kw.ID, minVolume, maxDomainAuthority)
		if err != nil {
			return false, err
		}
		found = ok
		return !ok, nil
	})
	return found, err
}

func (e *Engine) qualifies(ctx context.Context, keywordID int64, minVolume, maxDomainAuthority int) (bool, error) {
	reports, err := e.store.MetricsReports(ctx, keywordID)
	if err != nil {
		return false, err
	}
	metrics, ok := reports.Latest()
	if !ok || metrics.Volume < minVolume {
		return false, nil
	}

	analyses, err := e.store.SERPAnalyses(ctx, keywordID)
	if err != nil {
		return false, err
	}
	serp, ok := analyses.Latest()
	if !ok {
		return false, nil
	}
	for _, item := range serp.Items {
		if onFirstPage(item) && item.DomainAuthority != nil && *item.DomainAuthority <= maxDomainAuthority {
			return true, nil
		}
	}
	return false, nil
}

func onFirstPage(item store.SERPAnalysisItem) bool {
	return item.Position != nil && *item.Position <= topResults
}

// Reachable returns the niche's primary keywords followed by every keyword
// referenced from their suggestion sets, one hop deep and de-duplicated.
func Reachable(ctx context.Context, q store.Querier, nicheID int64) ([]store.Keyword, error) {
	var out []store.Keyword
	err := walkReachable(ctx, q, nicheID, func(kw store.Keyword) (bool, error) {
		out = append(out, kw)
		return true, nil
	})
	return out, err
}

// Reachable returns the keywords considered for the niche.
func (e *Engine) Reachable(ctx context.Context, nicheID int64) ([]store.Keyword, error) {
	return Reachable(ctx, e.store, nicheID)
}

// walkReachable visits reachable keywords in order until visit returns false.
// Suggestions are only loaded once every primary keyword has been visited.
func walkReachable(ctx context.Context, q store.Querier, nicheID int64, visit func(store.Keyword) (bool, error)) error {
	primaries, err := q.NicheKeywords(ctx, nicheID)
	if err != nil {
		return err
	}

	seen := make(map[int64]bool)
	for _, kw := range primaries {
		if seen[kw.ID] {
			continue
		}
		seen[kw.ID] = true
		if more, err := visit(kw); err != nil || !more {
			return err
		}
	}

	for _, primary := range primaries {
		sets, err := q.SuggestionSets(ctx, primary.ID)
		if err != nil {
			return err
		}
		var ids []int64
		for _, set := range sets {
			for _, id := range set.SuggestedKeywordIDs {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}

		suggested, err := q.KeywordsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, kw := range suggested {
			if more, err := visit(kw); err != nil || !more {
				return err
			}
		}
	}
	return nil
}
