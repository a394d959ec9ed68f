// Package research drives the collaborators that feed the keyword history
// and turns the accumulated history into candidate snapshots.
package research

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/keyword"
	"github.com/brunotatsuya/affiliana-cli/pkg/niche"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

// ErrAlreadyResearched is returned when a niche already has keyword data.
var ErrAlreadyResearched = errors.New("niche already researched")

// NicheOptions tunes niche research.
type NicheOptions struct {
	PrimaryPrefix   string
	CommissionBatch int
	Retry           source.Retry
}

// NicheResearch fetches keyword reports and commission rates for niches.
type NicheResearch struct {
	niches     *niche.Registry
	keywords   *keyword.Manager
	reports    source.KeywordSource
	classifier source.CommissionClassifier // optional
	ideas      []source.IdeaSource
	opts       NicheOptions
	log        *zap.Logger
}

// NewNicheResearch creates a niche research orchestrator. classifier may be nil.
func NewNicheResearch(
	niches *niche.Registry,
	keywords *keyword.Manager,
	reports source.KeywordSource,
	classifier source.CommissionClassifier,
	ideas []source.IdeaSource,
	opts NicheOptions,
	log *zap.Logger,
) *NicheResearch {
	if opts.PrimaryPrefix == "" {
		opts.PrimaryPrefix = "best "
	}
	if opts.CommissionBatch <= 0 {
		opts.CommissionBatch = 50
	}
	return &NicheResearch{
		niches:     niches,
		keywords:   keywords,
		reports:    reports,
		classifier: classifier,
		ideas:      ideas,
		opts:       opts,
		log:        log,
	}
}

// FetchData researches the primary keyword of a niche and records the report.
// A niche that already has keywords is left untouched and reported with
// ErrAlreadyResearched.
func (r *NicheResearch) FetchData(ctx context.Context, name string) (*store.Keyword, error) {
	name = niche.FormatName(name)
	n, err := r.niches.FindOrInsert(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch data for %q: %w", name, err)
	}

	kws, err := r.niches.Keywords(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch data for %q: %w", name, err)
	}
	if len(kws) > 0 {
		r.log.Debug("niche already has data", zap.String("niche", name))
		return nil, fmt.Errorf("fetch data for %q: %w", name, ErrAlreadyResearched)
	}

	primary := r.opts.PrimaryPrefix + name
	r.log.Info("fetching keyword report", zap.String("niche", name), zap.String("keyword", primary))
	report, err := r.reports.KeywordReport(ctx, primary)
	if err != nil {
		return nil, fmt.Errorf("fetch report %q: %w", primary, err)
	}

	kw, err := r.keywords.UpsertReport(ctx, *report, n.ID)
	if err != nil {
		return nil, err
	}
	r.log.Info("niche data saved",
		zap.String("niche", name),
		zap.Int64("keyword_id", kw.ID),
		zap.Int("suggestions", len(report.Suggestions)))
	return kw, nil
}

// ImportReport records a report file under the named niche, regardless of
// existing data.
func (r *NicheResearch) ImportReport(ctx context.Context, name, path string) (*store.Keyword, error) {
	report, err := source.ReadReportFile(path)
	if err != nil {
		return nil, err
	}

	name = niche.FormatName(name)
	n, err := r.niches.FindOrInsert(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch data for %q: %w", name, err)
	}
	return r.keywords.UpsertReport(ctx, *report, n.ID)
}

// UpdateCommissionRates classifies niches in batches and stores the rates.
// Without force only niches lacking a rate are classified. A failed batch is
// logged and the remaining batches still run.
func (r *NicheResearch) UpdateCommissionRates(ctx context.Context, force bool) ([]store.Niche, error) {
	if r.classifier == nil {
		return nil, errors.New("update commission rates: no classifier configured")
	}

	var names []string
	var err error
	if force {
		names, err = r.niches.AllNames(ctx)
	} else {
		names, err = r.niches.NamesWithNoCommissionRate(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("update commission rates: %w", err)
	}
	if len(names) == 0 {
		r.log.Debug("no niches to update commission rates")
		return nil, nil
	}

	var rates []source.NicheCommission
	for i := 0; i < len(names); i += r.opts.CommissionBatch {
		batch := names[i:min(i+r.opts.CommissionBatch, len(names))]
		r.log.Info("classifying commission rates", zap.Int("from", i), zap.Int("count", len(batch)))

		got, err := r.classify(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Error("commission batch failed", zap.Int("from", i), zap.Error(err))
			continue
		}
		rates = append(rates, got...)
	}

	updated, err := r.niches.UpdateCommissionRates(ctx, rates)
	if err != nil {
		return nil, err
	}
	r.log.Info("commission rates updated", zap.Int("niches", len(updated)))
	return updated, nil
}

func (r *NicheResearch) classify(ctx context.Context, batch []string) ([]source.NicheCommission, error) {
	var rates []source.NicheCommission
	op := func() error {
		got, err := r.classifier.CommissionRates(ctx, batch)
		if errors.Is(err, source.ErrFormat) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		rates = got
		return nil
	}
	if err := backoff.Retry(op, r.opts.Retry.BackOff(ctx)); err != nil {
		return nil, err
	}
	return rates, nil
}

// FetchFromIdeas researches every niche proposed by the idea sources.
// Individual failures are logged; only cancellation stops the round.
func (r *NicheResearch) FetchFromIdeas(ctx context.Context) (int, error) {
	fetched := 0
	for _, src := range r.ideas {
		ideas, err := src.Ideas(ctx)
		if err != nil {
			r.log.Error("idea source failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		r.log.Info("niche ideas", zap.String("source", src.Name()), zap.Int("count", len(ideas)))

		n, err := r.fetchAll(ctx, ideas)
		fetched += n
		if err != nil {
			return fetched, err
		}
	}
	return fetched, nil
}

// FetchFromList researches the niches named in a text file, one per line.
// Blank lines are ignored. Individual failures are logged.
func (r *NicheResearch) FetchFromList(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open niche list: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read niche list %s: %w", path, err)
	}
	r.log.Info("niche list", zap.String("path", path), zap.Int("count", len(names)))

	return r.fetchAll(ctx, names)
}

// fetchAll runs FetchData for each name. Already researched niches are
// skipped silently.
func (r *NicheResearch) fetchAll(ctx context.Context, names []string) (int, error) {
	fetched := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return fetched, ctx.Err()
		}
		_, err := r.FetchData(ctx, name)
		switch {
		case err == nil:
			fetched++
		case errors.Is(err, ErrAlreadyResearched):
		case errors.Is(err, source.ErrNoData):
			r.log.Warn("no data for niche", zap.String("niche", name), zap.Error(err))
		default:
			r.log.Error("niche research failed", zap.String("niche", name), zap.Error(err))
		}
	}
	return fetched, nil
}
