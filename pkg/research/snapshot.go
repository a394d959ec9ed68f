package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/alert"
	"github.com/brunotatsuya/affiliana-cli/pkg/candidate"
)

// SnapshotResult describes one snapshot run.
type SnapshotResult struct {
	RunID      string
	Candidates []store.Niche
	Statistics []*candidate.CandidateStatistics
	New        []alert.Candidate
	Rows       int
}

// Snapshot collects niche data and exports candidate statistics.
type Snapshot struct {
	engine   *candidate.Engine
	niches   *NicheResearch
	products *ProductResearch
	alerts   *alert.Manager
	limits   Thresholds
	workers  int
	log      *zap.Logger

	mu        sync.Mutex
	announced map[string]bool
}

// NewSnapshot creates a snapshot runner. alerts may be nil.
func NewSnapshot(
	engine *candidate.Engine,
	niches *NicheResearch,
	products *ProductResearch,
	alerts *alert.Manager,
	limits Thresholds,
	workers int,
	log *zap.Logger,
) *Snapshot {
	return &Snapshot{
		engine:    engine,
		niches:    niches,
		products:  products,
		alerts:    alerts,
		limits:    limits,
		workers:   workers,
		log:       log,
		announced: make(map[string]bool),
	}
}

// Collect runs one data collection round: niche ideas, missing commission
// rates, then products for candidates. Every step runs even when an earlier
// one fails.
func (s *Snapshot) Collect(ctx context.Context) error {
	var errs []error

	if s.niches != nil {
		if n, err := s.niches.FetchFromIdeas(ctx); err != nil {
			errs = append(errs, fmt.Errorf("fetch ideas: %w", err))
		} else {
			s.log.Info("niches researched", zap.Int("count", n))
		}

		if s.niches.classifier != nil {
			if _, err := s.niches.UpdateCommissionRates(ctx, false); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if s.products != nil {
		if n, err := s.products.FetchForCandidates(ctx); err != nil {
			errs = append(errs, fmt.Errorf("fetch products: %w", err))
		} else {
			s.log.Info("candidate products fetched", zap.Int("niches", n))
		}
	}
	return errors.Join(errs...)
}

// GenerateSnapshot writes the statistics of every candidate niche to w as CSV.
// Niches whose statistics cannot be computed are logged and left out.
// Candidates not announced by an earlier run are broadcast to the alerts.
func (s *Snapshot) GenerateSnapshot(ctx context.Context, w io.Writer) (*SnapshotResult, error) {
	res := &SnapshotResult{RunID: uuid.NewString()}
	log := s.log.With(zap.String("run_id", res.RunID))

	candidates, err := s.engine.Candidates(ctx, s.limits.MinVolume, s.limits.MaxDomainAuthority)
	if err != nil {
		return nil, fmt.Errorf("generate snapshot: %w", err)
	}
	res.Candidates = candidates
	log.Info("candidates selected", zap.Int("count", len(candidates)))

	all, err := s.engine.StatisticsForAll(ctx, candidates, s.workers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("statistics incomplete", zap.Error(err))
	}
	for _, cs := range all {
		if cs != nil {
			res.Statistics = append(res.Statistics, cs)
		}
	}

	if err := candidate.WriteCSV(w, res.Statistics); err != nil {
		return nil, fmt.Errorf("generate snapshot: %w", err)
	}
	res.Rows = len(candidate.Records(res.Statistics))
	log.Info("snapshot written", zap.Int("niches", len(res.Statistics)), zap.Int("rows", res.Rows))

	res.New = s.newCandidates(res.Statistics)
	s.announce(ctx, log, res)
	return res, nil
}

// newCandidates returns the candidates not seen by earlier runs and marks
// them as seen.
func (s *Snapshot) newCandidates(all []*candidate.CandidateStatistics) []alert.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []alert.Candidate
	for _, cs := range all {
		if s.announced[cs.Niche] {
			continue
		}
		s.announced[cs.Niche] = true
		fresh = append(fresh, summarize(cs))
	}
	return fresh
}

func (s *Snapshot) announce(ctx context.Context, log *zap.Logger, res *SnapshotResult) {
	if s.alerts == nil || !s.alerts.HasNotifiers() || len(res.New) == 0 {
		return
	}

	n := &alert.Notification{
		RunID:      res.RunID,
		Title:      fmt.Sprintf("%d new candidate niches", len(res.New)),
		Body:       fmt.Sprintf("Snapshot found %d candidates, %d of them new.", len(res.Statistics), len(res.New)),
		Candidates: res.New,
	}
	if err := s.alerts.Broadcast(ctx, n); err != nil {
		log.Error("alert failed", zap.Error(err))
		return
	}
	log.Info("candidates announced", zap.Int("count", len(res.New)))
}

func summarize(cs *candidate.CandidateStatistics) alert.Candidate {
	c := alert.Candidate{
		Niche:          cs.Niche,
		CommissionRate: cs.AmazonCommissionRate,
		Keywords:       len(cs.Keywords),
	}
	for _, kw := range cs.Keywords {
		c.TopVolume = max(c.TopVolume, kw.Volume)
	}
	return c
}
