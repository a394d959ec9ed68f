// Package keyword records keyword research reports as append-only history.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

// Manager resolves keyword identities and appends report snapshots.
type Manager struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewManager creates a keyword history manager.
func NewManager(s store.Store, log *zap.Logger) *Manager {
	return &Manager{store: s, log: log, now: time.Now}
}

// UpsertReport records report under the niche in a single transaction and
// returns the primary keyword with its full history.
//
// A missing niche fails with store.ErrNotFound before anything is written.
// Any failure after that rolls back every write and is returned as a
// *store.TxError.
func (m *Manager) UpsertReport(ctx context.Context, report source.KeywordReport, nicheID int64) (*store.Keyword, error) {
	if _, err := m.store.NicheByID(ctx, nicheID); err != nil {
		return nil, fmt.Errorf("upsert keyword report %q: %w", report.Info.Keyword, err)
	}

	var primary *store.Keyword
	err := m.store.InTx(ctx, "upsert keyword report", func(q store.Querier) error {
		kw, created, err := m.resolve(ctx, q, report.Info, keywordType(report.Info.Type, store.KeywordPrimary))
		if err != nil {
			return err
		}
		if created {
			if err := q.LinkNicheKeyword(ctx, nicheID, kw.ID); err != nil {
				return err
			}
		}

		if err := q.AddMetricsReport(ctx, metricsReport(kw.ID, report.Info, m.now())); err != nil {
			return err
		}
		if err := q.AddSERPAnalysis(ctx, serpAnalysis(kw.ID, report.SERPAnalysis, m.now())); err != nil {
			return err
		}

		set := &store.SuggestionSet{KeywordID: kw.ID, CreatedAt: orNow(report.Info.UpdatedAt, m.now())}
		for _, info := range report.Suggestions {
			suggested, _, err := m.resolve(ctx, q, info, keywordType(info.Type, store.KeywordSuggestion))
			if err != nil {
				return err
			}
			if err := q.AddMetricsReport(ctx, metricsReport(suggested.ID, info, m.now())); err != nil {
				return err
			}
			set.SuggestedKeywordIDs = append(set.SuggestedKeywordIDs, suggested.ID)
		}
		if err := q.AddSuggestionSet(ctx, set); err != nil {
			return err
		}

		primary, err = hydrate(ctx, q, kw)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.log.Debug("keyword report recorded",
		zap.String("keyword", primary.Keyword),
		zap.Int64("niche_id", nicheID),
		zap.Int("suggestions", len(report.Suggestions)),
	)
	return primary, nil
}

// Find returns the keyword with the given identity, without history.
func (m *Manager) Find(ctx context.Context, keyword, language string, locID int) (*store.Keyword, error) {
	return m.store.FindKeyword(ctx, store.KeywordKey{Keyword: keyword, Language: language, LocID: locID})
}

// Load returns the keyword with its full history.
func (m *Manager) Load(ctx context.Context, id int64) (*store.Keyword, error) {
	kw, err := m.store.KeywordByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return hydrate(ctx, m.store, kw)
}

// resolve returns the keyword matching info's identity, creating it when absent.
func (m *Manager) resolve(ctx context.Context, q store.Querier, info source.KeywordInfo, typ store.KeywordType) (*store.Keyword, bool, error) {
	key := store.KeywordKey{Keyword: info.Keyword, Language: info.Language, LocID: info.LocID}
	kw, err := q.FindKeyword(ctx, key)
	if err == nil {
		return kw, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	kw = &store.Keyword{
		Keyword:   key.Keyword,
		Language:  key.Language,
		LocID:     key.LocID,
		Type:      typ,
		CreatedAt: m.now().UTC(),
	}
	if err := q.InsertKeyword(ctx, kw); err != nil {
		return nil, false, err
	}
	return kw, true, nil
}

// hydrate loads every history of kw.
func hydrate(ctx context.Context, q store.Querier, kw *store.Keyword) (*store.Keyword, error) {
	var err error
	if kw.MetricsReports, err = q.MetricsReports(ctx, kw.ID); err != nil {
		return nil, err
	}
	if kw.SERPAnalyses, err = q.SERPAnalyses(ctx, kw.ID); err != nil {
		return nil, err
	}
	if kw.SuggestionSets, err = q.SuggestionSets(ctx, kw.ID); err != nil {
		return nil, err
	}
	return kw, nil
}

func metricsReport(keywordID int64, info source.KeywordInfo, now time.Time) *store.MetricsReport {
	return &store.MetricsReport{
		KeywordID:   keywordID,
		Competition: info.Competition,
		Volume:      info.Volume,
		CPC:         info.CPC,
		CPCDollars:  info.CPCDollars,
		SD:          info.SD,
		PD:          info.PD,
		CreatedAt:   orNow(info.UpdatedAt, now),
	}
}

func serpAnalysis(keywordID int64, serp source.KeywordSERPAnalysis, now time.Time) *store.SERPAnalysis {
	at := orNow(serp.UpdatedAt, now)
	a := &store.SERPAnalysis{
		KeywordID: keywordID,
		CreatedAt: at,
		Items:     make([]store.SERPAnalysisItem, 0, len(serp.Entries)),
	}
	for _, e := range serp.Entries {
		a.Items = append(a.Items, store.SERPAnalysisItem{
			URL:               e.URL,
			Title:             e.Title,
			Domain:            e.Domain,
			Position:          e.Position,
			Type:              e.Type,
			Clicks:            e.Clicks,
			DomainAuthority:   e.DomainAuthority,
			FacebookShares:    e.FacebookShares,
			PinterestShares:   e.PinterestShares,
			LinkedinShares:    e.LinkedinShares,
			GoogleShares:      e.GoogleShares,
			RedditShares:      e.RedditShares,
			Backlinks:         e.Backlinks,
			ReferringDomains:  e.ReferringDomains,
			NofollowBacklinks: e.NofollowBacklinks,
			DofollowBacklinks: e.DofollowBacklinks,
			CreatedAt:         at,
		})
	}
	return a
}

func keywordType(t string, fallback store.KeywordType) store.KeywordType {
	if t == "" {
		return fallback
	}
	return store.KeywordType(t)
}

// orNow substitutes now for a missing provider timestamp.
func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now.UTC()
	}
	return t.UTC()
}
