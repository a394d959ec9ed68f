package store

import (
	"context"
	"fmt"
)

func (r *records) KeywordByID(ctx context.Context, id int64) (*Keyword, error) {
	var k Keyword
	if err := r.get(ctx, &k, "SELECT * FROM keywords WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get keyword %d: %w", id, err)
	}
	return &k, nil
}

// KeywordsByIDs returns the keywords in the order of ids. Unknown ids are skipped.
func (r *records) KeywordsByIDs(ctx context.Context, ids []int64) ([]Keyword, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var kws []Keyword
	if err := r.selectIn(ctx, &kws, "SELECT * FROM keywords WHERE id IN (?)", ids); err != nil {
		return nil, fmt.Errorf("get keywords: %w", err)
	}

	byID := make(map[int64]Keyword, len(kws))
	for _, k := range kws {
		byID[k.ID] = k
	}
	ordered := make([]Keyword, 0, len(kws))
	for _, id := range ids {
		if k, ok := byID[id]; ok {
			ordered = append(ordered, k)
		}
	}
	return ordered, nil
}

func (r *records) FindKeyword(ctx context.Context, key KeywordKey) (*Keyword, error) {
	var k Keyword
	err := r.get(ctx, &k,
		"SELECT * FROM keywords WHERE keyword = ? AND language = ? AND loc_id = ?",
		key.Keyword, key.Language, key.LocID)
	if err != nil {
		return nil, fmt.Errorf("find keyword %q/%s/%d: %w", key.Keyword, key.Language, key.LocID, err)
	}
	return &k, nil
}

func (r *records) InsertKeyword(ctx context.Context, k *Keyword) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO keywords (keyword, language, loc_id, type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, k.Keyword, k.Language, k.LocID, k.Type, k.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert keyword %q: %w", k.Keyword, classify(err))
	}
	k.ID, _ = res.LastInsertId()
	return nil
}

func (r *records) AddMetricsReport(ctx context.Context, m *MetricsReport) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO metrics_reports (keyword_id, competition, volume, cpc, cpc_dollars, sd, pd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.KeywordID, m.Competition, m.Volume, m.CPC, m.CPCDollars, m.SD, m.PD, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add metrics report for keyword %d: %w", m.KeywordID, err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

func (r *records) MetricsReports(ctx context.Context, keywordID int64) (History[MetricsReport], error) {
	var reports History[MetricsReport]
	err := r.selectAll(ctx, &reports,
		"SELECT * FROM metrics_reports WHERE keyword_id = ? ORDER BY created_at, rowid", keywordID)
	if err != nil {
		return nil, fmt.Errorf("list metrics reports %d: %w", keywordID, err)
	}
	return reports, nil
}

func (r *records) AddSERPAnalysis(ctx context.Context, a *SERPAnalysis) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO serp_analyses (keyword_id, created_at) VALUES (?, ?)",
		a.KeywordID, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add serp analysis for keyword %d: %w", a.KeywordID, err)
	}
	a.ID, _ = res.LastInsertId()

	for i := range a.Items {
		item := &a.Items[i]
		item.SERPAnalysisID = a.ID
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO serp_analysis_items (
				serp_analysis_id, url, title, domain, position, type, clicks, domain_authority,
				facebook_shares, pinterest_shares, linkedin_shares, google_shares, reddit_shares,
				backlinks, referring_domains, nofollow_backlinks, dofollow_backlinks, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.SERPAnalysisID, item.URL, item.Title, item.Domain, item.Position, item.Type,
			item.Clicks, item.DomainAuthority, item.FacebookShares, item.PinterestShares,
			item.LinkedinShares, item.GoogleShares, item.RedditShares, item.Backlinks,
			item.ReferringDomains, item.NofollowBacklinks, item.DofollowBacklinks,
			item.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("add serp analysis item %d for analysis %d: %w", i, a.ID, err)
		}
		item.ID, _ = res.LastInsertId()
	}
	return nil
}

func (r *records) SERPAnalyses(ctx context.Context, keywordID int64) (History[SERPAnalysis], error) {
	var analyses History[SERPAnalysis]
	err := r.selectAll(ctx, &analyses,
		"SELECT * FROM serp_analyses WHERE keyword_id = ? ORDER BY created_at, rowid", keywordID)
	if err != nil {
		return nil, fmt.Errorf("list serp analyses %d: %w", keywordID, err)
	}
	if len(analyses) == 0 {
		return analyses, nil
	}

	ids := make([]int64, len(analyses))
	index := make(map[int64]int, len(analyses))
	for i, a := range analyses {
		ids[i] = a.ID
		index[a.ID] = i
	}

	var items []SERPAnalysisItem
	err = r.selectIn(ctx, &items,
		"SELECT * FROM serp_analysis_items WHERE serp_analysis_id IN (?) ORDER BY rowid", ids)
	if err != nil {
		return nil, fmt.Errorf("list serp analysis items %d: %w", keywordID, err)
	}
	for _, item := range items {
		i := index[item.SERPAnalysisID]
		analyses[i].Items = append(analyses[i].Items, item)
	}
	return analyses, nil
}

func (r *records) AddSuggestionSet(ctx context.Context, s *SuggestionSet) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO suggestion_sets (keyword_id, created_at) VALUES (?, ?)",
		s.KeywordID, s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add suggestion set for keyword %d: %w", s.KeywordID, err)
	}
	s.ID, _ = res.LastInsertId()

	for _, kwID := range s.SuggestedKeywordIDs {
		_, err := r.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO suggestion_sets_keywords (suggestion_set_id, keyword_id) VALUES (?, ?)",
			s.ID, kwID)
		if err != nil {
			return fmt.Errorf("link suggestion set %d keyword %d: %w", s.ID, kwID, err)
		}
	}
	return nil
}

func (r *records) SuggestionSets(ctx context.Context, keywordID int64) (History[SuggestionSet], error) {
	var sets History[SuggestionSet]
	err := r.selectAll(ctx, &sets,
		"SELECT * FROM suggestion_sets WHERE keyword_id = ? ORDER BY created_at, rowid", keywordID)
	if err != nil {
		return nil, fmt.Errorf("list suggestion sets %d: %w", keywordID, err)
	}
	if len(sets) == 0 {
		return sets, nil
	}

	ids := make([]int64, len(sets))
	index := make(map[int64]int, len(sets))
	for i, s := range sets {
		ids[i] = s.ID
		index[s.ID] = i
	}

	var links []struct {
		SetID     int64 `db:"suggestion_set_id"`
		KeywordID int64 `db:"keyword_id"`
	}
	err = r.selectIn(ctx, &links,
		"SELECT suggestion_set_id, keyword_id FROM suggestion_sets_keywords WHERE suggestion_set_id IN (?) ORDER BY rowid", ids)
	if err != nil {
		return nil, fmt.Errorf("list suggested keywords %d: %w", keywordID, err)
	}
	for _, l := range links {
		i := index[l.SetID]
		sets[i].SuggestedKeywordIDs = append(sets[i].SuggestedKeywordIDs, l.KeywordID)
	}
	return sets, nil
}
