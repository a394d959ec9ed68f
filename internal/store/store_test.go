package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intPtr(v int) *int { return &v }

func TestHistoryLatest(t *testing.T) {
	var empty History[MetricsReport]
	_, ok := empty.Latest()
	assert.False(t, ok)

	h := History[MetricsReport]{{Volume: 1}, {Volume: 2}}
	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 2, latest.Volume)
}

func TestInsertNicheConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertNiche(ctx, &Niche{Name: "cat toys", CreatedAt: time.Now()}))
	err := s.InsertNiche(ctx, &Niche{Name: "cat toys", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestNicheByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.NicheByID(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, "test", func(q Querier) error {
		if err := q.InsertNiche(ctx, &Niche{Name: "chef knives", CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})

	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "test", txErr.Op)
	assert.ErrorIs(t, err, boom)

	_, err = s.NicheByName(ctx, "chef knives")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNicheNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rate := 4.5

	for _, n := range []Niche{
		{Name: "Test Niche 1"},
		{Name: "Test Niche 2", AmazonCommissionRate: &rate},
		{Name: "Test Niche 3"},
	} {
		n.CreatedAt = time.Now()
		require.NoError(t, s.InsertNiche(ctx, &n))
	}

	all, err := s.ListNicheNames(ctx, NicheNameOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Test Niche 1", "Test Niche 2", "Test Niche 3"}, all)

	missing, err := s.ListNicheNames(ctx, NicheNameOpts{WithoutCommissionRate: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Test Niche 1", "Test Niche 3"}, missing)
}

func TestMetricsReportsOrderedByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kw := &Keyword{Keyword: "best cat toys", Language: "en", LocID: 2840, Type: KeywordPrimary, CreatedAt: time.Now()}
	require.NoError(t, s.InsertKeyword(ctx, kw))

	newer := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddMetricsReport(ctx, &MetricsReport{KeywordID: kw.ID, Volume: 900, CreatedAt: newer}))
	require.NoError(t, s.AddMetricsReport(ctx, &MetricsReport{KeywordID: kw.ID, Volume: 100, CreatedAt: older}))

	reports, err := s.MetricsReports(ctx, kw.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	latest, ok := reports.Latest()
	require.True(t, ok)
	assert.Equal(t, 900, latest.Volume)
}

func TestKeywordIdentityIsUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kw := Keyword{Keyword: "cat toys", Language: "en", LocID: 2840, CreatedAt: time.Now()}
	require.NoError(t, s.InsertKeyword(ctx, &kw))
	dup := kw
	assert.ErrorIs(t, s.InsertKeyword(ctx, &dup), ErrConflict)

	found, err := s.FindKeyword(ctx, kw.Key())
	require.NoError(t, err)
	assert.Equal(t, kw.ID, found.ID)
}

func TestSERPAnalysisItemsKeepInputOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kw := &Keyword{Keyword: "cat toys", Language: "en", LocID: 2840, CreatedAt: time.Now()}
	require.NoError(t, s.InsertKeyword(ctx, kw))

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	analysis := &SERPAnalysis{
		KeywordID: kw.ID,
		CreatedAt: at,
		Items: []SERPAnalysisItem{
			{Position: intPtr(2), DomainAuthority: intPtr(51), CreatedAt: at},
			{Position: intPtr(1), DomainAuthority: nil, Backlinks: intPtr(12), CreatedAt: at},
		},
	}
	require.NoError(t, s.AddSERPAnalysis(ctx, analysis))

	analyses, err := s.SERPAnalyses(ctx, kw.ID)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	items := analyses[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, 2, *items[0].Position)
	assert.Equal(t, 51, *items[0].DomainAuthority)
	assert.Nil(t, items[1].DomainAuthority)
	assert.Equal(t, 12, *items[1].Backlinks)
}

func TestSuggestionSetsReferenceKeywords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	primary := &Keyword{Keyword: "cat toys", Language: "en", LocID: 2840, CreatedAt: time.Now()}
	shared := &Keyword{Keyword: "cat toys interactive", Language: "en", LocID: 2840, CreatedAt: time.Now()}
	require.NoError(t, s.InsertKeyword(ctx, primary))
	require.NoError(t, s.InsertKeyword(ctx, shared))

	for i := 0; i < 2; i++ {
		set := &SuggestionSet{KeywordID: primary.ID, CreatedAt: time.Now(), SuggestedKeywordIDs: []int64{shared.ID}}
		require.NoError(t, s.AddSuggestionSet(ctx, set))
	}
	empty := &SuggestionSet{KeywordID: primary.ID, CreatedAt: time.Now()}
	require.NoError(t, s.AddSuggestionSet(ctx, empty))

	sets, err := s.SuggestionSets(ctx, primary.ID)
	require.NoError(t, err)
	require.Len(t, sets, 3)
	assert.Equal(t, []int64{shared.ID}, sets[0].SuggestedKeywordIDs)
	assert.Equal(t, []int64{shared.ID}, sets[1].SuggestedKeywordIDs)
	assert.Empty(t, sets[2].SuggestedKeywordIDs)

	kws, err := s.KeywordsByIDs(ctx, []int64{shared.ID, 424242, primary.ID})
	require.NoError(t, err)
	require.Len(t, kws, 2)
	assert.Equal(t, shared.ID, kws[0].ID)
	assert.Equal(t, primary.ID, kws[1].ID)
}

func TestUpsertProductOverwritesAndLinksOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := &Niche{Name: "cat toys", CreatedAt: time.Now()}
	require.NoError(t, s.InsertNiche(ctx, n))

	rating := 4.5
	p := &AmazonProduct{ASIN: "B07H8L85PS", Title: "Old", PriceUSD: 10, Rating: &rating, SeenAt: time.Now()}
	require.NoError(t, s.UpsertProduct(ctx, p))
	require.NoError(t, s.LinkNicheProduct(ctx, n.ID, p.ASIN))

	p.Title = "New"
	p.PriceUSD = 12.5
	p.Reviews = intPtr(300)
	require.NoError(t, s.UpsertProduct(ctx, p))
	require.NoError(t, s.LinkNicheProduct(ctx, n.ID, p.ASIN))

	products, err := s.NicheProducts(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "New", products[0].Title)
	assert.Equal(t, 12.5, products[0].PriceUSD)
	assert.Equal(t, 300, *products[0].Reviews)
	assert.False(t, products[0].IsSponsored)
}
