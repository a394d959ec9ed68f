package candidate

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/keyword"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

var t0 = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.SQLiteStore
	keywords *keyword.Manager
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{
		store:    s,
		keywords: keyword.NewManager(s, zap.NewNop()),
		engine:   NewEngine(s, zap.NewNop()),
	}
}

func (f *fixture) niche(t *testing.T, name string) store.Niche {
	t.Helper()
	n := store.Niche{Name: name, CreatedAt: time.Now()}
	require.NoError(t, f.store.InsertNiche(context.Background(), &n))
	return n
}

func intPtr(v int) *int { return &v }

// serp builds entries at positions 1..len(das) with the given authorities.
func serp(das ...int) []source.KeywordSERPEntry {
	entries := make([]source.KeywordSERPEntry, len(das))
	for i, da := range das {
		entries[i] = source.KeywordSERPEntry{
			Position:        intPtr(i + 1),
			DomainAuthority: intPtr(da),
			Backlinks:       intPtr(100 * (i + 1)),
		}
	}
	return entries
}

func report(kw string, volume int, at time.Time, entries []source.KeywordSERPEntry, suggestions ...string) source.KeywordReport {
	r := source.KeywordReport{
		Info: source.KeywordInfo{Keyword: kw, Language: "en", LocID: 2840, Volume: volume, Type: "PRIMARY", UpdatedAt: at},
		SERPAnalysis: source.KeywordSERPAnalysis{
			UpdatedAt: at,
			Entries:   entries,
		},
	}
	for _, s := range suggestions {
		r.Suggestions = append(r.Suggestions, source.KeywordInfo{
			Keyword: s, Language: "en", LocID: 2840, Volume: 50, Type: "MATCH", UpdatedAt: at,
		})
	}
	return r
}

func (f *fixture) upsert(t *testing.T, r source.KeywordReport, nicheID int64) {
	t.Helper()
	_, err := f.keywords.UpsertReport(context.Background(), r, nicheID)
	require.NoError(t, err)
}

func names(niches []store.Niche) []string {
	out := make([]string, len(niches))
	for i, n := range niches {
		out[i] = n.Name
	}
	return out
}

func TestCandidatesExistentialFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.niche(t, "A")
	f.upsert(t, report("best a", 1000, t0, []source.KeywordSERPEntry{
		{Position: intPtr(1), DomainAuthority: intPtr(80)},
		{Position: intPtr(3), DomainAuthority: intPtr(20)},
	}), a.ID)

	got, err := f.engine.Candidates(ctx, 700, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(got))

	got, err = f.engine.Candidates(ctx, 1500, 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCandidatesIgnoresResultsBeyondFirstPage(t *testing.T) {
	f := newFixture(t)
	n := f.niche(t, "A")
	f.upsert(t, report("best a", 1000, t0, []source.KeywordSERPEntry{
		{Position: intPtr(11), DomainAuthority: intPtr(5)},
		{Position: nil, DomainAuthority: intPtr(5)},
		{Position: intPtr(2), DomainAuthority: nil},
	}), n.ID)

	got, err := f.engine.Candidates(context.Background(), 700, 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCandidatesReachSuggestedKeywords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.niche(t, "A")
	other := f.niche(t, "other")
	f.upsert(t, report("best a", 100, t0, serp(90, 90, 90), "a for cats"), a.ID)
	f.upsert(t, report("a for cats", 2000, t0, serp(10, 90, 90)), other.ID)

	ok, err := f.engine.IsCandidate(ctx, a.ID, 700, 30)
	require.NoError(t, err)
	assert.True(t, ok)

	reachable, err := Reachable(ctx, f.store, a.ID)
	require.NoError(t, err)
	require.Len(t, reachable, 2)
	assert.Equal(t, "best a", reachable[0].Keyword)
	assert.Equal(t, "a for cats", reachable[1].Keyword)
}

func TestCandidatesUseLatestSnapshot(t *testing.T) {
	f := newFixture(t)
	n := f.niche(t, "A")
	f.upsert(t, report("best a", 1000, t0, serp(20, 20, 20)), n.ID)
	f.upsert(t, report("best a", 1000, t0.Add(24*time.Hour), serp(60, 60, 60)), n.ID)

	got, err := f.engine.Candidates(context.Background(), 700, 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCandidatesToleratesMissingHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.niche(t, "A")

	kw := &store.Keyword{Keyword: "best a", Language: "en", LocID: 2840, Type: store.KeywordPrimary, CreatedAt: time.Now()}
	require.NoError(t, f.store.InsertKeyword(ctx, kw))
	require.NoError(t, f.store.LinkNicheKeyword(ctx, n.ID, kw.ID))
	require.NoError(t, f.store.AddMetricsReport(ctx, &store.MetricsReport{KeywordID: kw.ID, Volume: 5000, CreatedAt: t0}))

	got, err := f.engine.Candidates(ctx, 700, 30)
	require.NoError(t, err)
	assert.Empty(t, got)

	cs, err := f.engine.Statistics(ctx, n)
	require.NoError(t, err)
	assert.Empty(t, cs.Keywords)
}

func TestStatisticsProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.niche(t, "A")

	rate := func(v float64) *float64 { return &v }
	for _, p := range []store.AmazonProduct{
		{ASIN: "1", Title: "a", PriceUSD: 10, Rating: rate(4.0)},
		{ASIN: "2", Title: "b", PriceUSD: 30, Rating: rate(4.8)},
		{ASIN: "3", Title: "sponsored", PriceUSD: 999, Rating: rate(5), IsSponsored: true},
		{ASIN: "4", Title: "low", PriceUSD: 999, Rating: rate(3.9)},
		{ASIN: "5", Title: "unrated", PriceUSD: 999},
	} {
		p.SeenAt = time.Now()
		require.NoError(t, f.store.UpsertProduct(ctx, &p))
		require.NoError(t, f.store.LinkNicheProduct(ctx, n.ID, p.ASIN))
	}

	cs, err := f.engine.Statistics(ctx, n)
	require.NoError(t, err)

	price := cs.AmazonProductsPrice
	require.NotNil(t, price.Max)
	assert.Equal(t, 30.0, *price.Max)
	assert.Equal(t, 10.0, *price.Min)
	assert.Equal(t, 20.0, *price.Avg)
	assert.Equal(t, 0.0, *price.Stdv)

	assert.Nil(t, cs.AmazonProductsReviews.Max)
	assert.Nil(t, cs.AmazonProductsReviews.Min)
	assert.Nil(t, cs.AmazonProductsReviews.Avg)
	assert.Nil(t, cs.AmazonProductsReviews.Stdv)
	assert.Nil(t, cs.AmazonProductsBought.Avg)
}

func TestStatisticsInsufficientTopResults(t *testing.T) {
	f := newFixture(t)
	n := f.niche(t, "A")
	f.upsert(t, report("best a", 1000, t0, serp(10, 20)), n.ID)

	_, err := f.engine.Statistics(context.Background(), n)
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "best a", insufficient.Keyword)
	assert.Equal(t, 2, insufficient.Have)
}

func TestStatisticsEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.niche(t, "cat toys")
	other := f.niche(t, "other")
	suggestions := []string{"cat toys indoor", "cat toys cheap", "cat toys interactive"}
	f.upsert(t, report("best cat toys", 1000, t0, []source.KeywordSERPEntry{
		{Position: intPtr(3), DomainAuthority: intPtr(40), Backlinks: intPtr(300)},
		{Position: intPtr(1), DomainAuthority: intPtr(20), Backlinks: intPtr(100)},
		{Position: intPtr(2), DomainAuthority: nil, Backlinks: intPtr(200)},
		{Position: intPtr(12), DomainAuthority: intPtr(1)},
	}, suggestions...), n.ID)
	for _, s := range suggestions {
		f.upsert(t, report(s, 800, t0, serp(25, 35, 45)), other.ID)
	}

	cs, err := f.engine.Statistics(ctx, n)
	require.NoError(t, err)
	require.Len(t, cs.Keywords, 4)
	assert.Equal(t, "cat toys", cs.Niche)

	primary := cs.Keywords[0]
	assert.Equal(t, "best cat toys", primary.Keyword)
	assert.Equal(t, 1000, primary.Volume)
	assert.Equal(t, 1, primary.DomainsWithDAUnder30)
	assert.Equal(t, 20, *primary.DATop1)
	assert.Nil(t, primary.DATop2)
	assert.Equal(t, 40, *primary.DATop3)
	assert.Equal(t, 40.0, *primary.DA.Max)
	assert.Equal(t, 20.0, *primary.DA.Min)
	assert.Equal(t, 0.0, *primary.DA.Stdv)
	assert.InDelta(t, 100.0, *primary.Backlinks.Stdv, 1e-9)
	assert.Nil(t, primary.ReferringDomains.Max)

	for i, s := range suggestions {
		assert.Equal(t, s, cs.Keywords[i+1].Keyword)
	}
}

func TestStatisticsForAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good := f.niche(t, "good")
	bad := f.niche(t, "bad")
	f.upsert(t, report("best good", 1000, t0, serp(10, 20, 30)), good.ID)
	f.upsert(t, report("best bad", 1000, t0, serp(10)), bad.ID)

	results, err := f.engine.StatisticsForAll(ctx, []store.Niche{good, bad}, 4)
	require.Error(t, err)
	var insufficient *InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))

	require.Len(t, results, 2)
	require.NotNil(t, results[0])
	assert.Equal(t, "good", results[0].Niche)
	assert.Nil(t, results[1])
}

func TestWriteCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rate := 3.0
	n := f.niche(t, "cat toys")
	require.NoError(t, f.store.SetCommissionRate(ctx, n.ID, rate))
	n.AmazonCommissionRate = &rate
	f.upsert(t, report("best cat toys", 1000, t0, serp(10, 20, 30)), n.ID)

	cs, err := f.engine.Statistics(ctx, n)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*CandidateStatistics{cs, nil}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Columns, records[0])

	row := make(map[string]string, len(Columns))
	for i, col := range records[0] {
		row[col] = records[1][i]
	}
	assert.Equal(t, "cat toys", row["niche"])
	assert.Equal(t, "3", row["amazon_commission_rate"])
	assert.Equal(t, "", row["amazon_products_price_max"])
	assert.Equal(t, "best cat toys", row["keyword"])
	assert.Equal(t, "1000", row["volume"])
	assert.Equal(t, "3", row["domains_with_DA_under_30"])
	assert.Equal(t, "10", row["da_top_1"])
	assert.Equal(t, "20", row["da_avg"])
	assert.Equal(t, "10", row["da_stdv"])
	assert.Equal(t, "", row["dofollow_backlinks_max"])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Columns, records[0])
}
