package keyword

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunotatsuya/affiliana-cli/internal/store"
	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

var (
	day1 = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 8, 2, 0, 0, 0, 0, time.UTC)
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newNiche(t *testing.T, s store.Store, name string) *store.Niche {
	t.Helper()
	n := &store.Niche{Name: name, CreatedAt: time.Now()}
	require.NoError(t, s.InsertNiche(context.Background(), n))
	return n
}

func intPtr(v int) *int { return &v }

func info(keyword string, volume int, at time.Time) source.KeywordInfo {
	return source.KeywordInfo{
		Keyword: keyword, Language: "en", LocID: 2840,
		Volume: volume, Competition: 0.5, CPC: 1, CPCDollars: 1, SD: 20, PD: 40,
		Type: "MATCH", UpdatedAt: at,
	}
}

func testReport(volume int, at time.Time, suggestions ...string) source.KeywordReport {
	r := source.KeywordReport{
		Info: info("best cat toys", volume, at),
		SERPAnalysis: source.KeywordSERPAnalysis{
			UpdatedAt: at,
			Entries: []source.KeywordSERPEntry{
				{Position: intPtr(1), DomainAuthority: intPtr(20)},
				{Position: intPtr(2)},
			},
		},
	}
	r.Info.Type = "PRIMARY"
	for _, s := range suggestions {
		r.Suggestions = append(r.Suggestions, info(s, 100, at))
	}
	return r
}

func TestUpsertReportIsIdempotentOnIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := newNiche(t, s, "cat toys")
	m := NewManager(s, zap.NewNop())

	first, err := m.UpsertReport(ctx, testReport(1000, day1, "cat toys indoor", "cat toys cheap"), n.ID)
	require.NoError(t, err)
	second, err := m.UpsertReport(ctx, testReport(1200, day2, "cat toys indoor", "cat toys cheap"), n.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, store.KeywordPrimary, second.Type)
	assert.Len(t, second.MetricsReports, 2)
	assert.Len(t, second.SERPAnalyses, 2)
	require.Len(t, second.SuggestionSets, 2)
	assert.Equal(t, second.SuggestionSets[0].SuggestedKeywordIDs, second.SuggestionSets[1].SuggestedKeywordIDs)

	latest, ok := second.MetricsReports.Latest()
	require.True(t, ok)
	assert.Equal(t, 1200, latest.Volume)

	kws, err := s.NicheKeywords(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, kws, 1)
	assert.Equal(t, first.ID, kws[0].ID)

	indoor, err := m.Find(ctx, "cat toys indoor", "en", 2840)
	require.NoError(t, err)
	assert.Equal(t, store.KeywordMatch, indoor.Type)
	reports, err := s.MetricsReports(ctx, indoor.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestUpsertReportCopiesSERPItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := newNiche(t, s, "cat toys")
	m := NewManager(s, zap.NewNop())

	kw, err := m.UpsertReport(ctx, testReport(1000, day1), n.ID)
	require.NoError(t, err)

	serp, ok := kw.SERPAnalyses.Latest()
	require.True(t, ok)
	assert.True(t, serp.CreatedAt.Equal(day1))
	require.Len(t, serp.Items, 2)
	assert.Equal(t, 1, *serp.Items[0].Position)
	assert.Equal(t, 20, *serp.Items[0].DomainAuthority)
	assert.Nil(t, serp.Items[1].DomainAuthority)
	assert.True(t, serp.Items[1].CreatedAt.Equal(day1))
}

func TestUpsertReportWithoutSuggestions(t *testing.T) {
	s := newTestStore(t)
	n := newNiche(t, s, "cat toys")
	m := NewManager(s, zap.NewNop())

	kw, err := m.UpsertReport(context.Background(), testReport(1000, day1), n.ID)
	require.NoError(t, err)
	require.Len(t, kw.SuggestionSets, 1)
	assert.Empty(t, kw.SuggestionSets[0].SuggestedKeywordIDs)
}

func TestUpsertReportRepeatedSuggestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := newNiche(t, s, "cat toys")
	m := NewManager(s, zap.NewNop())

	kw, err := m.UpsertReport(ctx, testReport(1000, day1, "cat toys indoor", "cat toys indoor"), n.ID)
	require.NoError(t, err)
	require.Len(t, kw.SuggestionSets, 1)
	assert.Len(t, kw.SuggestionSets[0].SuggestedKeywordIDs, 1)

	indoor, err := m.Find(ctx, "cat toys indoor", "en", 2840)
	require.NoError(t, err)
	reports, err := s.MetricsReports(ctx, indoor.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestUpsertReportLatestFollowsProviderTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := newNiche(t, s, "cat toys")
	m := NewManager(s, zap.NewNop())

	_, err := m.UpsertReport(ctx, testReport(1200, day2), n.ID)
	require.NoError(t, err)
	kw, err := m.UpsertReport(ctx, testReport(900, day1), n.ID)
	require.NoError(t, err)

	latest, ok := kw.MetricsReports.Latest()
	require.True(t, ok)
	assert.Equal(t, 1200, latest.Volume)
}

func TestUpsertReportUnknownNiche(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := NewManager(s, zap.NewNop())

	_, err := m.UpsertReport(ctx, testReport(1000, day1, "cat toys indoor"), 42)
	require.ErrorIs(t, err, store.ErrNotFound)
	var txErr *store.TxError
	assert.False(t, errors.As(err, &txErr))

	_, err = m.Find(ctx, "best cat toys", "en", 2840)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// failingStore fails every suggestion-set write inside transactions.
type failingStore struct {
	store.Store
}

func (f failingStore) InTx(ctx context.Context, op string, fn func(q store.Querier) error) error {
	return f.Store.InTx(ctx, op, func(q store.Querier) error {
		return fn(failingQuerier{q})
	})
}

type failingQuerier struct {
	store.Querier
}

func (failingQuerier) AddSuggestionSet(context.Context, *store.SuggestionSet) error {
	return errors.New("disk full")
}

func TestUpsertReportRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := newNiche(t, s, "cat toys")
	m := NewManager(failingStore{s}, zap.NewNop())

	_, err := m.UpsertReport(ctx, testReport(1000, day1, "cat toys indoor"), n.ID)
	var txErr *store.TxError
	require.ErrorAs(t, err, &txErr)
	assert.ErrorContains(t, err, "disk full")

	_, err = s.FindKeyword(ctx, store.KeywordKey{Keyword: "best cat toys", Language: "en", LocID: 2840})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindKeyword(ctx, store.KeywordKey{Keyword: "cat toys indoor", Language: "en", LocID: 2840})
	assert.ErrorIs(t, err, store.ErrNotFound)

	kws, err := s.NicheKeywords(ctx, n.ID)
	require.NoError(t, err)
	assert.Empty(t, kws)
}

func TestLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := newNiche(t, s, "cat toys")
	m := NewManager(s, zap.NewNop())

	kw, err := m.UpsertReport(ctx, testReport(1000, day1, "cat toys indoor"), n.ID)
	require.NoError(t, err)

	loaded, err := m.Load(ctx, kw.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.MetricsReports, 1)
	assert.Len(t, loaded.SuggestionSets, 1)

	_, err = m.Load(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
