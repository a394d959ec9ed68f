package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catToysInfo = `{"keywordInfo":{"keyword":"best cat toys","competition":0.42,"volume":1900,
"cpc":0.9,"cpcDollars":0.9,"sd":31,"pd":88,"updated_at":"2024-08-17T18:18:00.123456"},"noData":false}`

const catToysMatches = `{"suggestions":[
{"keyword":"best cat toys for indoor cats","volume":480,"competition":0.3,"cpc":0.5,"cpcDollars":0.5,"sd":20,"pd":70,"updated_at":null},
{"keyword":"best cat toys 2024","competition":0.1,"cpc":0,"cpcDollars":0,"sd":0,"pd":0,"updated_at":null}]}`

const catToysSERP = `{"newData":true,"updated_at":"2024-08-17T18:20:00Z","serpEntries":[
{"url":"https://a.example/toys","title":"A","domain":"a.example","position":1,"type":"organic","clicks":120,"domainAuthority":55,"facebookShares":0},
{"url":"https://b.example/toys","title":"B","domain":"b.example","position":2,"type":"organic","clicks":40,"domainAuthority":0}]}`

const catToysDomains = `{"domain_data":{"https://a.example/toys":{"backlinks":1200,"refdomains":80,"nofollow_backlinks":200,"dofollow_backlinks":1000}}}`

type ubersuggestAPI struct {
	tokens     atomic.Int32
	failFirst  atomic.Bool
	infoCalls  atomic.Int32
	lastAuth   atomic.Value
	domainsReq atomic.Value
}

func (a *ubersuggestAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_token", func(w http.ResponseWriter, r *http.Request) {
		n := a.tokens.Add(1)
		fmt.Fprintf(w, `{"token":"tok-%d"}`, n)
	})
	mux.HandleFunc("/keyword_info", func(w http.ResponseWriter, r *http.Request) {
		a.lastAuth.Store(r.Header.Get("Authorization"))
		if a.infoCalls.Add(1) == 1 && a.failFirst.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("keyword") == "nothing here" {
			_, _ = w.Write([]byte(`{"noData":true}`))
			return
		}
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "2840", r.URL.Query().Get("locId"))
		_, _ = w.Write([]byte(catToysInfo))
	})
	mux.HandleFunc("/match_keywords", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte(catToysMatches))
	})
	mux.HandleFunc("/serp_analysis", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catToysSERP))
	})
	mux.HandleFunc("/domain_counts", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Domains []string `json:"domains"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.domainsReq.Store(body.Domains)
		_, _ = w.Write([]byte(catToysDomains))
	})
	return mux
}

func newTestUbersuggest(url string, now time.Time) *Ubersuggest {
	u := NewUbersuggest(UbersuggestOptions{BaseURL: url})
	u.retry = Retry{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	u.now = func() time.Time { return now }
	return u
}

func TestUbersuggestKeywordReport(t *testing.T) {
	api := &ubersuggestAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	now := time.Date(2024, 8, 18, 9, 0, 0, 0, time.UTC)
	report, err := newTestUbersuggest(srv.URL, now).KeywordReport(context.Background(), "best cat toys")
	require.NoError(t, err)

	assert.Equal(t, "best cat toys", report.Info.Keyword)
	assert.Equal(t, 1900, report.Info.Volume)
	assert.Equal(t, "PRIMARY", report.Info.Type)
	assert.Equal(t, 2840, report.Info.LocID)
	assert.Equal(t, time.Date(2024, 8, 17, 18, 18, 0, 123456000, time.UTC), report.Info.UpdatedAt)

	require.Len(t, report.Suggestions, 1)
	assert.Equal(t, "best cat toys for indoor cats", report.Suggestions[0].Keyword)
	assert.Equal(t, "MATCH", report.Suggestions[0].Type)
	assert.Equal(t, now, report.Suggestions[0].UpdatedAt)

	assert.True(t, report.SERPAnalysis.NewData)
	require.Len(t, report.SERPAnalysis.Entries, 2)
	first, second := report.SERPAnalysis.Entries[0], report.SERPAnalysis.Entries[1]
	assert.Equal(t, 55, *first.DomainAuthority)
	assert.Nil(t, first.FacebookShares)
	assert.Equal(t, 1200, *first.Backlinks)
	assert.Equal(t, 80, *first.ReferringDomains)
	assert.Equal(t, 1000, *first.DofollowBacklinks)
	assert.Nil(t, second.DomainAuthority)
	assert.Nil(t, second.Backlinks)
	assert.Equal(t, 2, *second.Position)

	assert.Equal(t, []string{"https://a.example/toys", "https://b.example/toys"}, api.domainsReq.Load())
	assert.Equal(t, int32(1), api.tokens.Load())
}

func TestUbersuggestRefreshesTokenOnRetry(t *testing.T) {
	api := &ubersuggestAPI{}
	api.failFirst.Store(true)
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	_, err := newTestUbersuggest(srv.URL, time.Now()).KeywordReport(context.Background(), "best cat toys")
	require.NoError(t, err)

	assert.Equal(t, int32(2), api.infoCalls.Load())
	assert.Equal(t, int32(2), api.tokens.Load())
	assert.Equal(t, "Bearer tok-2", api.lastAuth.Load())
}

func TestUbersuggestNoData(t *testing.T) {
	api := &ubersuggestAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	_, err := newTestUbersuggest(srv.URL, time.Now()).KeywordReport(context.Background(), "nothing here")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestUbersuggestTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestUbersuggest(srv.URL, time.Now()).KeywordReport(context.Background(), "best cat toys")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestReadReportFileZonelessTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best-cat-toys.json")
	raw := `{"info":{"keyword":"best cat toys","language":"en","loc_id":2840,"volume":1900,
"updated_at":"2024-08-17T18:18:00.123456"},
"serp_analysis":{"serp_entries":[],"new_data":false,"updated_at":"2024-08-17 18:20:00"},
"suggestions":[{"keyword":"cat toys","volume":50,"updated_at":null}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	report, err := ReadReportFile(path)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 17, 18, 18, 0, 123456000, time.UTC), report.Info.UpdatedAt)
	assert.Equal(t, time.Date(2024, 8, 17, 18, 20, 0, 0, time.UTC), report.SERPAnalysis.UpdatedAt)
	assert.True(t, report.Suggestions[0].UpdatedAt.IsZero())

	_, err = ReadReportFile(writeReport(t, `{"info":{"keyword":"x","updated_at":"yesterday"}}`))
	assert.ErrorIs(t, err, ErrFormat)
}

func writeReport(t *testing.T, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	return path
}
