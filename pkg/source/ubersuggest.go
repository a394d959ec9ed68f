package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	ubersuggestBaseURL = "https://app.neilpatel.com/api"
	// serpDomainLookups is how many SERP URLs get backlink metrics.
	serpDomainLookups = 20
	matchLimit        = 10
)

// ErrAuth is returned when the keyword-metrics API refuses to issue a token.
var ErrAuth = errors.New("authorization failed")

// UbersuggestOptions configures the keyword-metrics client.
type UbersuggestOptions struct {
	BaseURL  string
	Language string
	LocID    int
}

// Ubersuggest builds keyword reports from the Ubersuggest API. A fresh token
// is requested before every retry.
type Ubersuggest struct {
	client   *http.Client
	baseURL  string
	language string
	locID    int
	retry    Retry
	now      func() time.Time

	mu    sync.Mutex
	token string
}

// NewUbersuggest creates a keyword-metrics client.
func NewUbersuggest(opts UbersuggestOptions) *Ubersuggest {
	if opts.BaseURL == "" {
		opts.BaseURL = ubersuggestBaseURL
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.LocID == 0 {
		opts.LocID = 2840
	}
	retry := DefaultRetry()
	retry.MaxRetries = 2
	return &Ubersuggest{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		language: opts.Language,
		locID:    opts.LocID,
		retry:    retry,
		now:      time.Now,
	}
}

// KeywordReport fetches the metrics, matching keywords, SERP and per-URL
// backlink counts of keyword and merges them into one report.
func (u *Ubersuggest) KeywordReport(ctx context.Context, keyword string) (*KeywordReport, error) {
	q := url.Values{"keyword": {keyword}, "language": {u.language}, "locId": {strconv.Itoa(u.locID)}}

	var info ubersuggestInfo
	if err := u.call(ctx, http.MethodGet, "/keyword_info?"+q.Encode(), nil, &info); err != nil {
		return nil, err
	}
	if info.NoData || info.KeywordInfo == nil {
		return nil, fmt.Errorf("keyword %q: %w", keyword, ErrNoData)
	}

	var matches ubersuggestMatches
	matchReq := map[string]any{
		"language":    u.language,
		"locId":       u.locID,
		"filters":     map[string]any{},
		"sortby":      "-searchVolume",
		"keywords":    []string{keyword},
		"previousKey": 0,
		"limit":       matchLimit,
	}
	if err := u.call(ctx, http.MethodPost, "/match_keywords", matchReq, &matches); err != nil {
		return nil, err
	}

	var serp ubersuggestSERP
	if err := u.call(ctx, http.MethodGet, "/serp_analysis?"+q.Encode(), nil, &serp); err != nil {
		return nil, err
	}

	var urls []string
	for _, e := range serp.Entries {
		if len(urls) == serpDomainLookups {
			break
		}
		if e.URL != nil && *e.URL != "" {
			urls = append(urls, *e.URL)
		}
	}
	counts := ubersuggestDomainCounts{Domains: map[string]ubersuggestDomain{}}
	if len(urls) > 0 {
		if err := u.call(ctx, http.MethodPost, "/domain_counts", map[string]any{"domains": urls}, &counts); err != nil {
			return nil, err
		}
	}

	report := buildUbersuggestReport(info, matches, serp, counts, u.language, u.locID, u.now())
	return &report, nil
}

// call performs one API request, refreshing the token before the first
// attempt when none is held and before every retry.
func (u *Ubersuggest) call(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}

	attempt := 0
	op := func() error {
		token := u.currentToken()
		if attempt > 0 || token == "" {
			var err error
			if token, err = u.refreshToken(ctx); err != nil {
				attempt++
				return err
			}
		}
		attempt++

		header := http.Header{}
		header.Set("Accept", "application/json, text/plain, */*")
		header.Set("Authorization", "Bearer "+token)
		if body != nil {
			header.Set("Content-Type", "application/json")
		}
		data, err := send(ctx, u.client, method, u.baseURL+path, body, header)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w: %v", path, ErrFormat, err))
		}
		return nil
	}
	return backoff.Retry(op, u.retry.BackOff(ctx))
}

func (u *Ubersuggest) currentToken() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.token
}

func (u *Ubersuggest) refreshToken(ctx context.Context) (string, error) {
	data, err := send(ctx, u.client, http.MethodGet, u.baseURL+"/get_token?debug=app_norecaptcha", nil, nil)
	if err != nil {
		return "", fmt.Errorf("get token: %w: %v", ErrAuth, err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.Token == "" {
		return "", fmt.Errorf("get token: %w: no token in response", ErrAuth)
	}

	u.mu.Lock()
	u.token = resp.Token
	u.mu.Unlock()
	return resp.Token, nil
}

type ubersuggestKeyword struct {
	Keyword     string    `json:"keyword"`
	Volume      *float64  `json:"volume"`
	Competition float64   `json:"competition"`
	CPC         float64   `json:"cpc"`
	CPCDollars  float64   `json:"cpcDollars"`
	SD          float64   `json:"sd"`
	PD          float64   `json:"pd"`
	UpdatedAt   timestamp `json:"updated_at"`
}

type ubersuggestInfo struct {
	KeywordInfo *ubersuggestKeyword `json:"keywordInfo"`
	NoData      bool                `json:"noData"`
}

type ubersuggestMatches struct {
	Suggestions []ubersuggestKeyword `json:"suggestions"`
}

type ubersuggestEntry struct {
	URL             *string  `json:"url"`
	Title           *string  `json:"title"`
	Domain          *string  `json:"domain"`
	Position        *float64 `json:"position"`
	Type            *string  `json:"type"`
	Clicks          *float64 `json:"clicks"`
	DomainAuthority *float64 `json:"domainAuthority"`
	FacebookShares  *float64 `json:"facebookShares"`
	PinterestShares *float64 `json:"pinterestShares"`
	LinkedinShares  *float64 `json:"linkedinShares"`
	GoogleShares    *float64 `json:"googleShares"`
	RedditShares    *float64 `json:"redditShares"`
}

type ubersuggestSERP struct {
	Entries   []ubersuggestEntry `json:"serpEntries"`
	NewData   bool               `json:"newData"`
	UpdatedAt timestamp          `json:"updated_at"`
}

type ubersuggestDomain struct {
	Backlinks         *float64 `json:"backlinks"`
	RefDomains        *float64 `json:"refdomains"`
	NofollowBacklinks *float64 `json:"nofollow_backlinks"`
	DofollowBacklinks *float64 `json:"dofollow_backlinks"`
}

type ubersuggestDomainCounts struct {
	Domains map[string]ubersuggestDomain `json:"domain_data"`
}

// buildUbersuggestReport merges the API responses. Suggestions without a
// volume are dropped. Zero authority and share counts mean unknown. Missing
// keyword timestamps default to now.
func buildUbersuggestReport(info ubersuggestInfo, matches ubersuggestMatches, serp ubersuggestSERP,
	counts ubersuggestDomainCounts, language string, locID int, now time.Time) KeywordReport {
	report := KeywordReport{
		Info: keywordInfo(*info.KeywordInfo, language, locID, "PRIMARY", now),
		SERPAnalysis: KeywordSERPAnalysis{
			NewData:   serp.NewData,
			UpdatedAt: time.Time(serp.UpdatedAt),
		},
	}

	for _, s := range matches.Suggestions {
		if s.Volume == nil {
			continue
		}
		report.Suggestions = append(report.Suggestions, keywordInfo(s, language, locID, "MATCH", now))
	}

	for _, e := range serp.Entries {
		entry := KeywordSERPEntry{
			URL:             e.URL,
			Title:           e.Title,
			Domain:          e.Domain,
			Position:        toInt(e.Position),
			Type:            e.Type,
			Clicks:          toInt(e.Clicks),
			DomainAuthority: nonZero(e.DomainAuthority),
			FacebookShares:  nonZero(e.FacebookShares),
			PinterestShares: nonZero(e.PinterestShares),
			LinkedinShares:  nonZero(e.LinkedinShares),
			GoogleShares:    nonZero(e.GoogleShares),
			RedditShares:    nonZero(e.RedditShares),
		}
		if e.URL != nil {
			if d, ok := counts.Domains[*e.URL]; ok {
				entry.Backlinks = toInt(d.Backlinks)
				entry.ReferringDomains = toInt(d.RefDomains)
				entry.NofollowBacklinks = toInt(d.NofollowBacklinks)
				entry.DofollowBacklinks = toInt(d.DofollowBacklinks)
			}
		}
		report.SERPAnalysis.Entries = append(report.SERPAnalysis.Entries, entry)
	}
	return report
}

func keywordInfo(k ubersuggestKeyword, language string, locID int, typ string, now time.Time) KeywordInfo {
	info := KeywordInfo{
		Keyword:     k.Keyword,
		Language:    language,
		LocID:       locID,
		Competition: k.Competition,
		CPC:         k.CPC,
		CPCDollars:  k.CPCDollars,
		SD:          int(math.Round(k.SD)),
		PD:          int(math.Round(k.PD)),
		Type:        typ,
		UpdatedAt:   time.Time(k.UpdatedAt),
	}
	if k.Volume != nil {
		info.Volume = int(math.Round(*k.Volume))
	}
	if info.UpdatedAt.IsZero() {
		info.UpdatedAt = now
	}
	return info
}

func toInt(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func nonZero(v *float64) *int {
	if v == nil || *v == 0 {
		return nil
	}
	return toInt(v)
}
