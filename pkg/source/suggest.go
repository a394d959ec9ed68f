package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const suggestBaseURL = "https://suggestqueries.google.com"

// Suggest expands seed queries through the search-engine suggestion endpoint.
type Suggest struct {
	client   *http.Client
	baseURL  string
	seeds    []string
	country  string
	language string
	filter   *Filter
	retry    Retry
	log      *zap.Logger
}

// SuggestOptions configures a Suggest source.
type SuggestOptions struct {
	BaseURL  string
	Seeds    []string
	Country  string
	Language string
	Filter   *Filter
}

// NewSuggest creates a suggestion-backed idea source.
func NewSuggest(opts SuggestOptions, log *zap.Logger) *Suggest {
	if opts.BaseURL == "" {
		opts.BaseURL = suggestBaseURL
	}
	if opts.Country == "" {
		opts.Country = "us"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	return &Suggest{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		seeds:    opts.Seeds,
		country:  opts.Country,
		language: opts.Language,
		filter:   opts.Filter,
		retry:    DefaultRetry(),
		log:      log,
	}
}

func (s *Suggest) Name() string { return "suggest" }

// Suggestions returns the completions offered for query.
func (s *Suggest) Suggestions(ctx context.Context, query string) ([]string, error) {
	q := url.Values{}
	q.Set("client", "chrome")
	q.Set("q", query)
	q.Set("hl", s.language)
	q.Set("gl", s.country)

	body, err := fetch(ctx, s.client, s.retry, s.baseURL+"/complete/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("get suggestions %q: %w", query, err)
	}

	// Response shape: [query, [suggestion, ...], ...]
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil || len(parts) < 2 {
		return nil, fmt.Errorf("decode suggestions %q: %w", query, ErrFormat)
	}
	var suggestions []string
	if err := json.Unmarshal(parts[1], &suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions %q: %w: %v", query, ErrFormat, err)
	}
	return suggestions, nil
}

// Ideas expands every seed. A failing seed is logged and skipped.
func (s *Suggest) Ideas(ctx context.Context) ([]string, error) {
	var raw []string
	for _, seed := range s.seeds {
		suggestions, err := s.Suggestions(ctx, seed)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("suggest seed failed", zap.String("seed", seed), zap.Error(err))
			continue
		}
		raw = append(raw, suggestions...)
	}
	return NormalizeIdeas(raw, s.filter), nil
}
