package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// RSSFeed is a named RSS/Atom feed URL.
type RSSFeed struct {
	Name string
	URL  string
}

// RSSIdeas proposes niches from marketplace feeds such as best-seller lists.
// Entry categories are used when present, otherwise the entry title.
type RSSIdeas struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []RSSFeed
	filter *Filter
	retry  Retry
	log    *zap.Logger
}

// NewRSSIdeas creates a feed-backed idea source.
func NewRSSIdeas(feeds []RSSFeed, filter *Filter, log *zap.Logger) *RSSIdeas {
	return &RSSIdeas{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		filter: filter,
		retry:  DefaultRetry(),
		log:    log,
	}
}

func (r *RSSIdeas) Name() string { return "rss" }

// Ideas collects from every feed. A failing feed is logged and skipped.
func (r *RSSIdeas) Ideas(ctx context.Context) ([]string, error) {
	var raw []string
	for _, feed := range r.feeds {
		ideas, err := r.collectFeed(ctx, feed)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn("rss feed failed", zap.String("feed", feed.Name), zap.Error(err))
			continue
		}
		raw = append(raw, ideas...)
	}
	return NormalizeIdeas(raw, r.filter), nil
}

func (r *RSSIdeas) collectFeed(ctx context.Context, feed RSSFeed) ([]string, error) {
	body, err := fetch(ctx, r.client, r.retry, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}

	parsed, err := r.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w: %v", feed.Name, ErrFormat, err)
	}

	var ideas []string
	for _, entry := range parsed.Items {
		if len(entry.Categories) > 0 {
			ideas = append(ideas, entry.Categories...)
			continue
		}
		ideas = append(ideas, entry.Title)
	}
	return ideas, nil
}
