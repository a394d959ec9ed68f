package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoData is returned when a collaborator has nothing for the requested input.
	ErrNoData = errors.New("no data from source")
	// ErrFormat is returned when a collaborator response cannot be parsed.
	ErrFormat = errors.New("unexpected data format")
)

// KeywordInfo is the metrics snapshot of a single keyword as reported by the
// keyword-metrics provider.
type KeywordInfo struct {
	Keyword     string    `json:"keyword"`
	Language    string    `json:"language"`
	LocID       int       `json:"loc_id"`
	Competition float64   `json:"competition"`
	Volume      int       `json:"volume"`
	CPC         float64   `json:"cpc"`
	CPCDollars  float64   `json:"cpc_dollars"`
	SD          int       `json:"sd"`
	PD          int       `json:"pd"`
	Type        string    `json:"type"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UnmarshalJSON accepts updated_at with or without a zone offset.
func (k *KeywordInfo) UnmarshalJSON(data []byte) error {
	type plain KeywordInfo
	aux := struct {
		*plain
		UpdatedAt timestamp `json:"updated_at"`
	}{plain: (*plain)(k)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	k.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}

// KeywordSERPEntry is one search result. Every field may be missing.
type KeywordSERPEntry struct {
	URL               *string `json:"url,omitempty"`
	Title             *string `json:"title,omitempty"`
	Domain            *string `json:"domain,omitempty"`
	Position          *int    `json:"position,omitempty"`
	Type              *string `json:"type,omitempty"`
	Clicks            *int    `json:"clicks,omitempty"`
	DomainAuthority   *int    `json:"domain_authority,omitempty"`
	FacebookShares    *int    `json:"facebook_shares,omitempty"`
	PinterestShares   *int    `json:"pinterest_shares,omitempty"`
	LinkedinShares    *int    `json:"linkedin_shares,omitempty"`
	GoogleShares      *int    `json:"google_shares,omitempty"`
	RedditShares      *int    `json:"reddit_shares,omitempty"`
	Backlinks         *int    `json:"backlinks,omitempty"`
	ReferringDomains  *int    `json:"referring_domains,omitempty"`
	NofollowBacklinks *int    `json:"nofollow_backlinks,omitempty"`
	DofollowBacklinks *int    `json:"dofollow_backlinks,omitempty"`
}

// KeywordSERPAnalysis is the results page of a keyword, entries in rank order.
type KeywordSERPAnalysis struct {
	Entries   []KeywordSERPEntry `json:"serp_entries"`
	NewData   bool               `json:"new_data"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// UnmarshalJSON accepts updated_at with or without a zone offset.
func (a *KeywordSERPAnalysis) UnmarshalJSON(data []byte) error {
	type plain KeywordSERPAnalysis
	aux := struct {
		*plain
		UpdatedAt timestamp `json:"updated_at"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}

// KeywordReport is everything the provider knows about a primary keyword.
type KeywordReport struct {
	Info         KeywordInfo         `json:"info"`
	SERPAnalysis KeywordSERPAnalysis `json:"serp_analysis"`
	Suggestions  []KeywordInfo       `json:"suggestions"`
}

// ProductSnapshot is a marketplace listing as observed on a search page.
type ProductSnapshot struct {
	ASIN            string    `json:"asin"`
	Title           string    `json:"title"`
	IsSponsored     bool      `json:"is_sponsored"`
	PriceUSD        float64   `json:"price_usd"`
	Rating          *float64  `json:"rating,omitempty"`
	Reviews         *int      `json:"reviews,omitempty"`
	BoughtLastMonth *int      `json:"bought_last_month,omitempty"`
	SeenAt          time.Time `json:"seen_at"`
}

// NicheCommission is a classified affiliate commission rate for a niche.
type NicheCommission struct {
	Niche          string  `json:"niche"`
	Category       string  `json:"category"`
	CommissionRate float64 `json:"commission_rate"`
}

// KeywordSource produces keyword reports.
type KeywordSource interface {
	KeywordReport(ctx context.Context, keyword string) (*KeywordReport, error)
}

// ProductSource searches a marketplace for products.
type ProductSource interface {
	SearchProducts(ctx context.Context, keyword string) ([]ProductSnapshot, error)
}

// IdeaSource proposes raw niche names.
type IdeaSource interface {
	Name() string
	Ideas(ctx context.Context) ([]string, error)
}

// CommissionClassifier assigns commission rates to niche names.
type CommissionClassifier interface {
	CommissionRates(ctx context.Context, niches []string) ([]NicheCommission, error)
}

// timestampLayouts are tried in order. Values without a zone are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// timestamp decodes provider times. Null and empty strings decode to the zero time.
type timestamp time.Time

func (t *timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: timestamp %s", ErrFormat, raw)
	}
	if s == "" {
		*t = timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = timestamp(v)
			return nil
		}
	}
	return fmt.Errorf("%w: timestamp %q", ErrFormat, s)
}
