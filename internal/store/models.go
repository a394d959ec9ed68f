package store

import "time"

// KeywordType tags the role a keyword played when it was first researched.
type KeywordType string

const (
	KeywordPrimary    KeywordType = "PRIMARY"
	KeywordSuggestion KeywordType = "SUGGESTION"
	KeywordMatch      KeywordType = "MATCH"
)

// History is a chronologically ordered sequence of snapshots, oldest first.
type History[T any] []T

// Latest returns the most recently created entry, or false when there is none.
func (h History[T]) Latest() (T, bool) {
	var zero T
	if len(h) == 0 {
		return zero, false
	}
	return h[len(h)-1], true
}

// Niche is a market being evaluated for content opportunity.
type Niche struct {
	ID                   int64     `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	AmazonCommissionRate *float64  `db:"amazon_commission_rate" json:"amazon_commission_rate"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// KeywordKey is the identity of a keyword. Two rows never share a key.
type KeywordKey struct {
	Keyword  string
	Language string
	LocID    int
}

// Keyword is a tracked search phrase plus its append-only snapshot history.
// The history fields are only populated by explicit loads.
type Keyword struct {
	ID        int64       `db:"id" json:"id"`
	Keyword   string      `db:"keyword" json:"keyword"`
	Language  string      `db:"language" json:"language"`
	LocID     int         `db:"loc_id" json:"loc_id"`
	Type      KeywordType `db:"type" json:"type"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`

	MetricsReports History[MetricsReport] `db:"-" json:"metrics_reports,omitempty"`
	SERPAnalyses   History[SERPAnalysis]  `db:"-" json:"serp_analyses,omitempty"`
	SuggestionSets History[SuggestionSet] `db:"-" json:"suggestion_sets,omitempty"`
}

// Key returns the identity triple of k.
func (k *Keyword) Key() KeywordKey {
	return KeywordKey{Keyword: k.Keyword, Language: k.Language, LocID: k.LocID}
}

// MetricsReport is one immutable volume/competition/cost snapshot.
type MetricsReport struct {
	ID          int64     `db:"id" json:"id"`
	KeywordID   int64     `db:"keyword_id" json:"keyword_id"`
	Competition float64   `db:"competition" json:"competition"`
	Volume      int       `db:"volume" json:"volume"`
	CPC         float64   `db:"cpc" json:"cpc"`
	CPCDollars  float64   `db:"cpc_dollars" json:"cpc_dollars"`
	SD          int       `db:"sd" json:"sd"`
	PD          int       `db:"pd" json:"pd"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SERPAnalysis is one snapshot of a results page, items in rank order as received.
type SERPAnalysis struct {
	ID        int64              `db:"id" json:"id"`
	KeywordID int64              `db:"keyword_id" json:"keyword_id"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	Items     []SERPAnalysisItem `db:"-" json:"items"`
}

// SERPAnalysisItem is a single result. Position is the 1-based rank.
type SERPAnalysisItem struct {
	ID                int64     `db:"id" json:"id"`
	SERPAnalysisID    int64     `db:"serp_analysis_id" json:"serp_analysis_id"`
	URL               *string   `db:"url" json:"url"`
	Title             *string   `db:"title" json:"title"`
	Domain            *string   `db:"domain" json:"domain"`
	Position          *int      `db:"position" json:"position"`
	Type              *string   `db:"type" json:"type"`
	Clicks            *int      `db:"clicks" json:"clicks"`
	DomainAuthority   *int      `db:"domain_authority" json:"domain_authority"`
	FacebookShares    *int      `db:"facebook_shares" json:"facebook_shares"`
	PinterestShares   *int      `db:"pinterest_shares" json:"pinterest_shares"`
	LinkedinShares    *int      `db:"linkedin_shares" json:"linkedin_shares"`
	GoogleShares      *int      `db:"google_shares" json:"google_shares"`
	RedditShares      *int      `db:"reddit_shares" json:"reddit_shares"`
	Backlinks         *int      `db:"backlinks" json:"backlinks"`
	ReferringDomains  *int      `db:"referring_domains" json:"referring_domains"`
	NofollowBacklinks *int      `db:"nofollow_backlinks" json:"nofollow_backlinks"`
	DofollowBacklinks *int      `db:"dofollow_backlinks" json:"dofollow_backlinks"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// SuggestionSet groups the keywords suggested alongside a keyword at one point in time.
// Suggested keywords are shared rows referenced by id.
type SuggestionSet struct {
	ID                  int64     `db:"id" json:"id"`
	KeywordID           int64     `db:"keyword_id" json:"keyword_id"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	SuggestedKeywordIDs []int64   `db:"-" json:"suggested_keyword_ids"`
}

// AmazonProduct is the current observed state of a marketplace listing.
type AmazonProduct struct {
	ASIN            string    `db:"asin" json:"asin"`
	Title           string    `db:"title" json:"title"`
	PriceUSD        float64   `db:"price_usd" json:"price_usd"`
	IsSponsored     bool      `db:"is_sponsored" json:"is_sponsored"`
	Rating          *float64  `db:"rating" json:"rating"`
	Reviews         *int      `db:"reviews" json:"reviews"`
	BoughtLastMonth *int      `db:"bought_last_month" json:"bought_last_month"`
	SeenAt          time.Time `db:"seen_at" json:"seen_at"`
}
