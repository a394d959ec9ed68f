package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const amazonBaseURL = "https://www.amazon.com"

// AmazonSearch scrapes the marketplace search results page.
type AmazonSearch struct {
	client  *http.Client
	baseURL string
	retry   Retry
	now     func() time.Time
}

// NewAmazonSearch creates a search scraper. An empty baseURL uses amazon.com.
func NewAmazonSearch(baseURL string) *AmazonSearch {
	if baseURL == "" {
		baseURL = amazonBaseURL
	}
	return &AmazonSearch{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   DefaultRetry(),
		now:     time.Now,
	}
}

func (a *AmazonSearch) SearchProducts(ctx context.Context, keyword string) ([]ProductSnapshot, error) {
	u := a.baseURL + "/s?k=" + url.QueryEscape(keyword)
	header := http.Header{"Accept-Language": []string{"en-US,en;q=0.9"}}
	body, err := fetch(ctx, a.client, a.retry, u, header)
	if err != nil {
		return nil, fmt.Errorf("search products %q: %w", keyword, err)
	}

	products, err := ParseSearch(bytes.NewReader(body), a.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("search products %q: %w", keyword, err)
	}
	return products, nil
}

// ParseSearch extracts product listings from a search results page. Listings
// without a price are skipped and repeated ASINs keep their first occurrence.
func ParseSearch(r io.Reader, seenAt time.Time) ([]ProductSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w: %v", ErrFormat, err)
	}

	var (
		products []ProductSnapshot
		seen     = make(map[string]bool)
		parseErr error
	)
	doc.Find("div[data-asin]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		asin := strings.TrimSpace(s.AttrOr("data-asin", ""))
		if asin == "" || seen[asin] {
			return true
		}

		p, ok, err := parseListing(s, asin)
		if err != nil {
			parseErr = fmt.Errorf("parse listing %s: %w: %v", asin, ErrFormat, err)
			return false
		}
		if !ok {
			return true
		}
		p.SeenAt = seenAt
		seen[asin] = true
		products = append(products, p)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return products, nil
}

func parseListing(s *goquery.Selection, asin string) (ProductSnapshot, bool, error) {
	p := ProductSnapshot{ASIN: asin}

	titleRecipe := s.Find("div[data-cy=title-recipe]").First()
	p.Title = strings.TrimSpace(titleRecipe.Find("h2 span").First().Text())
	p.IsSponsored = titleRecipe.Find("div.a-row.a-spacing-micro").Length() > 0

	priceRecipe := s.Find("div[data-cy=price-recipe]").First()
	whole := priceRecipe.Find("span.a-price-whole").First()
	if whole.Length() == 0 {
		return p, false, nil
	}
	price, err := parseNumber(whole.Text())
	if err != nil {
		return p, false, fmt.Errorf("price: %w", err)
	}
	if frac := priceRecipe.Find("span.a-price-fraction").First(); frac.Length() > 0 {
		cents, err := parseNumber(frac.Text())
		if err != nil {
			return p, false, fmt.Errorf("price fraction: %w", err)
		}
		price += cents / 100
	}
	p.PriceUSD = price

	reviews := s.Find("div[data-cy=reviews-block]").First()
	if reviews.Length() == 0 {
		return p, true, nil
	}

	if label, ok := reviews.Find("span[aria-label]").First().Attr("aria-label"); ok {
		rating, err := strconv.ParseFloat(firstWord(label), 64)
		if err != nil {
			return p, false, fmt.Errorf("rating %q: %w", label, err)
		}
		p.Rating = &rating
	}

	if count := reviews.Find("span.a-size-base.s-underline-text").Last(); count.Length() > 0 {
		text := strings.ReplaceAll(strings.TrimSpace(count.Text()), ",", "")
		n, err := strconv.Atoi(text)
		if err != nil {
			return p, false, fmt.Errorf("reviews %q: %w", text, err)
		}
		p.Reviews = &n
	}

	if n, ok := parseBought(reviews.Find("span").Last().Text()); ok {
		p.BoughtLastMonth = &n
	}
	return p, true, nil
}

// parseBought reads counts like "2K+ bought in past month".
func parseBought(text string) (int, bool) {
	word := firstWord(text)
	word = strings.ReplaceAll(word, "K", "000")
	word = strings.ReplaceAll(word, "M", "000000")

	var digits strings.Builder
	for _, r := range word {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseNumber(text string) (float64, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimRight(text, ".")
	text = strings.ReplaceAll(text, ",", "")
	return strconv.ParseFloat(text, 64)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
