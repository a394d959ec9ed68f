package candidate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/brunotatsuya/affiliana-cli/pkg/stats"
)

// Columns is the fixed snapshot column set, in output order.
var Columns = []string{
	"niche", "amazon_commission_rate",
	"amazon_products_price_max", "amazon_products_price_min", "amazon_products_price_avg", "amazon_products_price_stdv",
	"amazon_products_reviews_max", "amazon_products_reviews_min", "amazon_products_reviews_avg", "amazon_products_reviews_stdv",
	"amazon_products_ratings_max", "amazon_products_ratings_min", "amazon_products_ratings_avg", "amazon_products_ratings_stdv",
	"amazon_products_bought_max", "amazon_products_bought_min", "amazon_products_bought_avg", "amazon_products_bought_stdv",
	"keyword", "volume", "domains_with_DA_under_30", "da_top_1", "da_top_2", "da_top_3",
	"da_max", "da_min", "da_avg", "da_stdv",
	"backlinks_max", "backlinks_min", "backlinks_avg", "backlinks_stdv",
	"referring_domains_max", "referring_domains_min", "referring_domains_avg", "referring_domains_stdv",
	"nofollow_backlinks_max", "nofollow_backlinks_min", "nofollow_backlinks_avg", "nofollow_backlinks_stdv",
	"dofollow_backlinks_max", "dofollow_backlinks_min", "dofollow_backlinks_avg", "dofollow_backlinks_stdv",
}

// Records flattens statistics into one record per keyword per niche, niche
// fields repeated on each. Null values become empty cells. Nil entries are skipped.
func Records(all []*CandidateStatistics) [][]string {
	var rows [][]string
	for _, cs := range all {
		if cs == nil {
			continue
		}
		niche := []string{cs.Niche, formatFloat(cs.AmazonCommissionRate)}
		niche = appendSummary(niche, cs.AmazonProductsPrice)
		niche = appendSummary(niche, cs.AmazonProductsReviews)
		niche = appendSummary(niche, cs.AmazonProductsRatings)
		niche = appendSummary(niche, cs.AmazonProductsBought)

		for _, kw := range cs.Keywords {
			row := make([]string, 0, len(Columns))
			row = append(row, niche...)
			row = append(row,
				kw.Keyword,
				strconv.Itoa(kw.Volume),
				strconv.Itoa(kw.DomainsWithDAUnder30),
				formatInt(kw.DATop1),
				formatInt(kw.DATop2),
				formatInt(kw.DATop3),
			)
			row = appendSummary(row, kw.DA)
			row = appendSummary(row, kw.Backlinks)
			row = appendSummary(row, kw.ReferringDomains)
			row = appendSummary(row, kw.NofollowBacklinks)
			row = appendSummary(row, kw.DofollowBacklinks)
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteCSV writes the snapshot table with a header row.
func WriteCSV(w io.Writer, all []*CandidateStatistics) error {
	rows := Records(all)
	if len(rows) == 0 {
		cw := csv.NewWriter(w)
		if err := cw.Write(Columns); err != nil {
			return fmt.Errorf("write snapshot header: %w", err)
		}
		cw.Flush()
		return cw.Error()
	}

	df := dataframe.LoadRecords(
		append([][]string{Columns}, rows...),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return fmt.Errorf("build snapshot table: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func appendSummary(row []string, s stats.Summary) []string {
	return append(row, formatFloat(s.Max), formatFloat(s.Min), formatFloat(s.Avg), formatFloat(s.Stdv))
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
