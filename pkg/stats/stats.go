// Package stats computes descriptive summaries over sparse numeric columns.
package stats

import "github.com/go-gota/gota/series"

// Summary describes a numeric column. All fields are nil when there were no values.
type Summary struct {
	Max  *float64 `json:"max"`
	Min  *float64 `json:"min"`
	Avg  *float64 `json:"avg"`
	Stdv *float64 `json:"stdv"`
}

// minStdvSamples is the smallest sample for which a spread is reported.
const minStdvSamples = 3

// Describe summarizes values. Fewer than three values report a stdv of 0;
// otherwise the sample standard deviation is used.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	s := series.Floats(values)
	sum := Summary{
		Max: ptr(s.Max()),
		Min: ptr(s.Min()),
		Avg: ptr(s.Mean()),
	}
	if len(values) < minStdvSamples {
		sum.Stdv = ptr(0)
	} else {
		sum.Stdv = ptr(s.StdDev())
	}
	return sum
}

// Ints drops nil entries and converts the rest to float64.
func Ints(values []*int) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, float64(*v))
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }
