package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

// Category is one row of the marketplace affiliate commission table.
type Category struct {
	Index          string
	Name           string
	CommissionRate float64
}

// CommissionTable maps classification letters to commission rates.
var CommissionTable = []Category{
	{"A", "Physical Books, Kitchen, Automotive", 4.5},
	{"B", "Apparel, Jewelry, Luggage, Shoes, Watches, Ring Devices, Handbags, Accessories", 4},
	{"C", "Toys, Furniture, Home, Home Improvement, Pets, Beauty, Musical Instruments, Outdoors, Tools, Sports, Baby", 3},
	{"D", "PC Components", 2.5},
	{"E", "Any other product", 4},
}

// Completer returns a model reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier assigns niches to commission categories with a language model.
type Classifier struct {
	llm Completer
}

// NewClassifier creates a commission classifier.
func NewClassifier(llm Completer) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) CommissionRates(ctx context.Context, niches []string) ([]source.NicheCommission, error) {
	if len(niches) == 0 {
		return nil, nil
	}
	raw, err := c.llm.Complete(ctx, commissionPrompt(niches))
	if err != nil {
		return nil, fmt.Errorf("classify %d niches: %w", len(niches), err)
	}
	return ParseCommissions(raw, niches)
}

func commissionPrompt(niches []string) string {
	var b strings.Builder
	for _, cat := range CommissionTable {
		fmt.Fprintf(&b, "%s. %s\n", cat.Index, cat.Name)
	}
	b.WriteString("\nGiven the table above, classify the following products below:\n")
	for i, n := range niches {
		fmt.Fprintf(&b, "%d. %s\n", i, n)
	}
	b.WriteString("\nYour response should be given in the following format: 0A,1B...")
	return b.String()
}

// ParseCommissions decodes a reply like "0A,1C,2E" against the prompted niches.
// The numeric prefix selects the niche; without one, position is used.
func ParseCommissions(raw string, niches []string) ([]source.NicheCommission, error) {
	byIndex := make(map[string]Category, len(CommissionTable))
	for _, cat := range CommissionTable {
		byIndex[cat.Index] = cat
	}

	var out []source.NicheCommission
	for pos, token := range strings.Split(stripCodeFence(raw), ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		letter := strings.ToUpper(token[len(token)-1:])
		cat, ok := byIndex[letter]
		if !ok {
			return nil, fmt.Errorf("parse commission %q: %w: unknown category", token, source.ErrFormat)
		}

		idx := pos
		if digits := strings.TrimRightFunc(token[:len(token)-1], func(r rune) bool { return !unicode.IsDigit(r) }); digits != "" {
			n, err := strconv.Atoi(strings.TrimSpace(digits))
			if err != nil {
				return nil, fmt.Errorf("parse commission %q: %w: %v", token, source.ErrFormat, err)
			}
			idx = n
		}
		if idx < 0 || idx >= len(niches) {
			return nil, fmt.Errorf("parse commission %q: %w: niche %d out of range", token, source.ErrFormat, idx)
		}

		out = append(out, source.NicheCommission{
			Niche:          niches[idx],
			Category:       cat.Name,
			CommissionRate: cat.CommissionRate,
		})
	}
	return out, nil
}
