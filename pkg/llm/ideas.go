package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/brunotatsuya/affiliana-cli/pkg/source"
)

const ideasPrompt = `Present 200 niches, respecting the following requirements:
1. The niche should be attractive on the United States so you can construct an affiliate business through a blog website ranked organically on Google.
2. The niche should be low competitive. It is expected to be relatively easy to rank on Google search through SEO organically.
3. The niche cannot be seasonal and should have good longevity.
4. The niche should not evolve fast, meaning, should not be frequently updated.
5. The volume for organic traffic considering buy intent keywords should be between 1k and 10k per month.
6. The products to sell as an affiliate should be something you can buy in Amazon, but above the 100 dollars.

Do not use 'for' specific audience or other qualifier/adjectives like 'high-end', 'luxury', 'high-quality', etc. Keep it clean.
Your response should be given in a single string in the format: niche1,niche2,niche3,...`

// Ideas asks the model for niche ideas.
type Ideas struct {
	llm    Completer
	filter *source.Filter
}

// NewIdeas creates a model-backed idea source.
func NewIdeas(llm Completer, filter *source.Filter) *Ideas {
	return &Ideas{llm: llm, filter: filter}
}

func (i *Ideas) Name() string { return "llm" }

func (i *Ideas) Ideas(ctx context.Context) ([]string, error) {
	raw, err := i.llm.Complete(ctx, ideasPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate niche ideas: %w", err)
	}
	return source.NormalizeIdeas(strings.Split(stripCodeFence(raw), ","), i.filter), nil
}

// stripCodeFence removes a surrounding markdown code block.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		raw = strings.TrimSuffix(raw, "```")
	}
	return strings.TrimSpace(raw)
}
