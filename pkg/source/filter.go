package source

import "strings"

// FormatNicheName normalizes a raw niche idea: dashes become spaces and the
// result is lower-cased and trimmed.
func FormatNicheName(name string) string {
	name = strings.ReplaceAll(name, "-", " ")
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Filter rejects niche ideas containing any excluded term.
type Filter struct {
	exclude []string
}

// NewFilter creates a filter over the given excluded terms.
func NewFilter(excludeKeywords []string) *Filter {
	exclude := make([]string, 0, len(excludeKeywords))
	for _, kw := range excludeKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			exclude = append(exclude, strings.ToLower(kw))
		}
	}
	return &Filter{exclude: exclude}
}

// Allows reports whether text is an acceptable idea. A nil filter allows
// everything that is not blank.
func (f *Filter) Allows(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	if f == nil {
		return true
	}
	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}
	return true
}

// NormalizeIdeas formats, filters and de-duplicates ideas, keeping first occurrences.
func NormalizeIdeas(ideas []string, f *Filter) []string {
	seen := make(map[string]bool, len(ideas))
	out := make([]string, 0, len(ideas))
	for _, idea := range ideas {
		name := FormatNicheName(idea)
		if !f.Allows(name) || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
