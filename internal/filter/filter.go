// Package filter removes ads matching user-defined exclusion patterns.
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
)

// Rule is one compiled exclusion pattern.
type Rule struct {
	Pattern string
	re      *regexp.Regexp
}

// Engine evaluates exclusion rules against ads. The zero value excludes nothing.
type Engine struct {
	rules []Rule
}

// Compile builds an Engine. Patterns are case-insensitive regular expressions;
// a malformed pattern is a ConfigError so the run stops before any scraping.
// Empty patterns are ignored.
func Compile(patterns []string) (*Engine, error) {
	e := &Engine{rules: make([]Rule, 0, len(patterns))}
	for i, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, &domain.ConfigError{
				Field: fmt.Sprintf("filter.exclude_patterns[%d]", i),
				Err:   fmt.Errorf("invalid pattern %q: %w", p, err),
			}
		}
		e.rules = append(e.rules, Rule{Pattern: p, re: re})
	}
	return e, nil
}

// Len returns the number of active rules.
func (e *Engine) Len() int { return len(e.rules) }

// Match returns the first rule matching ad, if any.
func (e *Engine) Match(ad domain.Ad) (Rule, bool) {
	if len(e.rules) == 0 {
		return Rule{}, false
	}
	text := matchText(ad)
	for _, r := range e.rules {
		if r.re.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}

// Exclusion pairs an excluded ad with the rule that removed it.
type Exclusion struct {
	Ad   domain.Ad
	Rule string
}

// Apply splits ads into the admissible subset (order kept) and the excluded ones.
func (e *Engine) Apply(ads []domain.Ad) ([]domain.Ad, []Exclusion) {
	if len(e.rules) == 0 {
		return ads, nil
	}
	kept := make([]domain.Ad, 0, len(ads))
	var excluded []Exclusion
	for _, ad := range ads {
		if r, ok := e.Match(ad); ok {
			excluded = append(excluded, Exclusion{Ad: ad, Rule: r.Pattern})
			continue
		}
		kept = append(kept, ad)
	}
	return kept, excluded
}

// matchText concatenates the textual fields of an ad: title, then raw field
// values ordered by key so matching never depends on map iteration.
func matchText(ad domain.Ad) string {
	var b strings.Builder
	b.WriteString(ad.Title)
	keys := make([]string, 0, len(ad.Fields))
	for k := range ad.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(ad.Fields[k])
	}
	return b.String()
}
