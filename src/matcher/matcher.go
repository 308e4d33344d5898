package matcher

import (
	"strings"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// Matcher maps raw text to the set of tracked candidates mentioned in it.
// Pure: no side effects, no failure modes. Built once at startup from the
// fixed candidate list.
// -----------------------------------------------------------------------------

type Matcher struct {
	candidates []models.MCandidate

	// Lowercased needles per candidate, name first then aliases.
	needles map[string][]string
}

// -----------------------------------------------------------------------------

func NewMatcher(candidates []models.MCandidate) *Matcher {
	m := &Matcher{
		candidates: candidates,
		needles:    make(map[string][]string, len(candidates)),
	}

	for _, c := range candidates {
		patterns := make([]string, 0, 1+len(c.Aliases))
		patterns = append(patterns, Normalize(c.Name))
		for _, alias := range c.Aliases {
			if norm := Normalize(alias); norm != "" {
				patterns = append(patterns, norm)
			}
		}
		m.needles[c.Name] = patterns
	}

	return m
}

// -----------------------------------------------------------------------------

// Normalize lowercases text and collapses runs of whitespace to single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// -----------------------------------------------------------------------------

// Match returns the names of every candidate whose name or alias occurs as a
// substring of the normalized text. Candidates with overlapping names may all
// match the same event; no exclusivity is enforced. Empty text matches
// nothing.
func (m *Matcher) Match(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var matched []string
	for _, c := range m.candidates {
		for _, needle := range m.needles[c.Name] {
			if strings.Contains(normalized, needle) {
				matched = append(matched, c.Name)
				break
			}
		}
	}
	return matched
}

// -----------------------------------------------------------------------------

// Names returns the configured candidate names in configuration order.
func (m *Matcher) Names() []string {
	names := make([]string, len(m.candidates))
	for i, c := range m.candidates {
		names[i] = c.Name
	}
	return names
}
