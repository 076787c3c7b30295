package retriever

import (
	"strings"
	"unicode"
)

// Common words the lexical pass ignores. Queries are Vietnamese or English,
// so both sets are covered.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"what": true, "which": true, "who": true, "when": true, "where": true,
	"why": true, "how": true,
	"là": true, "và": true, "của": true, "cho": true, "các": true,
	"những": true, "không": true, "có": true, "với": true, "được": true,
}

const maxTerms = 8

// extractTerms picks the query tokens worth an exact-content match: numbers
// and digit-bearing tokens (salaries, job ids) always qualify, other words
// qualify when long enough and not a stopword.
func extractTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string

	for _, word := range strings.Fields(query) {
		word = strings.Trim(word, ".,!?;:\"'()")
		lower := strings.ToLower(word)
		if lower == "" || seen[lower] {
			continue
		}
		if !containsDigit(word) {
			if len([]rune(lower)) <= 2 || stopWords[lower] {
				continue
			}
		}
		seen[lower] = true
		terms = append(terms, lower)
		if len(terms) >= maxTerms {
			break
		}
	}
	return terms
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// termCoverage returns the fraction of terms present in content.
func termCoverage(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
