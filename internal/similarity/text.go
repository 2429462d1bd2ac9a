// Package similarity provides the text and vector similarity measures used across
// evidence scoring, curated-fact matching and clustering.
package similarity

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[^\w\s.,!?-]`)
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
)

// maxKeyTerms bounds the query built from a claim
const maxKeyTerms = 10

var stopWords = map[string]bool{
	"the": true, "is": true, "at": true, "which": true, "on": true, "a": true, "an": true,
	"and": true, "or": true, "but": true, "in": true, "with": true, "to": true, "for": true,
	"of": true, "as": true, "by": true, "that": true, "this": true, "are": true, "was": true,
	"were": true, "been": true, "have": true, "has": true, "had": true,
}

// TextSimilarity returns the Jaccard similarity of the lower-cased,
// whitespace-tokenized word sets of a and b.
func TextSimilarity(a, b string) float64 {
	return jaccard(wordSet(strings.Fields(strings.ToLower(a))), wordSet(strings.Fields(strings.ToLower(b))))
}

// TermSimilarity is TextSimilarity over stop-word filtered key terms.
// Texts without any key term never match.
func TermSimilarity(a, b string) float64 {
	ta, tb := KeyTerms(a), KeyTerms(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	return jaccard(wordSet(ta), wordSet(tb))
}

// KeyTerms extracts up to ten distinct meaningful terms, in order of appearance
func KeyTerms(text string) []string {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(text), " ")

	seen := make(map[string]bool)
	var terms []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 2 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
		if len(terms) >= maxKeyTerms {
			break
		}
	}
	return terms
}

// Normalize trims, collapses whitespace, strips non-word punctuation and lower-cases
func Normalize(text string) string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	text = punctRe.ReplaceAllString(text, "")
	return strings.ToLower(strings.TrimSpace(text))
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
