package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/similarity"
)

const (
	maxCleanedChars    = 500
	minSnippetChars    = 10
	retrievalThreshold = 0.3
	maxRetrieved       = 5
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[^\w\s.,!?-]`)
)

// cleanText strips control characters and punctuation outside [.,!?-],
// collapses whitespace and truncates to 500 characters
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = punctRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxCleanedChars {
		s = string(r[:maxCleanedChars])
	}
	return s
}

// preprocessEvidence cleans snippets and titles and drops snippets shorter than 10 characters
func preprocessEvidence(items []model.Evidence) []model.Evidence {
	out := make([]model.Evidence, 0, len(items))
	for _, ev := range items {
		ev.Snippet = cleanText(ev.Snippet)
		ev.Title = cleanText(ev.Title)
		if len([]rune(ev.Snippet)) < minSnippetChars {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// retrievalScore weighs word overlap by how much text backs it up
func retrievalScore(claim string, ev model.Evidence) float64 {
	text := ev.Snippet + " " + ev.Title
	weight := min(float64(len(text))/100, 1)
	return similarity.TextSimilarity(claim, text) * weight
}

// retrieveEvidence keeps evidence scoring above 0.3, best first, at most five
func retrieveEvidence(claim string, items []model.Evidence) []model.Evidence {
	var out []model.Evidence
	for _, ev := range items {
		score := retrievalScore(claim, ev)
		if score <= retrievalThreshold {
			continue
		}
		ev.Relevance = score
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > maxRetrieved {
		out = out[:maxRetrieved]
	}
	return out
}

// evidenceSources lists distinct sources in order of appearance
func evidenceSources(items []model.Evidence) []string {
	seen := map[string]bool{}
	sources := []string{}
	for _, ev := range items {
		if ev.Source != "" && !seen[ev.Source] {
			seen[ev.Source] = true
			sources = append(sources, ev.Source)
		}
	}
	return sources
}
