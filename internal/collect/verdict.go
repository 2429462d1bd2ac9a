package collect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	pageVerdictFalse      = "false"
	pageVerdictTrue       = "true"
	pageVerdictMisleading = "misleading"
	pageVerdictMixed      = "mixed"
	pageVerdictUnknown    = "unknown"
)

var contentSelectors = "article, .content, .post-content, .entry-content, .article-body"

var verdictSelectors = []string{
	".verdict", ".rating", ".fact-check-result", ".conclusion",
	".truth-o-meter", ".rating_title_wrap", ".m-statement__meter",
	`[class*="verdict"]`, `[class*="rating"]`, `[class*="fact"]`,
	"h1", "title", ".headline",
}

// Phrases in the page body that mark a debunk regardless of layout
var bodyFalseMarkers = []string{
	"baselessly linked", "baseless",
	"false claim", "misleading claim",
	"no evidence", "unsubstantiated",
	"debunked", "fabricated",
}

// extractPageVerdict reads a verdict token from an article page
func extractPageVerdict(doc *goquery.Document) string {
	body := strings.ToLower(doc.Find("body").Text())
	for _, marker := range bodyFalseMarkers {
		if strings.Contains(body, marker) {
			return pageVerdictFalse
		}
	}

	title := strings.ToLower(doc.Find("title, h1").First().Text())
	if containsAny(title, "baselessly", "false", "misleading") {
		return pageVerdictFalse
	}
	if containsAny(title, "true", "confirmed", "verified") {
		return pageVerdictTrue
	}

	for _, sel := range verdictSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(el.Text()))
		if v := ratingVerdict(text); v != "" {
			return v
		}
		if text == "" {
			return pageVerdictUnknown
		}
		return text
	}
	return pageVerdictUnknown
}

// ratingVerdict maps rating wording onto a verdict token, or "" when nothing matches
func ratingVerdict(text string) string {
	text = strings.ToLower(text)
	switch {
	case containsAny(text, "mostly false", "partly false"):
		return pageVerdictMisleading
	case containsAny(text, "half true", "partly true", "mixed", "mixture"):
		return pageVerdictMixed
	case containsAny(text, "false", "pants on fire", "baselessly", "fake", "scam"):
		return pageVerdictFalse
	case containsAny(text, "misleading", "missing context"):
		return pageVerdictMisleading
	case containsAny(text, "true", "correct", "accurate"):
		return pageVerdictTrue
	}
	return ""
}

// stanceFor maps a verdict token onto evidence stance
func stanceFor(verdict string) model.Stance {
	switch verdict {
	case pageVerdictFalse, pageVerdictMisleading:
		return model.StanceRefutes
	case pageVerdictTrue:
		return model.StanceSupports
	default:
		return model.StanceNeutral
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
