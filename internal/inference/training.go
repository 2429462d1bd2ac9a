package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/similarity"
)

const (
	exactThreshold = 0.85
	fuzzyThreshold = 0.6
)

// ExactTier matches a claim against the curated fact table
type ExactTier struct {
	facts FactTable
}

// NewExactTier creates the exact-match tier
func NewExactTier(facts FactTable) *ExactTier {
	return &ExactTier{facts: facts}
}

func (t *ExactTier) Name() string { return SourceExact }

// TryClassify searches the claim's category, or all categories when it has no entries
func (t *ExactTier) TryClassify(_ context.Context, req Request) (*Outcome, error) {
	claim := strings.ToLower(strings.TrimSpace(req.Claim))
	if claim == "" {
		return nil, nil
	}

	for _, cat := range t.facts.searchOrder(req.Category) {
		set := t.facts[cat]

		for _, fact := range set.True {
			known := strings.ToLower(strings.TrimSpace(fact))
			if claim == known {
				return &Outcome{
					Assessment: model.Supported,
					Confidence: 0.95,
					Reasoning:  fmt.Sprintf("Exact match with known true claim: %q", fact),
					Source:     SourceExact,
					Explanation: model.Explanation{
						Short:  "This claim exactly matches verified information in our training data",
						Medium: fmt.Sprintf("This claim is an exact match with verified information in our %s training data", cat),
						Long:   fmt.Sprintf("Our system found an exact match for this claim in our verified training data for the %s category", cat),
						ELI5:   "Our computer knows this is exactly true from what it learned before",
					},
				}, nil
			}
			if similarity.TextSimilarity(claim, known) >= exactThreshold {
				return &Outcome{
					Assessment: model.Supported,
					Confidence: 0.92,
					Reasoning:  fmt.Sprintf("Matches known true claim in %s category", cat),
					Source:     SourceExact,
					Explanation: model.Explanation{
						Short:  "This claim matches verified information",
						Medium: fmt.Sprintf("Based on our training data for %s, this claim is supported by established facts", cat),
						Long:   fmt.Sprintf("Our system identified this claim as matching verified information in the %s category with high confidence", cat),
						ELI5:   "Our computer has learned that this is true",
					},
				}, nil
			}
		}

		for _, fact := range set.False {
			if similarity.TextSimilarity(claim, strings.ToLower(fact)) >= exactThreshold {
				return &Outcome{
					Assessment: model.Refuted,
					Confidence: 0.94,
					Reasoning:  fmt.Sprintf("Matches known false claim in %s category", cat),
					Source:     SourceExact,
					Explanation: model.Explanation{
						Short:  "This claim matches known misinformation",
						Medium: fmt.Sprintf("Based on our training data for %s, this claim has been identified as false", cat),
						Long:   fmt.Sprintf("Our system identified this claim as matching debunked information in the %s category with high confidence", cat),
						ELI5:   "Our computer has learned that this is not true",
					},
				}, nil
			}
		}
	}
	return nil, nil
}

// FuzzyTier finds the most similar curated claim across every category
type FuzzyTier struct {
	facts FactTable
}

// NewFuzzyTier creates the similarity tier
func NewFuzzyTier(facts FactTable) *FuzzyTier {
	return &FuzzyTier{facts: facts}
}

func (t *FuzzyTier) Name() string { return SourceSimilarity }

// TryClassify returns the verdict of the best match at or above 0.6 similarity
func (t *FuzzyTier) TryClassify(_ context.Context, req Request) (*Outcome, error) {
	claim := strings.ToLower(strings.TrimSpace(req.Claim))
	if claim == "" {
		return nil, nil
	}

	var (
		best       float64
		bestMatch  string
		assessment model.Assessment
	)
	consider := func(fact string, a model.Assessment) {
		sim := similarity.TextSimilarity(claim, strings.ToLower(fact))
		if sim >= fuzzyThreshold && sim > best {
			best, bestMatch, assessment = sim, fact, a
		}
	}

	for _, cat := range t.facts.categories() {
		set := t.facts[cat]
		for _, fact := range set.True {
			consider(fact, model.Supported)
		}
		for _, fact := range set.False {
			consider(fact, model.Refuted)
		}
	}

	if bestMatch == "" {
		return nil, nil
	}

	known, truth := "verified", "true"
	if assessment == model.Refuted {
		known, truth = "debunked", "false"
	}
	pct := fmt.Sprintf("%.1f%%", best*100)

	return &Outcome{
		Assessment: assessment,
		Confidence: min(0.85, 0.5+0.4*best),
		Reasoning:  fmt.Sprintf("Similar to training claim: %q (%s similarity)", bestMatch, pct),
		Source:     SourceSimilarity,
		Explanation: model.Explanation{
			Short:  fmt.Sprintf("Similar to %s information in our training data", known),
			Medium: fmt.Sprintf("This claim is similar to %s information in our training data with %s similarity", known, pct),
			Long:   fmt.Sprintf("Our system found this claim to be %s similar to %s information in our training data: %q", pct, known, bestMatch),
			ELI5:   fmt.Sprintf("This is similar to something our computer already knows is %s", truth),
		},
	}, nil
}
