// Package inference decides a claim's verdict by asking an ordered list of
// tiers, from curated facts to a generative model, and taking the first answer.
package inference

import (
	"context"

	"github.com/ppiankov/veritas/internal/model"
)

// Source tags recorded as the verification method of an outcome
const (
	SourceExact      = "training-data-exact"
	SourceSimilarity = "training-data-similarity"
	SourceModel      = "ml-analysis"
	SourcePattern    = "pattern-matching"
	SourceGenerative = "ai-fallback"
	SourceFallback   = "fallback"
)

// Request is the input to every tier
type Request struct {
	Claim    string
	Category model.Category
	Evidence []model.Evidence
}

// Outcome is a tier's verdict
type Outcome struct {
	Assessment  model.Assessment
	Confidence  float64
	Reasoning   string
	Source      string
	Explanation model.Explanation
}

// Tier is one verdict strategy. TryClassify returns nil, nil to abstain.
// A returned error is a tier failure and is treated as abstaining.
type Tier interface {
	Name() string
	TryClassify(ctx context.Context, req Request) (*Outcome, error)
}

// FallbackOutcome is returned when every tier abstains
func FallbackOutcome() Outcome {
	return Outcome{
		Assessment: model.NotEnoughInfo,
		Confidence: 0.3,
		Reasoning:  "No matching patterns or training data found",
		Source:     SourceFallback,
		Explanation: model.Explanation{
			Short:  "Insufficient information to verify this claim",
			Medium: "We could not find sufficient information in our training data or patterns to verify this claim",
			Long:   "Our verification system could not find matching information in training data, similar claims, or established patterns",
			ELI5:   "We don't have enough information to know if this is true or false",
		},
	}
}
