package inference

import (
	"context"
	"regexp"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

var (
	supportedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`water boils.*100.*celsius`),
		regexp.MustCompile(`earth.*revolves.*around.*sun`),
		regexp.MustCompile(`vaccines.*reduce.*risk`),
		regexp.MustCompile(`smoking.*increases.*risk.*cancer`),
	}
	refutedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`vaccines.*cause.*autism`),
		regexp.MustCompile(`earth.*is.*flat`),
		regexp.MustCompile(`climate.*change.*hoax`),
		regexp.MustCompile(`covid.*vaccines.*microchip`),
	}
)

// PatternTier recognizes a handful of well-known claims by regular expression
type PatternTier struct{}

func (PatternTier) Name() string { return SourcePattern }

func (PatternTier) TryClassify(_ context.Context, req Request) (*Outcome, error) {
	claim := strings.ToLower(req.Claim)

	for _, re := range supportedPatterns {
		if re.MatchString(claim) {
			return &Outcome{
				Assessment: model.Supported,
				Confidence: 0.75,
				Reasoning:  "Matches known supported pattern",
				Source:     SourcePattern,
				Explanation: model.Explanation{
					Short:  "This matches well-established facts",
					Medium: "This claim matches patterns of well-established factual information",
					Long:   "Our pattern matching system identified this claim as consistent with well-established facts",
					ELI5:   "This matches things we know are true",
				},
			}, nil
		}
	}

	for _, re := range refutedPatterns {
		if re.MatchString(claim) {
			return &Outcome{
				Assessment: model.Refuted,
				Confidence: 0.80,
				Reasoning:  "Matches known refuted pattern",
				Source:     SourcePattern,
				Explanation: model.Explanation{
					Short:  "This matches debunked misinformation",
					Medium: "This claim matches patterns of known misinformation that has been debunked",
					Long:   "Our pattern matching system identified this claim as consistent with known misinformation",
					ELI5:   "This matches things we know are false",
				},
			}, nil
		}
	}
	return nil, nil
}
