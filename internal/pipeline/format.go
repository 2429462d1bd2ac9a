package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/inference"
	"github.com/ppiankov/veritas/internal/model"
)

func percent(confidence float64) int {
	return int(confidence*100 + 0.5)
}

func classification(a model.Assessment, pct int) string {
	return fmt.Sprintf("%s %s (Confidence: %d%%)", a.Emoji(), a.Label(), pct)
}

// formatResult renders the outcome in the external vocabulary
func formatResult(rc *RunContext, now time.Time) *model.Result {
	out := rc.Outcome
	confidence := model.ClampConfidence(out.Confidence)
	pct := percent(confidence)
	label := out.Assessment.Label()
	lower := strings.ToLower(label)
	sources := evidenceSources(rc.Retrieved)

	evidence := rc.Retrieved
	if evidence == nil {
		evidence = []model.Evidence{}
	}

	return &model.Result{
		Claim:             rc.Claim,
		Classification:    classification(out.Assessment, pct),
		Verdict:           out.Assessment.ToVerdict(),
		Assessment:        out.Assessment,
		Confidence:        confidence,
		ConfidencePercent: pct,
		Emoji:             out.Assessment.Emoji(),
		Label:             label,
		Reasoning:         out.Reasoning,
		Explanation: model.Explanation{
			Short:  fmt.Sprintf("%s with %d%% confidence", label, pct),
			Medium: fmt.Sprintf("Analysis of %d evidence sources indicates this claim is %s (%d%% confidence)", len(evidence), lower, pct),
			Long: fmt.Sprintf("Our verification pipeline analyzed this claim through web scraping, evidence retrieval, and classification models. "+
				"Based on %d evidence sources from %s, the claim is classified as %s with %d%% confidence. %s",
				len(evidence), sourceList(sources), lower, pct, out.Reasoning),
			ELI5: fmt.Sprintf("We checked this claim by looking at lots of websites and using smart computer programs. The result is: %s.", lower),
		},
		Evidence: evidence,
		Pipeline: model.RunSummary{
			EvidenceSources:    sources,
			VerificationMethod: out.Source,
		},
		Timestamp: now,
	}
}

// fallbackResult is returned when a stage failed
func fallbackResult(rc *RunContext, err error, now time.Time) *model.Result {
	msg := err.Error()
	return &model.Result{
		Claim:             rc.Claim,
		Classification:    classification(model.NotEnoughInfo, 20),
		Verdict:           model.VerdictUnverified,
		Assessment:        model.NotEnoughInfo,
		Confidence:        0.2,
		ConfidencePercent: 20,
		Emoji:             model.NotEnoughInfo.Emoji(),
		Label:             model.NotEnoughInfo.Label(),
		Reasoning:         "Verification failed: " + msg,
		Explanation: model.Explanation{
			Short:  "Unable to verify this claim",
			Medium: "Our verification system encountered an error and could not analyze this claim",
			Long:   fmt.Sprintf("The verification pipeline failed to analyze this claim due to: %s. Please try again later.", msg),
			ELI5:   "Sorry, we couldn't check this claim right now.",
		},
		Evidence: []model.Evidence{},
		Pipeline: model.RunSummary{
			StepsCompleted:     rc.Steps,
			TotalTimeMs:        time.Since(rc.start).Milliseconds(),
			EvidenceSources:    []string{},
			VerificationMethod: inference.SourceFallback,
		},
		Error:     msg,
		Timestamp: now,
	}
}

// finishSummary copies stage bookkeeping into the result
func finishSummary(rc *RunContext, result *model.Result) {
	result.Pipeline.StepsCompleted = rc.Steps
	result.Pipeline.TotalTimeMs = time.Since(rc.start).Milliseconds()
	result.Pipeline.StageTimingsMs = make(map[string]int64, len(rc.Timings))
	for stage, d := range rc.Timings {
		result.Pipeline.StageTimingsMs[stage] = d.Milliseconds()
	}
	if len(rc.Breakdown) > 0 {
		result.Pipeline.SourceBreakdown = rc.Breakdown
	}
}

func sourceList(sources []string) string {
	if len(sources) == 0 {
		return "no external sources"
	}
	return strings.Join(sources, ", ")
}
