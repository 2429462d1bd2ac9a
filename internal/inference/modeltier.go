package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	modelWinThreshold  = 0.6
	modelMaxConfidence = 0.95
)

// ModelTier asks a pre-trained classifier to judge the evidence
type ModelTier struct {
	classifier Classifier
}

// NewModelTier creates the classifier tier
func NewModelTier(c Classifier) *ModelTier {
	return &ModelTier{classifier: c}
}

func (t *ModelTier) Name() string { return SourceModel }

// TryClassify abstains without evidence or when no stance clearly wins
func (t *ModelTier) TryClassify(ctx context.Context, req Request) (*Outcome, error) {
	if len(req.Evidence) == 0 {
		return nil, nil
	}

	out, err := t.classifier.Classify(ctx, NewClassifierInput(req))
	if err != nil {
		return nil, err
	}

	assessment, confidence, ok := aggregateStances(out)
	if !ok {
		return nil, nil
	}
	confidence = min(confidence, modelMaxConfidence)

	reasoning := out.Reasoning
	if reasoning == "" {
		reasoning = fmt.Sprintf("Classifier judged %d evidence items", len(out.EvidenceAnalysis))
	}
	label := strings.ToLower(assessment.Label())
	pct := int(confidence*100 + 0.5)

	return &Outcome{
		Assessment: assessment,
		Confidence: confidence,
		Reasoning:  reasoning,
		Source:     SourceModel,
		Explanation: model.Explanation{
			Short:  reasoning,
			Medium: fmt.Sprintf("Based on analysis of available evidence, our classifier determined this claim is %s with %d%% confidence.", label, pct),
			Long:   fmt.Sprintf("Our classifier analyzed the claim %q against %d evidence items. Result: %s with %d%% confidence. %s", req.Claim, len(req.Evidence), label, pct, reasoning),
			ELI5:   fmt.Sprintf("The computer looked at this claim and compared it with what it knows. It thinks this claim is %s.", label),
		},
	}, nil
}

// aggregateStances averages confidence per stance. The winning stance must
// beat the other and exceed 0.6. Without per-evidence analysis the
// classifier's own verdict is used under the same threshold.
func aggregateStances(out *ClassifierOutput) (model.Assessment, float64, bool) {
	if len(out.EvidenceAnalysis) == 0 {
		a := model.ParseAssessment(out.Verdict)
		if a == model.NotEnoughInfo || out.Confidence <= modelWinThreshold {
			return model.NotEnoughInfo, 0, false
		}
		return a, out.Confidence, true
	}

	var supSum, refSum float64
	var supN, refN int
	for _, ea := range out.EvidenceAnalysis {
		switch model.ParseStance(ea.Stance) {
		case model.StanceSupports:
			supSum += ea.Confidence
			supN++
		case model.StanceRefutes:
			refSum += ea.Confidence
			refN++
		}
	}

	var support, refute float64
	if supN > 0 {
		support = supSum / float64(supN)
	}
	if refN > 0 {
		refute = refSum / float64(refN)
	}

	switch {
	case support > refute && support > modelWinThreshold:
		return model.Supported, support, true
	case refute > support && refute > modelWinThreshold:
		return model.Refuted, refute, true
	}
	return model.NotEnoughInfo, 0, false
}
