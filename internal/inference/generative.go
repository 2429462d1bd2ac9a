package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/model"
)

const generativeMaxConfidence = 0.9

// StructuredGenerator produces a JSON object from a conversation
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, messages []llm.Message, opts llm.Options) (map[string]any, error)
}

const factCheckSystemPrompt = "You are an expert fact-checker with comprehensive world knowledge. " +
	"You provide accurate, well-reasoned verdicts on claims using your extensive knowledge base covering science, history, current events, and more. " +
	"You are confident in well-established facts and clearly identify misinformation."

const factCheckPrompt = `You are an expert fact-checker. Analyze this claim and determine if it's TRUE, FALSE, or UNCERTAIN.

CLAIM: %q
%s
INSTRUCTIONS:
- Use "supported" for TRUE claims (well-established facts, scientific consensus)
- Use "refuted" for FALSE claims (debunked, contradicts facts)
- Use "not_enough_info" ONLY if genuinely uncertain
- Confidence: 0.85-0.99 (very high), 0.70-0.84 (high), 0.55-0.69 (moderate)

Respond with ONLY valid JSON:
{
  "verdict": "supported" | "refuted" | "not_enough_info",
  "confidence": 0.0-1.0,
  "reasoning": "Brief explanation why this is true/false with key facts",
  "key_facts": "Main facts supporting your verdict",
  "sources_used": "Type of knowledge used",
  "caveats": "Important context or limitations"
}`

// aiVerdict is the structured answer requested from the model
type aiVerdict struct {
	Verdict     string  `mapstructure:"verdict"`
	Confidence  float64 `mapstructure:"confidence"`
	Reasoning   any     `mapstructure:"reasoning"`
	KeyFacts    any     `mapstructure:"key_facts"`
	SourcesUsed any     `mapstructure:"sources_used"`
	Caveats     any     `mapstructure:"caveats"`
}

// GenerativeTier asks a language model for a verdict
type GenerativeTier struct {
	gen StructuredGenerator
}

// NewGenerativeTier creates the language-model tier
func NewGenerativeTier(gen StructuredGenerator) *GenerativeTier {
	return &GenerativeTier{gen: gen}
}

func (t *GenerativeTier) Name() string { return SourceGenerative }

// TryClassify abstains on a not_enough_info answer or when no object came back
func (t *GenerativeTier) TryClassify(ctx context.Context, req Request) (*Outcome, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: factCheckSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(factCheckPrompt, req.Claim, evidenceSection(req.Evidence))},
	}

	obj, err := t.gen.GenerateStructured(ctx, messages, llm.Options{Temperature: 0.1, JSON: true})
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	var v aiVerdict
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &v,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(obj); err != nil {
		return nil, fmt.Errorf("decode model verdict: %w", err)
	}

	assessment := model.ParseAssessment(v.Verdict)
	if assessment == model.NotEnoughInfo {
		return nil, nil
	}

	confidence := v.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}
	confidence = min(model.ClampConfidence(confidence), generativeMaxConfidence)

	reasoning := composeReasoning(v)
	label := strings.ToLower(assessment.Label())

	return &Outcome{
		Assessment: assessment,
		Confidence: confidence,
		Reasoning:  reasoning,
		Source:     SourceGenerative,
		Explanation: model.Explanation{
			Short:  textOf(v.Reasoning),
			Medium: fmt.Sprintf("A language model judged this claim %s. %s", label, textOf(v.KeyFacts)),
			Long:   reasoning,
			ELI5:   fmt.Sprintf("A computer that has read a lot thinks this claim is %s.", label),
		},
	}, nil
}

// evidenceSection lists up to maxClassifierEvidence items for the prompt.
// Without evidence the prompt asks for a knowledge-only verdict.
func evidenceSection(evidence []model.Evidence) string {
	if len(evidence) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nEVIDENCE (collected from fact-checking sources; weigh it against your own knowledge):\n")
	for i, ev := range evidence[:min(len(evidence), maxClassifierEvidence)] {
		fmt.Fprintf(&b, "%d. [%s] %s\n   %s\n", i+1, ev.Source, ev.Title, ev.Snippet)
	}
	return b.String()
}

func composeReasoning(v aiVerdict) string {
	keyFacts := textOf(v.KeyFacts)
	if keyFacts == "" {
		keyFacts = "N/A"
	}
	sources := textOf(v.SourcesUsed)
	if sources == "" {
		sources = "AI knowledge base"
	}

	var b strings.Builder
	b.WriteString(textOf(v.Reasoning))
	b.WriteString("\n\nKey Facts: ")
	b.WriteString(keyFacts)
	b.WriteString("\n\nKnowledge Sources: ")
	b.WriteString(sources)
	if caveats := textOf(v.Caveats); caveats != "" {
		b.WriteString("\n\nCaveats: ")
		b.WriteString(caveats)
	}
	return b.String()
}

// textOf flattens a model-supplied value (string, list or other) to text
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := textOf(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(t)
	}
}
