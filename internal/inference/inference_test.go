package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/model"
)

func TestDefaultFacts(t *testing.T) {
	facts := DefaultFacts()
	assert.Contains(t, facts[model.CategoryScience].True, "The Earth revolves around the Sun")
	assert.Contains(t, facts[model.CategoryHealth].False, "Vaccines cause autism")
	assert.True(t, facts[model.CategoryOther].Empty())
}

func TestParseFacts_NormalizesCategories(t *testing.T) {
	facts, err := ParseFacts([]byte(`
health:
  false: [Garlic cures the flu]
health_medicine:
  true: [Sleep matters]
astrology:
  false: [Stars decide your job]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Garlic cures the flu"}, facts[model.CategoryHealth].False)
	assert.Equal(t, []string{"Sleep matters"}, facts[model.CategoryHealth].True)
	assert.Equal(t, []string{"Stars decide your job"}, facts[model.CategoryOther].False)
}

func TestExactTier(t *testing.T) {
	tier := NewExactTier(DefaultFacts())
	ctx := context.Background()

	out, err := tier.TryClassify(ctx, Request{Claim: "The Earth revolves around the Sun", Category: model.CategoryOther})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, model.Supported, out.Assessment)
	assert.Equal(t, 0.95, out.Confidence)
	assert.Equal(t, SourceExact, out.Source)

	out, err = tier.TryClassify(ctx, Request{Claim: "vaccines cause autism", Category: model.CategoryOther})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, model.Refuted, out.Assessment)
	assert.Equal(t, 0.94, out.Confidence)

	// A category with entries is searched alone
	out, err = tier.TryClassify(ctx, Request{Claim: "The Earth is flat", Category: model.CategoryHealth})
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = tier.TryClassify(ctx, Request{Claim: "Bananas are blue", Category: model.CategoryOther})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestFuzzyTier(t *testing.T) {
	tier := NewFuzzyTier(DefaultFacts())

	out, err := tier.TryClassify(context.Background(), Request{Claim: "the moon landing was faked by nasa"})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, model.Refuted, out.Assessment)
	assert.InDelta(t, 0.5+0.4*5.0/7.0, out.Confidence, 1e-9)
	assert.Equal(t, SourceSimilarity, out.Source)

	out, err = tier.TryClassify(context.Background(), Request{Claim: "The Earth is flat", Category: model.CategoryHealth})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 0.85, out.Confidence)

	out, err = tier.TryClassify(context.Background(), Request{Claim: "completely unrelated words here"})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestPatternTier(t *testing.T) {
	tests := []struct {
		claim string
		want  model.Assessment
		conf  float64
	}{
		{"Smoking definitely increases your risk of lung cancer", model.Supported, 0.75},
		{"Water boils at 100 degrees celsius", model.Supported, 0.75},
		{"Scientists admit the earth is actually flat", model.Refuted, 0.80},
		{"COVID vaccines contain a tracking microchip", model.Refuted, 0.80},
	}

	for _, tt := range tests {
		t.Run(tt.claim, func(t *testing.T) {
			out, err := PatternTier{}.TryClassify(context.Background(), Request{Claim: tt.claim})
			require.NoError(t, err)
			require.NotNil(t, out)
			assert.Equal(t, tt.want, out.Assessment)
			assert.Equal(t, tt.conf, out.Confidence)
		})
	}

	out, err := PatternTier{}.TryClassify(context.Background(), Request{Claim: "The stock market rose today"})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func stances(pairs ...any) []EvidenceStance {
	var out []EvidenceStance
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, EvidenceStance{Stance: pairs[i].(string), Confidence: pairs[i+1].(float64)})
	}
	return out
}

func TestAggregateStances(t *testing.T) {
	tests := []struct {
		name   string
		out    ClassifierOutput
		want   model.Assessment
		conf   float64
		wantOK bool
	}{
		{"support wins", ClassifierOutput{EvidenceAnalysis: stances("supports", 0.9, "supports", 0.8, "refutes", 0.7)}, model.Supported, 0.85, true},
		{"refute wins", ClassifierOutput{EvidenceAnalysis: stances("refutes", 0.9, "neutral", 0.99)}, model.Refuted, 0.9, true},
		{"below threshold", ClassifierOutput{EvidenceAnalysis: stances("supports", 0.55)}, model.NotEnoughInfo, 0, false},
		{"tie", ClassifierOutput{EvidenceAnalysis: stances("supports", 0.8, "refutes", 0.8)}, model.NotEnoughInfo, 0, false},
		{"verdict only", ClassifierOutput{Verdict: "refuted", Confidence: 0.7}, model.Refuted, 0.7, true},
		{"verdict only nei", ClassifierOutput{Verdict: "not_enough_info", Confidence: 0.9}, model.NotEnoughInfo, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf, ok := aggregateStances(&tt.out)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, tt.conf, conf, 1e-9)
		})
	}
}

func TestModelTier(t *testing.T) {
	var seen ClassifierInput
	classifier := StaticClassifier{Fn: func(ctx context.Context, in ClassifierInput) (*ClassifierOutput, error) {
		seen = in
		return &ClassifierOutput{
			Verdict:          "supported",
			Reasoning:        "Two sources agree",
			EvidenceAnalysis: stances("supports", 0.99, "supports", 0.99),
		}, nil
	}}
	tier := NewModelTier(classifier)

	out, err := tier.TryClassify(context.Background(), Request{Claim: "claim"})
	require.NoError(t, err)
	assert.Nil(t, out, "abstains without evidence")

	var evidence []model.Evidence
	for i := 0; i < 7; i++ {
		evidence = append(evidence, model.Evidence{Source: "Snopes", Snippet: "text"})
	}
	out, err = tier.TryClassify(context.Background(), Request{Claim: "claim", Evidence: evidence})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, model.Supported, out.Assessment)
	assert.Equal(t, 0.95, out.Confidence)
	assert.Equal(t, SourceModel, out.Source)
	assert.Len(t, seen.Evidence, 5)
	assert.Equal(t, "0", seen.Evidence[0].ID)
}

func TestModelTier_ClassifierError(t *testing.T) {
	tier := NewModelTier(StaticClassifier{Fn: func(ctx context.Context, in ClassifierInput) (*ClassifierOutput, error) {
		return nil, errors.New("model crashed")
	}})
	_, err := tier.TryClassify(context.Background(), Request{Claim: "c", Evidence: []model.Evidence{{Snippet: "x"}}})
	assert.Error(t, err)
}

func TestNewClassifierInput_TruncatesClaim(t *testing.T) {
	long := make([]rune, 600)
	for i := range long {
		long[i] = 'a'
	}
	in := NewClassifierInput(Request{Claim: string(long)})
	assert.Len(t, in.Claim, maxClassifierClaimChars)
	assert.NotNil(t, in.Evidence)
}

func TestEvidenceRef_Unmarshal(t *testing.T) {
	var out ClassifierOutput
	err := json.Unmarshal([]byte(`{"verdict":"refuted","confidence":0.8,"evidence_analysis":[{"evidence_id":2,"stance":"refutes","confidence":0.8},{"evidence_id":"ev-1","stance":"supports","confidence":0.4}]}`), &out)
	require.NoError(t, err)
	require.Len(t, out.EvidenceAnalysis, 2)
	assert.Equal(t, EvidenceRef("2"), out.EvidenceAnalysis[0].EvidenceID)
	assert.Equal(t, EvidenceRef("ev-1"), out.EvidenceAnalysis[1].EvidenceID)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestProcessClassifier(t *testing.T) {
	requireShell(t)

	c, err := NewProcessClassifier([]string{"sh", "-c",
		`cat > /dev/null; echo '{"verdict":"refuted","confidence":0.82,"reasoning":"ok","evidence_analysis":[]}'`}, time.Second*5)
	require.NoError(t, err)

	out, err := c.Classify(context.Background(), ClassifierInput{Claim: "x"})
	require.NoError(t, err)
	assert.Equal(t, "refuted", out.Verdict)
	assert.Equal(t, 0.82, out.Confidence)
}

func TestProcessClassifier_Failures(t *testing.T) {
	requireShell(t)

	exit, err := NewProcessClassifier([]string{"sh", "-c", "echo boom >&2; exit 3"}, time.Second*5)
	require.NoError(t, err)
	_, err = exit.Classify(context.Background(), ClassifierInput{Claim: "x"})
	assert.ErrorContains(t, err, "boom")

	garbage, err := NewProcessClassifier([]string{"sh", "-c", "cat > /dev/null; echo not-json"}, time.Second*5)
	require.NoError(t, err)
	_, err = garbage.Classify(context.Background(), ClassifierInput{Claim: "x"})
	assert.ErrorContains(t, err, "decode classifier output")

	slow, err := NewProcessClassifier([]string{"sh", "-c", "exec sleep 5"}, 100*time.Millisecond)
	require.NoError(t, err)
	_, err = slow.Classify(context.Background(), ClassifierInput{Claim: "x"})
	assert.ErrorIs(t, err, ErrClassifierTimeout)

	_, err = NewProcessClassifier(nil, 0)
	assert.Error(t, err)
}

type fakeGenerator struct {
	obj      map[string]any
	err      error
	messages []llm.Message
	opts     llm.Options
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, messages []llm.Message, opts llm.Options) (map[string]any, error) {
	f.messages = messages
	f.opts = opts
	return f.obj, f.err
}

func TestGenerativeTier(t *testing.T) {
	gen := &fakeGenerator{obj: map[string]any{
		"verdict":      "refuted",
		"confidence":   "0.98",
		"reasoning":    "No credible study links them.",
		"key_facts":    []any{"Large cohort studies", "Retracted paper"},
		"sources_used": "medical research",
		"caveats":      nil,
	}}
	tier := NewGenerativeTier(gen)

	out, err := tier.TryClassify(context.Background(), Request{Claim: "Vaccines cause autism"})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, model.Refuted, out.Assessment)
	assert.Equal(t, 0.9, out.Confidence)
	assert.Equal(t, SourceGenerative, out.Source)
	assert.Equal(t, "No credible study links them.\n\nKey Facts: Large cohort studies; Retracted paper\n\nKnowledge Sources: medical research", out.Reasoning)

	require.Len(t, gen.messages, 2)
	assert.Equal(t, llm.RoleSystem, gen.messages[0].Role)
	assert.Contains(t, gen.messages[1].Content, `"Vaccines cause autism"`)
	assert.NotContains(t, gen.messages[1].Content, "EVIDENCE")
	assert.True(t, gen.opts.JSON)
	assert.Equal(t, 0.1, gen.opts.Temperature)
}

func TestGenerativeTier_PromptCarriesEvidence(t *testing.T) {
	gen := &fakeGenerator{obj: map[string]any{"verdict": "refuted", "confidence": 0.8}}

	evidence := make([]model.Evidence, 7)
	for i := range evidence {
		evidence[i] = model.Evidence{Source: "Snopes", Title: fmt.Sprintf("title-%d", i), Snippet: fmt.Sprintf("snippet-%d", i)}
	}
	evidence[0].Snippet = "Large cohort studies found no link between vaccination and autism."

	_, err := NewGenerativeTier(gen).TryClassify(context.Background(), Request{Claim: "Vaccines cause autism", Evidence: evidence})
	require.NoError(t, err)

	require.Len(t, gen.messages, 2)
	prompt := gen.messages[1].Content
	assert.Contains(t, prompt, "EVIDENCE")
	assert.Contains(t, prompt, "Large cohort studies found no link between vaccination and autism.")
	assert.Contains(t, prompt, "[Snopes] title-0")
	assert.Contains(t, prompt, "snippet-4")
	assert.NotContains(t, prompt, "snippet-5")
}

func TestGenerativeTier_Abstains(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"not enough info", &fakeGenerator{obj: map[string]any{"verdict": "not_enough_info", "confidence": 0.9}}},
		{"no object", &fakeGenerator{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewGenerativeTier(tt.gen).TryClassify(context.Background(), Request{Claim: "x"})
			require.NoError(t, err)
			assert.Nil(t, out)
		})
	}

	_, err := NewGenerativeTier(&fakeGenerator{err: llm.ErrAllProvidersFailed}).TryClassify(context.Background(), Request{Claim: "x"})
	assert.ErrorIs(t, err, llm.ErrAllProvidersFailed)
}

type scriptedTier struct {
	name  string
	out   *Outcome
	err   error
	calls int
}

func (s *scriptedTier) Name() string { return s.name }

func (s *scriptedTier) TryClassify(ctx context.Context, req Request) (*Outcome, error) {
	s.calls++
	return s.out, s.err
}

func TestEngine_FirstAnswerWins(t *testing.T) {
	failing := &scriptedTier{name: "broken", err: errors.New("boom")}
	abstain := &scriptedTier{name: "quiet"}
	answer := &scriptedTier{name: "answer", out: &Outcome{Assessment: model.Refuted, Confidence: 1.4}}
	later := &scriptedTier{name: "later", out: &Outcome{Assessment: model.Supported, Confidence: 0.5}}

	engine := NewEngine(nil, failing, abstain, answer, nil, later)
	out := engine.Classify(context.Background(), Request{Claim: "x"})

	assert.Equal(t, model.Refuted, out.Assessment)
	assert.Equal(t, 1.0, out.Confidence)
	assert.Equal(t, "answer", out.Source)
	assert.Equal(t, 0, later.calls)
	assert.Equal(t, []string{"broken", "quiet", "answer", "later"}, engine.Tiers())
}

func TestEngine_Fallback(t *testing.T) {
	engine := NewEngine(nil, &scriptedTier{name: "quiet"})
	out := engine.Classify(context.Background(), Request{Claim: "x"})
	assert.Equal(t, FallbackOutcome(), out)
	assert.Equal(t, model.NotEnoughInfo, out.Assessment)
	assert.Equal(t, 0.3, out.Confidence)
}

func TestEngine_ExactBeatsEverything(t *testing.T) {
	gen := &fakeGenerator{obj: map[string]any{"verdict": "refuted", "confidence": 0.9}}
	engine, err := NewDefaultEngine(model.InferenceConfig{}, gen, nil)
	require.NoError(t, err)

	out := engine.Classify(context.Background(), Request{Claim: "the earth revolves around the sun", Category: model.CategoryOther})
	assert.Equal(t, SourceExact, out.Source)
	assert.Equal(t, model.Supported, out.Assessment)
	assert.Nil(t, gen.messages)

	assert.Equal(t, []string{SourceExact, SourceSimilarity, SourcePattern, SourceGenerative}, engine.Tiers())
	assert.Equal(t, []string{SourceGenerative}, engine.Only(SourceGenerative).Tiers())
}
