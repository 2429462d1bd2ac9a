package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/collect"
	"github.com/ppiankov/veritas/internal/inference"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/model"
)

type fakeCollector struct {
	evidence []model.Evidence
	err      error
	panics   bool
	calls    int
}

func (f *fakeCollector) Collect(ctx context.Context, claim string) (*collect.Collection, error) {
	f.calls++
	if f.panics {
		panic("collector exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	breakdown := map[model.CollectionMethod]int{}
	for _, ev := range f.evidence {
		breakdown[ev.Method]++
	}
	return &collect.Collection{Evidence: f.evidence, Breakdown: breakdown}, nil
}

type fakeStore struct {
	saved []*model.Claim
	err   error
}

func (f *fakeStore) SaveClaim(ctx context.Context, c *model.Claim) error {
	if f.err != nil {
		return f.err
	}
	c.ID = "claim-1"
	f.saved = append(f.saved, c)
	return nil
}

type recordingTier struct {
	requests []inference.Request
}

func (r *recordingTier) Name() string { return "recording" }

func (r *recordingTier) TryClassify(ctx context.Context, req inference.Request) (*inference.Outcome, error) {
	r.requests = append(r.requests, req)
	return nil, nil
}

type fakeGenerator struct {
	obj map[string]any
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, messages []llm.Message, opts llm.Options) (map[string]any, error) {
	return f.obj, nil
}

func defaultEngine(t *testing.T) *inference.Engine {
	t.Helper()
	engine, err := inference.NewDefaultEngine(model.InferenceConfig{}, nil, nil)
	require.NoError(t, err)
	return engine
}

func TestVerify_KnownTrueClaim(t *testing.T) {
	p := New(&fakeCollector{}, defaultEngine(t), nil, model.FlagPolicy{}, nil)

	result, err := p.Verify(context.Background(), "The Earth revolves around the Sun", Options{})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictTrue, result.Verdict)
	assert.Equal(t, model.Supported, result.Assessment)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
	assert.Equal(t, inference.SourceExact, result.Pipeline.VerificationMethod)
	assert.Equal(t, "✅ Supported (Confidence: 95%)", result.Classification)
	assert.Equal(t, 95, result.ConfidencePercent)
	assert.Equal(t, "Supported with 95% confidence", result.Explanation.Short)
	assert.Equal(t, 5, result.Pipeline.StepsCompleted)
	assert.Contains(t, result.Pipeline.StageTimingsMs, StageInference)
	assert.Empty(t, result.Error)
}

func TestVerify_KnownFalseClaim(t *testing.T) {
	p := New(&fakeCollector{}, defaultEngine(t), nil, model.FlagPolicy{}, nil)

	result, err := p.Verify(context.Background(), "Vaccines cause autism", Options{})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictFalse, result.Verdict)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
	assert.Equal(t, "❌", result.Emoji)
}

func TestVerify_NoInformation(t *testing.T) {
	p := New(&fakeCollector{}, defaultEngine(t), nil, model.FlagPolicy{}, nil)

	result, err := p.Verify(context.Background(), "Purple elephants govern Neptune", Options{})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictUnverified, result.Verdict)
	assert.LessOrEqual(t, result.Confidence, 0.3)
	assert.Equal(t, inference.SourceFallback, result.Pipeline.VerificationMethod)
	assert.Equal(t, "⚪ Not Enough Information (Confidence: 30%)", result.Classification)
	assert.NotNil(t, result.Evidence)
}

func TestVerify_ShortSnippetDropped(t *testing.T) {
	recorder := &recordingTier{}
	collector := &fakeCollector{evidence: []model.Evidence{
		{Source: "Snopes", Snippet: "  short!!\x07 ", Method: model.MethodScrape},
	}}
	p := New(collector, inference.NewEngine(nil, recorder), nil, model.FlagPolicy{}, nil)

	result, err := p.Verify(context.Background(), "Some claim about short snippets", Options{})
	require.NoError(t, err)

	require.Len(t, recorder.requests, 1)
	assert.Empty(t, recorder.requests[0].Evidence)
	assert.Empty(t, result.Evidence)
	assert.Equal(t, 1, result.Pipeline.SourceBreakdown["scrape"])
}

func TestVerify_RetrievesRelevantEvidence(t *testing.T) {
	relevant := model.Evidence{
		Source:  "Snopes",
		Title:   "Vaccines cause autism™",
		Snippet: strings.Repeat("vaccines cause autism ", 6),
		Method:  model.MethodScrape,
	}
	unrelated := model.Evidence{
		Source:  "PolitiFact",
		Title:   "Tax bill",
		Snippet: strings.Repeat("the senate passed a tax bill ", 5),
		Method:  model.MethodScrape,
	}
	recorder := &recordingTier{}
	p := New(&fakeCollector{evidence: []model.Evidence{unrelated, relevant}},
		inference.NewEngine(nil, recorder), nil, model.FlagPolicy{}, nil)

	result, err := p.Verify(context.Background(), "Vaccines cause autism!", Options{Category: "health"})
	require.NoError(t, err)

	require.Len(t, recorder.requests, 1)
	req := recorder.requests[0]
	assert.Equal(t, "vaccines cause autism!", req.Claim)
	assert.Equal(t, model.CategoryHealth, req.Category)
	require.Len(t, req.Evidence, 1)
	assert.Equal(t, "Snopes", req.Evidence[0].Source)
	assert.Equal(t, "Vaccines cause autism", req.Evidence[0].Title)
	assert.Greater(t, req.Evidence[0].Relevance, 0.3)

	assert.Equal(t, []string{"Snopes"}, result.Pipeline.EvidenceSources)
	assert.Len(t, result.Evidence, 1)
}

func TestVerify_EmptyClaim(t *testing.T) {
	p := New(&fakeCollector{}, defaultEngine(t), nil, model.FlagPolicy{}, nil)
	_, err := p.Verify(context.Background(), "   ", Options{})
	assert.ErrorIs(t, err, ErrEmptyClaim)
}

func TestVerify_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		collector *fakeCollector
		reasoning string
	}{
		{"collector error", &fakeCollector{err: errors.New("network down")}, "Verification failed: collect evidence: network down"},
		{"collector panic", &fakeCollector{panics: true}, "Verification failed: panic: collector exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			p := New(tt.collector, defaultEngine(t), store, model.FlagPolicy{}, nil)

			result, err := p.Verify(context.Background(), "The Earth revolves around the Sun", Options{})
			require.NoError(t, err)

			assert.Equal(t, model.NotEnoughInfo, result.Assessment)
			assert.Equal(t, 0.2, result.Confidence)
			assert.Equal(t, tt.reasoning, result.Reasoning)
			assert.Equal(t, "⚪ Not Enough Information (Confidence: 20%)", result.Classification)
			assert.Equal(t, inference.SourceFallback, result.Pipeline.VerificationMethod)
			assert.NotEmpty(t, result.Error)
			assert.Empty(t, store.saved)
		})
	}
}

func TestVerify_Persists(t *testing.T) {
	store := &fakeStore{}
	p := New(&fakeCollector{}, defaultEngine(t), store, model.FlagPolicy{UrgentViews: 100}, nil)

	result, err := p.Verify(context.Background(), "Vaccines cause autism", Options{
		Category: "health",
		Language: "en",
		Metrics:  model.Metrics{Views: 150},
	})
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, "claim-1", result.ClaimID)
	assert.Equal(t, "Vaccines cause autism", saved.Text)
	assert.Equal(t, model.StatusDebunked, saved.Status)
	assert.Equal(t, model.VerdictFalse, saved.Verdict)
	assert.Equal(t, model.CategoryHealth, saved.Category)
	assert.True(t, saved.Flags.Urgent)
	assert.Equal(t, 6, result.Pipeline.StepsCompleted)

	_, err = p.Verify(context.Background(), "Vaccines cause autism", Options{NoPersist: true})
	require.NoError(t, err)
	assert.Len(t, store.saved, 1)
}

func TestVerify_StoreErrorIsSwallowed(t *testing.T) {
	p := New(&fakeCollector{}, defaultEngine(t), &fakeStore{err: errors.New("disk full")}, model.FlagPolicy{}, nil)

	result, err := p.Verify(context.Background(), "Vaccines cause autism", Options{})
	require.NoError(t, err)
	assert.Empty(t, result.ClaimID)
	assert.Equal(t, model.VerdictFalse, result.Verdict)
}

func TestVerify_AIOnly(t *testing.T) {
	gen := &fakeGenerator{obj: map[string]any{"verdict": "supported", "confidence": 0.8, "reasoning": "Well documented."}}
	engine, err := inference.NewDefaultEngine(model.InferenceConfig{}, gen, nil)
	require.NoError(t, err)

	collector := &fakeCollector{}
	store := &fakeStore{}
	p := New(collector, engine, store, model.FlagPolicy{}, nil)

	result, err := p.Verify(context.Background(), "Vaccines cause autism", Options{AIOnly: true})
	require.NoError(t, err)

	assert.Equal(t, inference.SourceGenerative, result.Pipeline.VerificationMethod)
	assert.Equal(t, model.VerdictTrue, result.Verdict)
	assert.Equal(t, 0, collector.calls)
	assert.Empty(t, store.saved)

	withoutModel := New(collector, defaultEngine(t), nil, model.FlagPolicy{}, nil)
	result, err = withoutModel.Verify(context.Background(), "Vaccines cause autism", Options{AIOnly: true})
	require.NoError(t, err)
	assert.Equal(t, inference.SourceFallback, result.Pipeline.VerificationMethod)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Hello, world! a-b", cleanText("  Hello,\n\n world! @#a-b\x00 "))
	assert.Len(t, cleanText(strings.Repeat("x", 600)), 500)
}

func TestRetrieveEvidence_TopFive(t *testing.T) {
	var items []model.Evidence
	for i := 0; i < 8; i++ {
		items = append(items, model.Evidence{Snippet: strings.Repeat("earth flat ", 10+i)})
	}
	got := retrieveEvidence("earth flat", items)
	assert.Len(t, got, 5)
	for _, ev := range got {
		assert.InDelta(t, 1.0, ev.Relevance, 1e-9)
	}
}
