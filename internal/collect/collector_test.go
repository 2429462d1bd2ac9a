package collect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
)

type staticChannel struct {
	name     string
	evidence []model.Evidence
	err      error
	panics   bool
}

func (c *staticChannel) Name() string { return c.name }

func (c *staticChannel) Collect(ctx context.Context, claim string) ([]model.Evidence, error) {
	if c.panics {
		panic("channel exploded")
	}
	return c.evidence, c.err
}

func ev(url, snippet string, relevance float64, method model.CollectionMethod) model.Evidence {
	return model.Evidence{URL: url, Snippet: snippet, Relevance: relevance, Method: method, Source: string(method)}
}

func TestCollector_MergesAndIsolatesFailures(t *testing.T) {
	scrape := &staticChannel{name: "scrape", evidence: []model.Evidence{
		ev("https://a.example/1", "first", 0.5, model.MethodScrape),
		ev("https://a.example/2", "second", 0.9, model.MethodScrape),
	}}
	db := &staticChannel{name: "db", evidence: []model.Evidence{
		ev("https://a.example/1", "first again", 0.7, model.MethodDB),
		ev("", "stored snippet", 0.6, model.MethodDB),
	}}
	broken := &staticChannel{name: "api", err: errors.New("quota exceeded")}
	crashing := &staticChannel{name: "crash", panics: true}

	c := NewCollector(5, nil, scrape, db, broken, crashing, nil)
	out, err := c.Collect(context.Background(), "claim")
	require.NoError(t, err)

	require.Len(t, out.Evidence, 3)
	assert.Equal(t, "https://a.example/2", out.Evidence[0].URL)
	assert.Equal(t, "first again", out.Evidence[1].Snippet)
	assert.Equal(t, "stored snippet", out.Evidence[2].Snippet)

	assert.Equal(t, 1, out.Breakdown[model.MethodScrape])
	assert.Equal(t, 2, out.Breakdown[model.MethodDB])
	assert.Len(t, out.Failures, 2)
	assert.Contains(t, out.Failures, "api")
	assert.Contains(t, out.Failures, "crash")
	assert.Equal(t, []string{"scrape", "db"}, out.Sources())
}

func TestCollector_TruncatesToMaxResults(t *testing.T) {
	var items []model.Evidence
	for i := 0; i < 8; i++ {
		items = append(items, ev("", string(rune('a'+i))+" snippet", float64(i)/10, model.MethodScrape))
	}
	c := NewCollector(0, nil, &staticChannel{name: "scrape", evidence: items})

	out, err := c.Collect(context.Background(), "claim")
	require.NoError(t, err)
	require.Len(t, out.Evidence, 5)
	assert.InDelta(t, 0.7, out.Evidence[0].Relevance, 1e-9)
}

func TestCollector_AllChannelsEmpty(t *testing.T) {
	c := NewCollector(5, nil, NoopAPISource{}, &staticChannel{name: "scrape"})
	out, err := c.Collect(context.Background(), "claim")
	require.NoError(t, err)
	assert.Empty(t, out.Evidence)
	assert.Empty(t, out.Failures)
}

func TestCollector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(5, nil, &staticChannel{name: "scrape"})
	_, err := c.Collect(ctx, "claim")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeFinder struct {
	claims  []model.Claim
	err     error
	minSeen float64
}

func (f *fakeFinder) FindSimilarClaims(ctx context.Context, text string, minSimilarity float64) ([]model.Claim, error) {
	f.minSeen = minSimilarity
	return f.claims, f.err
}

func TestStoreSource_ReusesEvidence(t *testing.T) {
	finder := &fakeFinder{claims: []model.Claim{
		{ID: "c1", Evidence: []model.Evidence{
			{ID: "old", Source: "Snopes", URL: "https://snopes.example/x", Snippet: "debunked", Method: model.MethodScrape, Relevance: 0.8},
		}},
		{ID: "c2"},
	}}

	src := NewStoreSource(finder, 0)
	out, err := src.Collect(context.Background(), "vaccines cause autism")
	require.NoError(t, err)

	assert.Equal(t, 0.6, finder.minSeen)
	require.Len(t, out, 1)
	assert.Equal(t, model.MethodDB, out[0].Method)
	assert.Equal(t, "c1", out[0].SourceClaimID)
	assert.Equal(t, "Snopes", out[0].Source)
	assert.NotEqual(t, "old", out[0].ID)
	assert.Equal(t, "db", src.Name())
}

func TestStoreSource_Error(t *testing.T) {
	src := NewStoreSource(&fakeFinder{err: errors.New("db locked")}, 0.7)
	_, err := src.Collect(context.Background(), "claim")
	assert.ErrorContains(t, err, "db locked")
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - name: Local
    search_url: https://checks.example.org/find?q={query}
    selectors:
      articles: .item
      title: h3 a
`), 0o644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://checks.example.org", sources[0].BaseURL)
	assert.Equal(t, "h3 a", sources[0].Selectors.Link)
	assert.Equal(t, "https://checks.example.org/find?q=earth+flat", sources[0].SearchFor([]string{"earth", "flat"}))
}

func TestLoadSources_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: NoSelectors\n    search_url: https://x.example/?q={query}\n"), 0o644))

	_, err := LoadSources(path)
	assert.Error(t, err)
}

func TestDefaultSources(t *testing.T) {
	names := map[string]bool{}
	for _, s := range DefaultSources() {
		names[s.Name] = true
		assert.Contains(t, s.SearchURL, "{query}")
	}
	for _, want := range []string{"Snopes", "PolitiFact", "FactCheck.org", "AFP Fact Check", "Alt News", "Boom Live"} {
		assert.True(t, names[want], want)
	}
}
