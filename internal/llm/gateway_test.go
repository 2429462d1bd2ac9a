package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider replays a scripted list of results
type mockProvider struct {
	name    string
	mu      sync.Mutex
	results []mockResult
	calls   int
}

type mockResult struct {
	text string
	err  error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	r := m.results[i]
	if r.err != nil {
		return nil, r.err
	}
	return &ChatResponse{Text: r.text, Provider: m.name}, nil
}

func kindErr(name string, kind error) error {
	return &ProviderError{Provider: name, Kind: kind, Err: errors.New("scripted")}
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := gatewaySleep
	gatewaySleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { gatewaySleep = orig })
	return &waits
}

func TestGateway_RetriesRateLimitWithBackoff(t *testing.T) {
	waits := noSleep(t)
	p := &mockProvider{name: "openai", results: []mockResult{
		{err: kindErr("openai", ErrRateLimited)},
		{err: kindErr("openai", ErrRateLimited)},
		{text: "done"},
	}}

	g := NewGateway([]Provider{p}, GatewayOptions{Retries: 2}, nil)
	text, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *waits)
}

func TestGateway_FailsOverOnUnauthorizedWithoutRetry(t *testing.T) {
	noSleep(t)
	primary := &mockProvider{name: "anthropic", results: []mockResult{{err: kindErr("anthropic", ErrUnauthorized)}}}
	secondary := &mockProvider{name: "gemini", results: []mockResult{{text: "from gemini"}}}

	g := NewGateway([]Provider{primary, secondary}, GatewayOptions{Retries: 2}, nil)
	resp, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "from gemini", resp.Text)
	assert.Equal(t, 1, primary.calls)
}

func TestGateway_AllProvidersFail(t *testing.T) {
	noSleep(t)
	a := &mockProvider{name: "openai", results: []mockResult{{err: kindErr("openai", ErrUnavailable)}}}
	b := &mockProvider{name: "ollama", results: []mockResult{{err: kindErr("ollama", ErrInvalidResponse)}}}

	g := NewGateway([]Provider{a, b}, GatewayOptions{Retries: 1}, nil)
	_, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestGateway_CooledDownProviderTriedLast(t *testing.T) {
	noSleep(t)
	limited := &mockProvider{name: "openai", results: []mockResult{
		{err: kindErr("openai", ErrRateLimited)},
		{err: kindErr("openai", ErrRateLimited)},
	}}
	backup := &mockProvider{name: "anthropic", results: []mockResult{{text: "backup"}}}

	g := NewGateway([]Provider{limited, backup}, GatewayOptions{Retries: 1, Cooldown: time.Minute}, nil)

	_, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, limited.calls)

	assert.Equal(t, []string{"anthropic", "openai"}, providerNames(g.ordered()))

	_, err = g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, limited.calls, "cooled down provider should not be called while another succeeds")
}

func TestGateway_NoProviders(t *testing.T) {
	g := NewGateway(nil, GatewayOptions{}, nil)
	_, err := g.Chat(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestGateway_GenerateStructured(t *testing.T) {
	p := &mockProvider{name: "openai", results: []mockResult{
		{text: "Here you go:\n```json\n{\"verdict\": \"false\", \"confidence\": 0.8}\n```"},
	}}
	g := NewGateway([]Provider{p}, GatewayOptions{}, nil)

	obj, err := g.GenerateStructured(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "false", obj["verdict"])
	assert.InDelta(t, 0.8, obj["confidence"], 1e-9)
}

func TestGateway_GenerateStructured_Unparseable(t *testing.T) {
	p := &mockProvider{name: "openai", results: []mockResult{{text: "I cannot answer that."}}}
	g := NewGateway([]Provider{p}, GatewayOptions{}, nil)

	obj, err := g.GenerateStructured(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, Options{})
	assert.NoError(t, err)
	assert.Nil(t, obj)
}

func providerNames(ps []Provider) []string {
	var names []string
	for _, p := range ps {
		names = append(names, p.Name())
	}
	return names
}
