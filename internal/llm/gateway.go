package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ppiankov/veritas/internal/logger"
)

const baseBackoff = 2 * time.Second

// gatewaySleep waits between retries; replaced in tests
var gatewaySleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GatewayOptions tunes retry and failover behaviour
type GatewayOptions struct {
	// Retries per provider for rate-limit and availability failures
	Retries int

	// Cooldown demotes a provider that stayed rate limited after all retries
	Cooldown time.Duration
}

// Options are per-call generation settings
type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
	JSON        bool
}

// Gateway sends a conversation to an ordered list of providers with retry and failover
type Gateway struct {
	providers []Provider
	opts      GatewayOptions
	cooldown  *cache.Cache
	log       logger.Logger
}

// NewGateway creates a gateway over providers, tried in order
func NewGateway(providers []Provider, opts GatewayOptions, log logger.Logger) *Gateway {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	return &Gateway{
		providers: providers,
		opts:      opts,
		cooldown:  cache.New(opts.Cooldown, 2*opts.Cooldown),
		log:       logger.OrNop(log).With(logger.Component("llm-gateway")),
	}
}

// Providers returns the configured provider names in priority order
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

// Chat returns the first successful reply.
// Rate-limit and availability failures are retried with exponential backoff before
// moving on; credential and response failures move on immediately.
func (g *Gateway) Chat(ctx context.Context, messages []Message, opts Options) (*ChatResponse, error) {
	if len(g.providers) == 0 {
		return nil, ErrNoProviders
	}

	req := ChatRequest{
		Messages:    messages,
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		JSON:        opts.JSON,
	}

	var errs []error
	for _, p := range g.ordered() {
		resp, err := g.callWithRetry(ctx, p, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.log.Warn("LLM provider failed", logger.String("provider", p.Name()), logger.Error(err))
		errs = append(errs, err)
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// Generate is Chat returning only the reply text
func (g *Gateway) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	resp, err := g.Chat(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ordered puts providers in cooldown after the healthy ones, keeping relative order
func (g *Gateway) ordered() []Provider {
	healthy := make([]Provider, 0, len(g.providers))
	var cooling []Provider
	for _, p := range g.providers {
		if _, ok := g.cooldown.Get(p.Name()); ok {
			cooling = append(cooling, p)
			continue
		}
		healthy = append(healthy, p)
	}
	return append(healthy, cooling...)
}

func (g *Gateway) callWithRetry(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= g.opts.Retries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			g.log.Debug("Retrying LLM provider",
				logger.String("provider", p.Name()),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff))
			if err := gatewaySleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		resp, err := p.Chat(ctx, req)
		if err == nil {
			g.cooldown.Delete(p.Name())
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
	}

	if errors.Is(lastErr, ErrRateLimited) {
		g.cooldown.SetDefault(p.Name(), struct{}{})
	}
	return nil, lastErr
}

// GenerateStructured asks for a JSON object and decodes the first one found in the reply.
// Returns nil, nil when the reply contains no parseable object.
func (g *Gateway) GenerateStructured(ctx context.Context, messages []Message, opts Options) (map[string]any, error) {
	opts.JSON = true
	text, err := g.Generate(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	obj, ok := ExtractJSONObject(text)
	if !ok {
		g.log.Debug("LLM reply held no JSON object", logger.Int("length", len(strings.TrimSpace(text))))
		return nil, nil
	}
	return obj, nil
}
