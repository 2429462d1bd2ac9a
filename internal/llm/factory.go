package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
)

// apiKeyEnv maps provider names to the environment variable holding their credential
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	switch normalizeProvider(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic":
		return NewAnthropicProvider(config)
	case "gemini":
		return NewGeminiProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, gemini, ollama)", config.Provider)
	}
}

func normalizeProvider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "claude":
		return "anthropic"
	case "google":
		return "gemini"
	}
	return name
}

// ConfigFromModel builds the provider config for one named provider
func ConfigFromModel(name string, llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	name = normalizeProvider(name)
	cfg := Config{
		Provider:   name,
		Model:      llmCfg.Models[name],
		APIKey:     llmCfg.APIKeys[name],
		BaseURL:    llmCfg.BaseURLs[name],
		Timeout:    llmCfg.Timeout,
		MaxTokens:  llmCfg.MaxTokens,
		HTTPProxy:  httpCfg.HTTPProxy,
		HTTPSProxy: httpCfg.HTTPSProxy,
		NoProxy:    httpCfg.NoProxy,
	}
	if cfg.APIKey == "" {
		if env, ok := apiKeyEnv[name]; ok {
			cfg.APIKey = os.Getenv(env)
		}
	}
	return cfg
}

// NewGatewayFromConfig builds the primary provider and its fallbacks.
// Returns nil, nil when no primary provider is configured.
// A missing primary credential is an error; a fallback that cannot be built is skipped.
func NewGatewayFromConfig(cfg *model.Config, log logger.Logger) (*Gateway, error) {
	log = logger.OrNop(log)
	primary := normalizeProvider(cfg.LLM.Provider)
	if primary == "" {
		return nil, nil
	}

	first, err := NewProvider(ConfigFromModel(primary, cfg.LLM, cfg.HTTP))
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			return nil, fmt.Errorf("%w (set %s)", err, apiKeyEnv[primary])
		}
		return nil, err
	}
	providers := []Provider{first}

	seen := map[string]bool{primary: true}
	for _, name := range cfg.LLM.Fallbacks {
		name = normalizeProvider(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		p, err := NewProvider(ConfigFromModel(name, cfg.LLM, cfg.HTTP))
		if err != nil {
			log.Warn("Skipping fallback LLM provider", logger.String("provider", name), logger.Error(err))
			continue
		}
		providers = append(providers, p)
	}

	return NewGateway(providers, GatewayOptions{
		Retries:  cfg.LLM.Retries,
		Cooldown: cfg.LLM.Cooldown,
	}, log), nil
}
