package llm

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Chat sends the conversation and returns the assistant's reply.
	// Errors are *ProviderError values classified by kind.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Role tags a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message
type Message struct {
	Role    Role
	Content string
}

// ChatRequest contains the input for a single provider call
type ChatRequest struct {
	Messages []Message

	// Model overrides the provider's configured model
	Model string

	Temperature float64
	MaxTokens   int

	// JSON asks for a JSON object when the provider has a native mode for it
	JSON bool
}

// ChatResponse contains the provider's reply
type ChatResponse struct {
	Text       string
	Provider   string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "gemini", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic/Gemini
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, test servers)
	BaseURL string

	// Timeout for each API request
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

const defaultTimeout = 30 * time.Second

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   defaultTimeout,
		MaxTokens: 1000,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

func (c Config) maxTokens(req ChatRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func (c Config) model(req ChatRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

// splitSystem separates system prompts from the conversation for APIs that take them apart
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
