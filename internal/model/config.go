package model

import "time"

// Config holds the complete Veritas configuration
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Collector CollectorConfig `yaml:"collector" mapstructure:"collector"`
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Flags     FlagPolicy      `yaml:"flags" mapstructure:"flags"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// LLMConfig selects and tunes the language-model providers
type LLMConfig struct {
	Provider  string            `yaml:"provider" mapstructure:"provider"`   // Primary: openai, anthropic, gemini, ollama, "" (disabled)
	Fallbacks []string          `yaml:"fallbacks" mapstructure:"fallbacks"` // Tried in order after the primary
	Models    map[string]string `yaml:"models" mapstructure:"models"`       // Provider name -> model
	BaseURLs  map[string]string `yaml:"base_urls,omitempty" mapstructure:"base_urls"`
	APIKeys   map[string]string `yaml:"-" mapstructure:"-"` // Filled from the environment only
	Timeout   time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Retries   int               `yaml:"retries" mapstructure:"retries"`
	MaxTokens int               `yaml:"max_tokens" mapstructure:"max_tokens"`
	Cooldown  time.Duration     `yaml:"cooldown" mapstructure:"cooldown"`
}

// HTTPConfig holds outbound HTTP settings shared by the scraper
type HTTPConfig struct {
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ScrapeConfig tunes the fact-checking site scraper
type ScrapeConfig struct {
	Enabled             bool          `yaml:"enabled" mapstructure:"enabled"`
	SourcesFile         string        `yaml:"sources_file,omitempty" mapstructure:"sources_file"`
	Concurrency         int           `yaml:"concurrency" mapstructure:"concurrency"`
	MaxResultsPerSource int           `yaml:"max_results_per_source" mapstructure:"max_results_per_source"`
	DetailFetchCount    int           `yaml:"detail_fetch_count" mapstructure:"detail_fetch_count"`
	MinDelay            time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	MaxDelay            time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	RequestsPerSecond   float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CacheTTL            time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheDir            string        `yaml:"cache_dir,omitempty" mapstructure:"cache_dir"` // Empty keeps pages in memory only
}

// CollectorConfig tunes evidence aggregation
type CollectorConfig struct {
	MaxResults      int     `yaml:"max_results" mapstructure:"max_results"`
	StoreSimilarity float64 `yaml:"store_similarity" mapstructure:"store_similarity"`
}

// InferenceConfig configures the verdict tiers
type InferenceConfig struct {
	FactsFile         string        `yaml:"facts_file,omitempty" mapstructure:"facts_file"`
	ClassifierCommand []string      `yaml:"classifier_command,omitempty" mapstructure:"classifier_command"`
	ClassifierTimeout time.Duration `yaml:"classifier_timeout" mapstructure:"classifier_timeout"`
}

// StoreConfig points at the SQLite database
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ClusterConfig tunes the clustering pass
type ClusterConfig struct {
	BatchSize int     `yaml:"batch_size" mapstructure:"batch_size"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// ScheduleConfig holds cron specs for background agents
type ScheduleConfig struct {
	Cluster        string        `yaml:"cluster" mapstructure:"cluster"`
	Reverify       string        `yaml:"reverify" mapstructure:"reverify"`
	Priority       string        `yaml:"priority" mapstructure:"priority"`
	ReverifyWindow time.Duration `yaml:"reverify_window" mapstructure:"reverify_window"`
	ReverifyLimit  int           `yaml:"reverify_limit" mapstructure:"reverify_limit"`
	ReverifyDelay  time.Duration `yaml:"reverify_delay" mapstructure:"reverify_delay"`
}

// FlagPolicy holds the thresholds that raise urgent/viral flags.
// Zero disables a threshold.
type FlagPolicy struct {
	ViralShares int `yaml:"viral_shares" mapstructure:"viral_shares"`
	UrgentViews int `yaml:"urgent_views" mapstructure:"urgent_views"`
}

// Apply sets flags on the claim from its metrics. Flags are only raised, never cleared.
func (p FlagPolicy) Apply(c *Claim) {
	if p.ViralShares > 0 && c.Metrics.Shares >= p.ViralShares {
		c.Flags.Viral = true
	}
	if p.UrgentViews > 0 && c.Metrics.Views >= p.UrgentViews {
		c.Flags.Urgent = true
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		LLM: LLMConfig{
			Provider:  "", // Disabled by default
			Fallbacks: []string{},
			Models: map[string]string{
				"openai":    "gpt-4o-mini",
				"anthropic": "claude-3-5-haiku-20241022",
				"gemini":    "gemini-1.5-flash",
				"ollama":    "llama3.1:8b",
			},
			Timeout:   30 * time.Second,
			Retries:   2,
			MaxTokens: 1000,
			Cooldown:  time.Minute,
		},
		HTTP: HTTPConfig{
			UserAgent:     "Veritas/0.1 (+https://github.com/ppiankov/veritas)",
			Timeout:       10 * time.Second,
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Scrape: ScrapeConfig{
			Enabled:             true,
			Concurrency:         6,
			MaxResultsPerSource: 5,
			DetailFetchCount:    3,
			MinDelay:            500 * time.Millisecond,
			MaxDelay:            1500 * time.Millisecond,
			RequestsPerSecond:   1,
			CacheTTL:            30 * time.Minute,
		},
		Collector: CollectorConfig{
			MaxResults:      5,
			StoreSimilarity: 0.6,
		},
		Inference: InferenceConfig{
			ClassifierTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Path: "veritas.db",
		},
		Cluster: ClusterConfig{
			BatchSize: 100,
			Threshold: 0.85,
		},
		Schedule: ScheduleConfig{
			Cluster:        "0 * * * *",
			Reverify:       "0 2 * * *",
			Priority:       "30 * * * *",
			ReverifyWindow: 7 * 24 * time.Hour,
			ReverifyLimit:  20,
			ReverifyDelay:  2 * time.Second,
		},
		Flags: FlagPolicy{
			ViralShares: 1000,
			UrgentViews: 100,
		},
	}
}
