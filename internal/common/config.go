package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Actor       ActorConfig     `toml:"actor"`
	Cache       CacheConfig     `toml:"cache"`
	Resolver    ResolverConfig  `toml:"resolver"`
	Analysis    AnalysisConfig  `toml:"analysis"`
	Costs       CostsConfig     `toml:"costs"`
}

// SchedulerConfig controls the job claim poller.
type SchedulerConfig struct {
	PollInterval  string             `toml:"poll_interval" validate:"required"`  // e.g. "2s" - how often the poller claims the next queued job
	QuotaCooldown string             `toml:"quota_cooldown" validate:"required"` // e.g. "5m" - pause window after a store quota error
	Recurrences   []RecurrenceConfig `toml:"recurrences"`                        // cron-scheduled job submissions
}

// RecurrenceConfig describes a cron-scheduled job submission.
// Each firing enqueues one queued job of the given type for the given owner.
type RecurrenceConfig struct {
	Schedule  string   `toml:"schedule" validate:"required"` // standard 5-field cron expression
	JobType   string   `toml:"job_type" validate:"required"`
	Owner     string   `toml:"owner" validate:"required"`
	Usernames []string `toml:"usernames"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ActorConfig contains the remote actor platform configuration.
// Tokens is the ordered credential pool: index 0 is the primary credential,
// the rest are rotation fallbacks for rate-limited submissions.
type ActorConfig struct {
	BaseURL        string         `toml:"base_url" validate:"required,url"`
	Tokens         []string       `toml:"tokens" validate:"min=1"`
	RequestTimeout string         `toml:"request_timeout"`                 // HTTP timeout per call, e.g. "30s"
	SubmitRate     int            `toml:"submit_rate"`                     // submissions per second across one process
	PollInterval   string         `toml:"poll_interval" validate:"required"` // run status poll cadence, e.g. "15s"
	MaxWait        string         `toml:"max_wait" validate:"required"`      // polling ceiling, e.g. "24h"
	MaxRetries     int            `toml:"max_retries"`                     // transient retry ceiling per remote call
	RetryBackoff   string         `toml:"retry_backoff"`                   // base backoff, doubled per attempt, e.g. "2s"
	Fallback       FallbackConfig `toml:"fallback"`
}

// FallbackConfig is the secondary provider used for exactly one alternate
// execution after the primary pipeline fails.
type FallbackConfig struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	RequestTimeout string `toml:"request_timeout"`
}

// CacheConfig contains fingerprint cache freshness policy.
// TTLHours maps a coarse data type classification to its freshness window.
// PolicyFile optionally points at a YAML file overriding the table, so TTL
// policy can change without a rebuild.
type CacheConfig struct {
	TTLHours   map[string]int `toml:"ttl_hours"`
	PolicyFile string         `toml:"policy_file"`
}

// ResolverConfig bounds placeholder resolution output.
type ResolverConfig struct {
	MaxTargets int `toml:"max_targets"` // cap applied after dedup
}

// AnalysisProvider represents the AI provider type
type AnalysisProvider string

const (
	// AnalysisProviderClaude uses Anthropic Claude API
	AnalysisProviderClaude AnalysisProvider = "claude"
	// AnalysisProviderGemini uses Google Gemini API
	AnalysisProviderGemini AnalysisProvider = "gemini"
)

// AnalysisConfig contains configuration for the audience analysis provider.
type AnalysisConfig struct {
	Provider AnalysisProvider `toml:"provider"`
	Claude   ClaudeConfig     `toml:"claude"`
	Gemini   GeminiConfig     `toml:"gemini"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// CostsConfig contains per-action usage charges recorded by the cost ledger.
type CostsConfig struct {
	ProfileEnrich float64 `toml:"profile_enrich"`
	FollowerList  float64 `toml:"follower_list"`
	Analysis      float64 `toml:"analysis"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in velocity.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Scheduler: SchedulerConfig{
			PollInterval:  "2s",
			QuotaCooldown: "5m",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Actor: ActorConfig{
			BaseURL:        "https://api.apify.com",
			Tokens:         []string{},
			RequestTimeout: "30s",
			SubmitRate:     2,
			PollInterval:   "15s",
			MaxWait:        "24h", // polling ceiling for one actor run
			MaxRetries:     3,
			RetryBackoff:   "2s",
			Fallback: FallbackConfig{
				Enabled:        false,
				RequestTimeout: "60s",
			},
		},
		Cache: CacheConfig{
			TTLHours: map[string]int{
				"profile_snapshot": 48,
				"follower_list":    24,
				"default":          24,
			},
		},
		Resolver: ResolverConfig{
			MaxTargets: 500,
		},
		Analysis: AnalysisConfig{
			Provider: AnalysisProviderClaude,
			Claude: ClaudeConfig{
				Model:       "claude-haiku-3-5-20241022",
				MaxTokens:   8192,
				Timeout:     "5m",
				Temperature: 0.7,
			},
			Gemini: GeminiConfig{
				Model:       "gemini-3-flash-preview",
				Timeout:     "5m",
				Temperature: 0.7,
			},
		},
		Costs: CostsConfig{
			ProfileEnrich: 0.05,
			FollowerList:  0.25,
			Analysis:      0.10,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files.
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if config.Cache.PolicyFile != "" {
		if err := config.applyTTLPolicyFile(config.Cache.PolicyFile); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"scheduler.poll_interval", c.Scheduler.PollInterval},
		{"scheduler.quota_cooldown", c.Scheduler.QuotaCooldown},
		{"actor.poll_interval", c.Actor.PollInterval},
		{"actor.max_wait", c.Actor.MaxWait},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field.name, err)
		}
	}

	return nil
}

// applyTTLPolicyFile merges per-data-type TTL overrides from a YAML policy file.
// The file maps data type names to TTL hours:
//
//	profile_snapshot: 72
//	follower_list: 12
func (c *Config) applyTTLPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read TTL policy file %s: %w", path, err)
	}

	overrides := map[string]int{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse TTL policy file %s: %w", path, err)
	}

	if c.Cache.TTLHours == nil {
		c.Cache.TTLHours = map[string]int{}
	}
	for dataType, hours := range overrides {
		if hours > 0 {
			c.Cache.TTLHours[dataType] = hours
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VELOCITY_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Scheduler configuration
	if pollInterval := os.Getenv("VELOCITY_SCHEDULER_POLL_INTERVAL"); pollInterval != "" {
		config.Scheduler.PollInterval = pollInterval
	}
	if cooldown := os.Getenv("VELOCITY_SCHEDULER_QUOTA_COOLDOWN"); cooldown != "" {
		config.Scheduler.QuotaCooldown = cooldown
	}

	// Storage configuration
	if badgerPath := os.Getenv("VELOCITY_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("VELOCITY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VELOCITY_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Actor platform configuration
	if baseURL := os.Getenv("VELOCITY_ACTOR_BASE_URL"); baseURL != "" {
		config.Actor.BaseURL = baseURL
	}
	if tokens := os.Getenv("VELOCITY_ACTOR_TOKENS"); tokens != "" {
		parsed := []string{}
		for _, t := range strings.Split(tokens, ",") {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				parsed = append(parsed, trimmed)
			}
		}
		if len(parsed) > 0 {
			config.Actor.Tokens = parsed
		}
	}
	if pollInterval := os.Getenv("VELOCITY_ACTOR_POLL_INTERVAL"); pollInterval != "" {
		config.Actor.PollInterval = pollInterval
	}
	if maxWait := os.Getenv("VELOCITY_ACTOR_MAX_WAIT"); maxWait != "" {
		config.Actor.MaxWait = maxWait
	}
	if maxRetries := os.Getenv("VELOCITY_ACTOR_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Actor.MaxRetries = mr
		}
	}
	if backoff := os.Getenv("VELOCITY_ACTOR_RETRY_BACKOFF"); backoff != "" {
		config.Actor.RetryBackoff = backoff
	}
	if fallbackURL := os.Getenv("VELOCITY_ACTOR_FALLBACK_BASE_URL"); fallbackURL != "" {
		config.Actor.Fallback.BaseURL = fallbackURL
		config.Actor.Fallback.Enabled = true
	}
	if fallbackToken := os.Getenv("VELOCITY_ACTOR_FALLBACK_TOKEN"); fallbackToken != "" {
		config.Actor.Fallback.Token = fallbackToken
	}

	// Cache configuration
	if policyFile := os.Getenv("VELOCITY_CACHE_POLICY_FILE"); policyFile != "" {
		config.Cache.PolicyFile = policyFile
	}

	// Resolver configuration
	if maxTargets := os.Getenv("VELOCITY_RESOLVER_MAX_TARGETS"); maxTargets != "" {
		if mt, err := strconv.Atoi(maxTargets); err == nil && mt > 0 {
			config.Resolver.MaxTargets = mt
		}
	}

	// Analysis configuration
	if provider := os.Getenv("VELOCITY_ANALYSIS_PROVIDER"); provider != "" {
		config.Analysis.Provider = AnalysisProvider(provider)
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Analysis.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("VELOCITY_CLAUDE_API_KEY"); apiKey != "" {
		config.Analysis.Claude.APIKey = apiKey // VELOCITY_ prefix takes priority
	}
	if model := os.Getenv("VELOCITY_CLAUDE_MODEL"); model != "" {
		config.Analysis.Claude.Model = model
	}
	if apiKey := os.Getenv("VELOCITY_GEMINI_API_KEY"); apiKey != "" {
		config.Analysis.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("VELOCITY_GEMINI_MODEL"); model != "" {
		config.Analysis.Gemini.Model = model
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// SchedulerPollInterval returns the parsed claim poll interval.
func (c *Config) SchedulerPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// SchedulerQuotaCooldown returns the parsed quota cooldown window.
func (c *Config) SchedulerQuotaCooldown() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.QuotaCooldown)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ActorPollInterval returns the parsed run status poll interval.
func (c *Config) ActorPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Actor.PollInterval)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// ActorMaxWait returns the parsed polling ceiling.
func (c *Config) ActorMaxWait() time.Duration {
	d, err := time.ParseDuration(c.Actor.MaxWait)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ActorRetryBackoff returns the parsed base backoff for transient retries.
func (c *Config) ActorRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.Actor.RetryBackoff)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// ActorRequestTimeout returns the parsed per-call HTTP timeout.
func (c *Config) ActorRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Actor.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
