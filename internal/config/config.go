package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "POSTPILOT_CONFIG"
	databasePathEnv     = "POSTPILOT_DB_PATH"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	llmAPIKeyEnv        = "LLM_API_KEY"
	executorURLEnv      = "PUBLISH_EXECUTOR_URL"
	executorAPIKeyEnv   = "PUBLISH_EXECUTOR_API_KEY"
)

// Duration wraps time.Duration for YAML decoding of values like "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	HTTP      HTTPConfig      `yaml:"http"`
	Sources   []SourceConfig  `yaml:"sources"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	LLM       LLMConfig       `yaml:"llm"`
	Publish   PublishConfig   `yaml:"publish"`

	// DedupeOverride lets a run treat ledger lookup failures as "not
	// processed". Off by default: a broken ledger risks double posting.
	DedupeOverride bool `yaml:"dedupeOverride"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the SQLite ledger location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines how often the pipeline runs.
type SchedulerConfig struct {
	Every string `yaml:"every"` // daily, hourly, or once
}

// Interval resolves the schedule keyword; zero means run once.
func (s SchedulerConfig) Interval() time.Duration {
	switch s.Every {
	case "daily":
		return 24 * time.Hour
	case "hourly":
		return time.Hour
	default:
		return 0
	}
}

// HTTPConfig groups retry settings shared by all network collaborators.
type HTTPConfig struct {
	RequestTimeout Duration `yaml:"requestTimeout"`
	MaxRetries     int      `yaml:"maxRetries"`
	RetryDelay     Duration `yaml:"retryDelay"`
}

// SourceConfig describes one candidate source and its limits.
type SourceConfig struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"` // hackernews or newsroom
	Enabled  bool     `yaml:"enabled"`
	MaxItems int      `yaml:"maxItems"`
	URL      string   `yaml:"url"`
	Query    string   `yaml:"query"`
	Keywords []string `yaml:"keywords"`
}

// TelegramConfig wires the approval channel transport.
type TelegramConfig struct {
	BotToken        string   `yaml:"botToken"`
	ChatID          string   `yaml:"chatId"`
	ApprovalTimeout Duration `yaml:"approvalTimeout"`
	PollTimeout     Duration `yaml:"pollTimeout"`
}

// LLMConfig defines the summarization service endpoint.
type LLMConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Model           string `yaml:"model"`
	APIKey          string `yaml:"apiKey"`
	SystemPrompt    string `yaml:"systemPrompt"`
	MaxContentWords int    `yaml:"maxContentWords"`
}

// PublishConfig describes the publish executor sidecar and text decoration.
type PublishConfig struct {
	ExecutorURL string `yaml:"executorUrl"`
	APIKey      string `yaml:"apiKey"`
	Prefix      string `yaml:"prefix"`
	Suffix      string `yaml:"suffix"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(executorURLEnv); v != "" {
		c.Publish.ExecutorURL = v
	}

	if v := os.Getenv(executorAPIKeyEnv); v != "" {
		c.Publish.APIKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.Every != "" {
		base.Scheduler = override.Scheduler
	}

	if override.HTTP.RequestTimeout != 0 {
		base.HTTP.RequestTimeout = override.HTTP.RequestTimeout
	}
	if override.HTTP.MaxRetries != 0 {
		base.HTTP.MaxRetries = override.HTTP.MaxRetries
	}
	if override.HTTP.RetryDelay != 0 {
		base.HTTP.RetryDelay = override.HTTP.RetryDelay
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}
	if override.Telegram.ApprovalTimeout != 0 {
		base.Telegram.ApprovalTimeout = override.Telegram.ApprovalTimeout
	}
	if override.Telegram.PollTimeout != 0 {
		base.Telegram.PollTimeout = override.Telegram.PollTimeout
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.MaxContentWords != 0 {
		base.LLM.MaxContentWords = override.LLM.MaxContentWords
	}

	if override.Publish.ExecutorURL != "" {
		base.Publish.ExecutorURL = override.Publish.ExecutorURL
	}
	if override.Publish.APIKey != "" {
		base.Publish.APIKey = override.Publish.APIKey
	}
	if override.Publish.Prefix != "" {
		base.Publish.Prefix = override.Publish.Prefix
	}
	if override.Publish.Suffix != "" {
		base.Publish.Suffix = override.Publish.Suffix
	}

	if override.DedupeOverride {
		base.DedupeOverride = true
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{Path: "postpilot.db"},
		Scheduler: SchedulerConfig{Every: "once"},
		HTTP: HTTPConfig{
			RequestTimeout: Duration(15 * time.Second),
			MaxRetries:     3,
			RetryDelay:     Duration(5 * time.Second),
		},
		Telegram: TelegramConfig{
			ApprovalTimeout: Duration(30 * time.Minute),
			PollTimeout:     Duration(25 * time.Second),
		},
		LLM: LLMConfig{
			Endpoint:        "https://api.openai.com/v1/chat/completions",
			Model:           "gpt-4o-mini",
			SystemPrompt:    "You write short, engaging social-media summaries of technology articles.",
			MaxContentWords: 1500,
		},
		Publish: PublishConfig{
			ExecutorURL: "http://localhost:9222",
		},
		Sources: []SourceConfig{
			{
				Name:     "hackernews",
				Kind:     "hackernews",
				Enabled:  true,
				MaxItems: 5,
				URL:      "https://hn.algolia.com/api/v1/search_by_date",
				Query:    "AI OR artificial intelligence OR machine learning OR LLM",
				Keywords: []string{"ai", "artificial intelligence", "machine learning", "llm", "deep learning", "neural network"},
			},
			{
				Name:     "techcrunch-ai",
				Kind:     "newsroom",
				Enabled:  true,
				MaxItems: 3,
				URL:      "https://techcrunch.com/category/artificial-intelligence/",
			},
		},
	}
}
