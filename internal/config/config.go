package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Log       LogConfig        `yaml:"log"`
	Schedule  ScheduleConfig   `yaml:"schedule"`
	Sources   SourcesConfig    `yaml:"sources"`
	Sentiment SentimentConfig  `yaml:"sentiment"`
	Analysis  AnalysisConfig   `yaml:"analysis"`
	Taxonomy  []taxonomy.Group `yaml:"taxonomy"`
	Alerts    AlertsConfig     `yaml:"alerts"`
	Server    ServerConfig     `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// ScheduleConfig configures collection and analysis intervals.
type ScheduleConfig struct {
	CollectInterval string `yaml:"collect_interval" validate:"omitempty,duration"`
	AnalyzeInterval string `yaml:"analyze_interval" validate:"omitempty,duration"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	d, err := time.ParseDuration(s.CollectInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// ParseAnalyzeInterval returns the analysis interval as time.Duration.
func (s ScheduleConfig) ParseAnalyzeInterval() time.Duration {
	d, err := time.ParseDuration(s.AnalyzeInterval)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// SourcesConfig holds configuration for all data sources. Keywords is
// shared by the search-backed collectors; when empty, the tool names
// from the taxonomy are used.
type SourcesConfig struct {
	Keywords   []string         `yaml:"keywords"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	Reddit     RedditConfig     `yaml:"reddit"`
	Twitter    TwitterConfig    `yaml:"twitter"`
	Synthetic  SyntheticConfig  `yaml:"synthetic"`
}

// HackerNewsConfig for the Hacker News collector.
type HackerNewsConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit" validate:"omitempty,min=1"`
}

// RedditConfig for the Reddit collector.
type RedditConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	UserAgent    string   `yaml:"user_agent"`
	Subreddits   []string `yaml:"subreddits"`
	Limit        int      `yaml:"limit" validate:"omitempty,min=1"`
}

// TwitterConfig for the Twitter/X collector. With a bearer token the
// official search API is used; otherwise accounts are read through a
// Nitter instance.
type TwitterConfig struct {
	Enabled     bool     `yaml:"enabled"`
	BearerToken string   `yaml:"bearer_token"`
	NitterURL   string   `yaml:"nitter_url" validate:"omitempty,url"`
	Accounts    []string `yaml:"accounts"`
	Limit       int      `yaml:"limit" validate:"omitempty,min=1"`
}

// SyntheticConfig for the seeded sample-data generator.
type SyntheticConfig struct {
	Enabled bool  `yaml:"enabled"`
	Count   int   `yaml:"count" validate:"omitempty,min=1"`
	Seed    int64 `yaml:"seed"`
}

// SentimentConfig selects and configures the scoring engine.
type SentimentConfig struct {
	Engine string       `yaml:"engine" validate:"omitempty,oneof=lexicon model openai"`
	Model  ModelConfig  `yaml:"model"`
	OpenAI OpenAIConfig `yaml:"openai"`
}

// ModelConfig for the hosted classifier endpoint.
type ModelConfig struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	ID      string `yaml:"id"`
	Token   string `yaml:"token"`
}

// OpenAIConfig for the OpenAI-backed scorer.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AnalysisConfig configures aggregation runs.
type AnalysisConfig struct {
	Lookback        string   `yaml:"lookback" validate:"omitempty,duration"`
	PrivacyKeywords []string `yaml:"privacy_keywords"`
}

// ParseLookback returns the analysis window as time.Duration.
func (a AnalysisConfig) ParseLookback() time.Duration {
	d, err := time.ParseDuration(a.Lookback)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations and the trigger rule: a
// tool alerts when its trend is declining and its overall score is at
// or below MinOverall, at most once per cooldown window.
type AlertsConfig struct {
	MinOverall float64        `yaml:"min_overall" validate:"min=-1,max=1"`
	Cooldown   string         `yaml:"cooldown" validate:"omitempty,duration"`
	Slack      SlackConfig    `yaml:"slack"`
	Discord    DiscordConfig  `yaml:"discord"`
	Webhook    WebhookConfig  `yaml:"webhook"`
	Telegram   TelegramConfig `yaml:"telegram"`
}

// ParseCooldown returns the per-tool alert cooldown as time.Duration.
func (a AlertsConfig) ParseCooldown() time.Duration {
	d, err := time.ParseDuration(a.Cooldown)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// WebhookConfig for generic signed webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"omitempty,url"`
	Secret  string `yaml:"secret"`
}

// TelegramConfig for Telegram bot alerts.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./aisentinel.db"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Schedule: ScheduleConfig{
			CollectInterval: "15m",
			AnalyzeInterval: "30m",
		},
		Sources: SourcesConfig{
			HackerNews: HackerNewsConfig{Enabled: true, Limit: 100},
			Reddit: RedditConfig{
				Enabled: false,
				Subreddits: []string{
					"MachineLearning", "ArtificialInteligence", "OpenAI", "DataScience",
				},
				Limit: 100,
			},
			Twitter: TwitterConfig{
				Enabled:   false,
				NitterURL: "https://nitter.net",
				Limit:     100,
			},
			Synthetic: SyntheticConfig{Enabled: false, Count: 500},
		},
		Sentiment: SentimentConfig{
			Engine: "lexicon",
			OpenAI: OpenAIConfig{Model: "gpt-4o-mini"},
		},
		Analysis: AnalysisConfig{Lookback: "168h"},
		Alerts: AlertsConfig{
			MinOverall: -0.3,
			Cooldown:   "12h",
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file, applies env var
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, including that the taxonomy
// builds. Tagging cannot run without a valid taxonomy, so this must
// fail before any processing starts.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Sentiment.Engine == "openai" && c.Sentiment.OpenAI.APIKey == "" {
		return fmt.Errorf("sentiment engine openai requires an API key")
	}
	if _, err := c.BuildTaxonomy(); err != nil {
		return fmt.Errorf("invalid taxonomy: %w", err)
	}
	return nil
}

// BuildTaxonomy returns the configured tool catalog, or the built-in
// one when the config does not override it.
func (c *Config) BuildTaxonomy() (*taxonomy.Taxonomy, error) {
	if len(c.Taxonomy) == 0 {
		return taxonomy.Default(), nil
	}
	return taxonomy.New(c.Taxonomy)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		panic(fmt.Sprintf("registering duration validator: %v", err))
	}
	return v
}

// validateDuration accepts any value time.ParseDuration accepts.
func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AISENTINEL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AISENTINEL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TWITTER_BEARER_TOKEN"); v != "" {
		cfg.Sources.Twitter.BearerToken = v
		cfg.Sources.Twitter.Enabled = true
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Sources.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Sources.Reddit.ClientSecret = v
	}
	if v := os.Getenv("REDDIT_USER_AGENT"); v != "" {
		cfg.Sources.Reddit.UserAgent = v
	}
	if v := os.Getenv("HUGGINGFACE_API_TOKEN"); v != "" {
		cfg.Sentiment.Model.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Sentiment.OpenAI.APIKey = v
		cfg.Sentiment.Engine = "openai"
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Alerts.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Alerts.Telegram.ChatID = id
		}
	}
	if os.Getenv("TELEGRAM_BOT_TOKEN") != "" && cfg.Alerts.Telegram.ChatID != 0 {
		cfg.Alerts.Telegram.Enabled = true
	}
}
