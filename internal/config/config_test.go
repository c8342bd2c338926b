package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load consults so ambient shell state
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AISENTINEL_DB_PATH", "AISENTINEL_LOG_LEVEL",
		"TWITTER_BEARER_TOKEN",
		"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USER_AGENT",
		"HUGGINGFACE_API_TOKEN", "OPENAI_API_KEY",
		"SLACK_WEBHOOK_URL", "DISCORD_WEBHOOK_URL",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Sentiment.Engine != "lexicon" {
		t.Errorf("Engine = %q", cfg.Sentiment.Engine)
	}
	if got := cfg.Analysis.ParseLookback(); got != 7*24*time.Hour {
		t.Errorf("Lookback = %v", got)
	}
	tax, err := cfg.BuildTaxonomy()
	if err != nil {
		t.Fatalf("BuildTaxonomy: %v", err)
	}
	if tax.Len() == 0 {
		t.Error("default taxonomy is empty")
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  path: /tmp/test.db
schedule:
  collect_interval: 5m
sources:
  reddit:
    enabled: true
    client_id: abc
    client_secret: def
    subreddits: [golang]
sentiment:
  engine: model
alerts:
  min_overall: -0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Path = %q", cfg.Database.Path)
	}
	if got := cfg.Schedule.ParseCollectInterval(); got != 5*time.Minute {
		t.Errorf("CollectInterval = %v", got)
	}
	// Keys absent from the file keep their defaults.
	if got := cfg.Schedule.ParseAnalyzeInterval(); got != 30*time.Minute {
		t.Errorf("AnalyzeInterval = %v", got)
	}
	if len(cfg.Sources.Reddit.Subreddits) != 1 || cfg.Sources.Reddit.Subreddits[0] != "golang" {
		t.Errorf("Subreddits = %v", cfg.Sources.Reddit.Subreddits)
	}
	if cfg.Sentiment.Engine != "model" {
		t.Errorf("Engine = %q", cfg.Sentiment.Engine)
	}
	if cfg.Alerts.MinOverall != -0.5 {
		t.Errorf("MinOverall = %v", cfg.Alerts.MinOverall)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AISENTINEL_DB_PATH", "/data/s.db")
	t.Setenv("TWITTER_BEARER_TOKEN", "bear")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/x")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/data/s.db" {
		t.Errorf("Path = %q", cfg.Database.Path)
	}
	if !cfg.Sources.Twitter.Enabled || cfg.Sources.Twitter.BearerToken != "bear" {
		t.Errorf("Twitter = %+v", cfg.Sources.Twitter)
	}
	if !cfg.Alerts.Slack.Enabled {
		t.Error("Slack not enabled by env")
	}
	if cfg.Sentiment.Engine != "openai" || cfg.Sentiment.OpenAI.APIKey != "sk-test" {
		t.Errorf("Sentiment = %+v", cfg.Sentiment)
	}
	if !cfg.Alerts.Telegram.Enabled || cfg.Alerts.Telegram.ChatID != -100200 {
		t.Errorf("Telegram = %+v", cfg.Alerts.Telegram)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"bad interval", "schedule:\n  collect_interval: every-so-often\n"},
		{"openai without key", "sentiment:\n  engine: openai\n"},
		{"port zero", "server:\n  port: 0\n"},
		{"shadowed taxonomy", "taxonomy:\n  - category: text_chat\n    tools: [GPT, ChatGPT]\n"},
		{"unknown taxonomy category", "taxonomy:\n  - category: spreadsheets\n    tools: [VisiCalc]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildTaxonomyOverride(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
taxonomy:
  - category: coding_dev
    tools: [Sourcegraph Cody, Aider]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tax, err := cfg.BuildTaxonomy()
	if err != nil {
		t.Fatalf("BuildTaxonomy: %v", err)
	}
	if tax.Len() != 2 {
		t.Errorf("Len = %d, want 2", tax.Len())
	}
	if tool, _, ok := tax.Match("switched to aider last month"); !ok || tool != "Aider" {
		t.Errorf("Match = %q %v", tool, ok)
	}
}

func TestParseIntervalFallbacks(t *testing.T) {
	var s ScheduleConfig
	if got := s.ParseCollectInterval(); got != 15*time.Minute {
		t.Errorf("collect fallback = %v", got)
	}
	if got := s.ParseAnalyzeInterval(); got != 30*time.Minute {
		t.Errorf("analyze fallback = %v", got)
	}
	var a AlertsConfig
	if got := a.ParseCooldown(); got != 12*time.Hour {
		t.Errorf("cooldown fallback = %v", got)
	}
}

func TestValidateErrorNamesField(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Level") {
		t.Errorf("error %q does not name the field", err)
	}
}
