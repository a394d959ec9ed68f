package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Research   ResearchConfig   `yaml:"research"`
	Candidates CandidatesConfig `yaml:"candidates"`
	Sources    SourcesConfig    `yaml:"sources"`
	LLM        LLMConfig        `yaml:"llm"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Server     ServerConfig     `yaml:"server"`
	Filter     FilterConfig     `yaml:"filter"`
	Logging    LoggingConfig    `yaml:"logging"`
	Export     ExportConfig     `yaml:"export"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures data collection and snapshot intervals.
type ScheduleConfig struct {
	CollectInterval  string `yaml:"collect_interval"`
	SnapshotInterval string `yaml:"snapshot_interval"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	d, err := time.ParseDuration(s.CollectInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// ParseSnapshotInterval returns the snapshot interval as time.Duration.
func (s ScheduleConfig) ParseSnapshotInterval() time.Duration {
	d, err := time.ParseDuration(s.SnapshotInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ResearchConfig configures keyword research.
type ResearchConfig struct {
	Language        string `yaml:"language"`
	LocID           int    `yaml:"loc_id"`
	ReportsDir      string `yaml:"reports_dir"`
	PrimaryPrefix   string `yaml:"primary_prefix"`
	CommissionBatch int    `yaml:"commission_batch"`
}

// CandidatesConfig holds the candidate thresholds.
type CandidatesConfig struct {
	MinVolume          int `yaml:"min_volume"`
	MaxDomainAuthority int `yaml:"max_domain_authority"`
	Workers            int `yaml:"workers"`
}

// SourcesConfig holds configuration for the external data sources.
type SourcesConfig struct {
	Ubersuggest UbersuggestConfig `yaml:"ubersuggest"`
	Amazon      AmazonConfig      `yaml:"amazon"`
	RSS         RSSConfig         `yaml:"rss"`
	Suggest     SuggestConfig     `yaml:"suggest"`
}

// UbersuggestConfig for the keyword-metrics API. When disabled, reports are
// read from research.reports_dir instead.
type UbersuggestConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// AmazonConfig for the marketplace search scraper.
type AmazonConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// RSSConfig for feed-based niche ideas.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SuggestConfig for search-suggestion niche ideas.
type SuggestConfig struct {
	Enabled bool     `yaml:"enabled"`
	BaseURL string   `yaml:"base_url"`
	Country string   `yaml:"country"`
	Seeds   []string `yaml:"seeds"`
}

// LLMConfig configures the language model used for ideas and commissions.
type LLMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // custom endpoint (optional)
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// FilterConfig configures niche idea filtering.
type FilterConfig struct {
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// LoggingConfig selects the log format.
type LoggingConfig struct {
	Mode string `yaml:"mode"` // "dev" or "prod"
}

// ExportConfig configures the snapshot file.
type ExportConfig struct {
	Path string `yaml:"path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./affiliana.db"},
		Schedule: ScheduleConfig{
			CollectInterval:  "6h",
			SnapshotInterval: "24h",
		},
		Research: ResearchConfig{
			Language:        "en",
			LocID:           2840,
			ReportsDir:      "./reports",
			PrimaryPrefix:   "best ",
			CommissionBatch: 50,
		},
		Candidates: CandidatesConfig{
			MinVolume:          700,
			MaxDomainAuthority: 30,
			Workers:            4,
		},
		Sources: SourcesConfig{
			Ubersuggest: UbersuggestConfig{Enabled: true},
			Amazon:      AmazonConfig{Enabled: true},
			RSS:         RSSConfig{Enabled: false},
			Suggest: SuggestConfig{
				Enabled: false,
				Country: "us",
				Seeds:   []string{"best home", "best kitchen", "best outdoor"},
			},
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Alerts:  AlertsConfig{},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Mode: "dev"},
		Export:  ExportConfig{Path: "gsa_snapshot.csv"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
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
	return cfg, nil
}

// LoadEnvFile exports the variables of a dotenv file when it exists.
// Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AFFILIANA_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AFFILIANA_LOG_MODE"); v != "" {
		cfg.Logging.Mode = v
	}
	if v := os.Getenv("AFFILIANA_REPORTS_DIR"); v != "" {
		cfg.Research.ReportsDir = v
		cfg.Sources.Ubersuggest.Enabled = false
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "anthropic"
		if cfg.LLM.Model == "gpt-4o-mini" {
			cfg.LLM.Model = ""
		}
	}
}
