package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Feed      FeedConfig      `yaml:"feed"`
	Inference InferenceConfig `yaml:"inference"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Sharding  ShardingConfig  `yaml:"sharding"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Hot       HotConfig       `yaml:"hot"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Users     []User          `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
	CronSecret       string `yaml:"cron_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type FeedConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	PageCount      int    `yaml:"page_count"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type InferenceConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	CallsPerSecond float64 `yaml:"calls_per_second"`
	Burst          int     `yaml:"burst"`
}

type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ShardingConfig struct {
	ShardCount int `yaml:"shard_count"`
}

type LedgerConfig struct {
	RetentionDays      int      `yaml:"retention_days"`
	BundleTTLMinutes   int      `yaml:"bundle_ttl_minutes"`
	CorrectionKeywords []string `yaml:"correction_keywords"`
}

type HotConfig struct {
	Enabled             bool     `yaml:"enabled"`
	TTLMinutes          int      `yaml:"ttl_minutes"`
	PriceThreshold      float64  `yaml:"price_threshold"`
	VolumeRatio         float64  `yaml:"volume_ratio"`
	SentimentLow        float64  `yaml:"sentiment_low"`
	SentimentHigh       float64  `yaml:"sentiment_high"`
	RecentWindowMinutes int      `yaml:"recent_window_minutes"`
	TriggerOrder        []string `yaml:"trigger_order"`
}

type AnalysisConfig struct {
	LookbackDays           int      `yaml:"lookback_days"`
	TokenBudget            int      `yaml:"token_budget"`
	EstimatedTokensPerCall int      `yaml:"estimated_tokens_per_call"`
	ExcludedReportKeywords []string `yaml:"excluded_report_keywords"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Feed.PageCount == 0 {
		c.Feed.PageCount = 100
	}
	if c.Feed.TimeoutSeconds == 0 {
		c.Feed.TimeoutSeconds = 10
	}
	if c.Inference.TimeoutSeconds == 0 {
		c.Inference.TimeoutSeconds = 30
	}
	if c.Inference.CallsPerSecond == 0 {
		c.Inference.CallsPerSecond = 2
	}
	if c.Inference.Burst == 0 {
		c.Inference.Burst = 1
	}
	if c.Sharding.ShardCount == 0 {
		c.Sharding.ShardCount = 3
	}
	if c.Ledger.RetentionDays == 0 {
		c.Ledger.RetentionDays = 30
	}
	if c.Ledger.BundleTTLMinutes == 0 {
		c.Ledger.BundleTTLMinutes = 60
	}
	if len(c.Ledger.CorrectionKeywords) == 0 {
		c.Ledger.CorrectionKeywords = []string{"정정", "재공시", "정정공시", "수정"}
	}
	if c.Hot.TTLMinutes == 0 {
		c.Hot.TTLMinutes = 30
	}
	if c.Hot.PriceThreshold == 0 {
		c.Hot.PriceThreshold = 5.0
	}
	if c.Hot.VolumeRatio == 0 {
		c.Hot.VolumeRatio = 2.0
	}
	if c.Hot.SentimentLow == 0 {
		c.Hot.SentimentLow = 0.2
	}
	if c.Hot.SentimentHigh == 0 {
		c.Hot.SentimentHigh = 0.8
	}
	if c.Hot.RecentWindowMinutes == 0 {
		c.Hot.RecentWindowMinutes = 60
	}
	if len(c.Hot.TriggerOrder) == 0 {
		c.Hot.TriggerOrder = []string{"important_disclosure", "price_spike", "volume_spike"}
	}
	if c.Analysis.LookbackDays == 0 {
		c.Analysis.LookbackDays = 1
	}
	if c.Analysis.TokenBudget == 0 {
		c.Analysis.TokenBudget = 8000
	}
	if c.Analysis.EstimatedTokensPerCall == 0 {
		c.Analysis.EstimatedTokensPerCall = 600
	}
	if len(c.Analysis.ExcludedReportKeywords) == 0 {
		c.Analysis.ExcludedReportKeywords = []string{"분기보고서", "반기보고서", "사업보고서", "정기보고"}
	}
}

// applyEnv overrides secrets from the environment so they can stay out of
// the config file in deployed environments.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("CRON_SECRET_TOKEN"); v != "" {
		c.Auth.CronSecret = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("INFERENCE_API_KEY"); v != "" {
		c.Inference.APIKey = v
	}
	if v := os.Getenv("ARCHIVE_ACCESS_KEY"); v != "" {
		c.Archive.AccessKey = v
	}
	if v := os.Getenv("ARCHIVE_SECRET_KEY"); v != "" {
		c.Archive.SecretKey = v
	}
}

// Validate checks the settings that the service cannot run without.
func (c *Config) Validate() error {
	if c.Auth.CronSecret == "" {
		return fmt.Errorf("auth.cron_secret is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Feed.APIKey == "" {
		return fmt.Errorf("feed.api_key is required")
	}
	if c.Inference.APIKey == "" {
		return fmt.Errorf("inference.api_key is required")
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
