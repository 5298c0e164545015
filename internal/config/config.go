// Package config provides configuration management for the application.
// Values are loaded from an optional YAML file and environment variables
// (dots replaced by underscores, e.g. DATABASE_HOST) with sane defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/funnelforge/internal/logger"
)

// Config represents the application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logger     logger.Config    `mapstructure:"logger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Classify   ClassifyConfig   `mapstructure:"classify"`
	DataForSEO DataForSEOConfig `mapstructure:"dataforseo"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// FetchConfig holds outbound HTTP fetch settings.
type FetchConfig struct {
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration `mapstructure:"timeout"`
	// UserAgent is the browser-like agent tried first.
	UserAgent string `mapstructure:"user_agent"`
	// FallbackUserAgent is the minimal agent used on the retry attempt.
	FallbackUserAgent string `mapstructure:"fallback_user_agent"`
	// HostRPS limits requests per second against a single host.
	HostRPS float64 `mapstructure:"host_rps"`
}

// CrawlerConfig holds sitemap crawl settings.
type CrawlerConfig struct {
	// PageBudget caps the number of pages discovered in one crawl.
	PageBudget int `mapstructure:"page_budget"`
}

// ClassifyConfig holds re-classification batch settings.
type ClassifyConfig struct {
	// BatchLimit caps pages considered per classification run.
	BatchLimit int `mapstructure:"batch_limit"`
}

// DataForSEOConfig holds keyword-metrics provider credentials and limits.
type DataForSEOConfig struct {
	Login     string `mapstructure:"login"`
	Password  string `mapstructure:"password"`
	MinVolume int    `mapstructure:"min_volume"`
	Limit     int    `mapstructure:"limit"`
}

// Enabled reports whether credentials are configured.
func (c *DataForSEOConfig) Enabled() bool {
	return c.Login != "" && c.Password != ""
}

// GeminiConfig holds generative provider settings.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeneratorConfig holds funnel generation settings.
type GeneratorConfig struct {
	// TopicCount is the default number of child topics proposed per parent.
	TopicCount int `mapstructure:"topic_count"`
}

// WorkerConfig holds research worker pool settings.
type WorkerConfig struct {
	Count     int           `mapstructure:"count"`
	PollDelay time.Duration `mapstructure:"poll_delay"`
}

// SchedulerConfig holds cron specs for periodic sweeps.
type SchedulerConfig struct {
	AuditSpec    string `mapstructure:"audit_spec"`
	ClassifySpec string `mapstructure:"classify_spec"`
}

// Default values applied before file and environment overrides.
const (
	defaultFetchTimeout    = 20 * time.Second
	defaultHostRPS         = 2.0
	defaultPageBudget      = 500
	defaultClassifyLimit   = 200
	defaultMinVolume       = 50
	defaultKeywordLimit    = 50
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultGeminiTimeout   = 90 * time.Second
	defaultTemperature     = 0.7
	defaultTopicCount      = 6
	defaultWorkerCount     = 4
	defaultWorkerPollDelay = 5 * time.Second

	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultFallbackUserAgent = "funnelforge/1.0"
)

// Load reads configuration from the given file path (optional) plus the
// environment, and returns the populated Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every tunable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.development", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "funnelforge")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("fetch.timeout", defaultFetchTimeout)
	v.SetDefault("fetch.user_agent", defaultUserAgent)
	v.SetDefault("fetch.fallback_user_agent", defaultFallbackUserAgent)
	v.SetDefault("fetch.host_rps", defaultHostRPS)

	v.SetDefault("crawler.page_budget", defaultPageBudget)
	v.SetDefault("classify.batch_limit", defaultClassifyLimit)

	v.SetDefault("dataforseo.min_volume", defaultMinVolume)
	v.SetDefault("dataforseo.limit", defaultKeywordLimit)

	v.SetDefault("gemini.model", defaultGeminiModel)
	v.SetDefault("gemini.temperature", defaultTemperature)
	v.SetDefault("gemini.timeout", defaultGeminiTimeout)

	v.SetDefault("generator.topic_count", defaultTopicCount)

	v.SetDefault("worker.count", defaultWorkerCount)
	v.SetDefault("worker.poll_delay", defaultWorkerPollDelay)

	v.SetDefault("scheduler.audit_spec", "@every 6h")
	v.SetDefault("scheduler.classify_spec", "@every 1h")
}

// Validate checks settings required by every command.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return errors.New("database host and dbname are required")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}
	return nil
}
