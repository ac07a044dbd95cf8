package config

// Package config handles configuration loading for FirmLens.
// It supports YAML config files with environment variable overrides.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"   yaml:"store"`
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	Source  SourceConfig  `mapstructure:"source"  yaml:"source"`
	News    NewsConfig    `mapstructure:"news"    yaml:"news"`
	Chat    ChatConfig    `mapstructure:"chat"    yaml:"chat"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// StoreConfig holds graph database connection settings.
type StoreConfig struct {
	Backend     string        `mapstructure:"backend"       yaml:"backend"` // "neo4j" or "memory"
	URI         string        `mapstructure:"uri"           yaml:"uri"`
	Username    string        `mapstructure:"username"      yaml:"username"`
	Password    string        `mapstructure:"password"      yaml:"password"`
	Database    string        `mapstructure:"database"      yaml:"database"`
	MaxPoolSize int           `mapstructure:"max_pool_size" yaml:"max_pool_size"`
	TxTimeout   time.Duration `mapstructure:"tx_timeout"    yaml:"tx_timeout"`
}

// LLMConfig holds the text-completion provider configuration.
type LLMConfig struct {
	GroqKey     string        `mapstructure:"groq_key"    yaml:"groq_key"`
	BaseURL     string        `mapstructure:"base_url"    yaml:"base_url"`
	Model       string        `mapstructure:"model"       yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"  yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"     yaml:"timeout"`
}

// SourceConfig holds the company page scraping settings.
type SourceConfig struct {
	ScreenerURL string        `mapstructure:"screener_url" yaml:"screener_url"`
	Symbol      string        `mapstructure:"symbol"       yaml:"symbol"`
	CompanyName string        `mapstructure:"company_name" yaml:"company_name"`
	RatePerSec  float64       `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"    yaml:"cache_ttl"`
}

// NewsConfig holds the news feed settings.
type NewsConfig struct {
	Provider string   `mapstructure:"provider"  yaml:"provider"` // "newsapi", "rss", "auto" or "none"
	APIKey   string   `mapstructure:"api_key"   yaml:"api_key"`
	BaseURL  string   `mapstructure:"base_url"  yaml:"base_url"`
	Days     int      `mapstructure:"days"      yaml:"days"`
	PageSize int      `mapstructure:"page_size" yaml:"page_size"`
	Feeds    []string `mapstructure:"feeds"     yaml:"feeds"`
}

// ChatConfig holds the context assembly bounds and the default subject.
type ChatConfig struct {
	DefaultCompany string `mapstructure:"default_company" yaml:"default_company"`
	QuarterLimit   int    `mapstructure:"quarter_limit"   yaml:"quarter_limit"`
	AnnualLimit    int    `mapstructure:"annual_limit"    yaml:"annual_limit"`
	NewsLimit      int    `mapstructure:"news_limit"      yaml:"news_limit"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "console" or "json"
	File       string `mapstructure:"file"         yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Addr returns the host:port the API server listens on.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.firmlens/config.yaml (home directory)
//  3. /etc/firmlens/config.yaml (system)
//
// Environment variables override config file values.
// Format: FIRMLENS_<SECTION>_<KEY>, e.g., FIRMLENS_STORE_URI
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".firmlens"))
	v.AddConfigPath("/etc/firmlens")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FIRMLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.backend", "neo4j")
	v.SetDefault("store.uri", "bolt://localhost:7687")
	v.SetDefault("store.username", "neo4j")
	v.SetDefault("store.database", "")
	v.SetDefault("store.max_pool_size", 50)
	v.SetDefault("store.tx_timeout", 15*time.Second)

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.timeout", 60*time.Second)

	// Source defaults
	v.SetDefault("source.screener_url", "https://www.screener.in")
	v.SetDefault("source.symbol", "TATAELXSI")
	v.SetDefault("source.company_name", "Tata Elxsi")
	v.SetDefault("source.rate_per_sec", 1.0)
	v.SetDefault("source.cache_ttl", 5*time.Minute)

	// News defaults
	v.SetDefault("news.provider", "newsapi")
	v.SetDefault("news.base_url", "https://newsapi.org")
	v.SetDefault("news.days", 30)
	v.SetDefault("news.page_size", 20)
	v.SetDefault("news.feeds", []string{
		"https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms",
		"https://www.moneycontrol.com/rss/business.xml",
		"https://www.livemint.com/rss/markets",
	})

	// Chat defaults
	v.SetDefault("chat.default_company", "TATA_ELXSI")
	v.SetDefault("chat.quarter_limit", 10)
	v.SetDefault("chat.annual_limit", 4)
	v.SetDefault("chat.news_limit", 10)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// overrideFromEnv explicitly reads sensitive keys and the conventional
// unprefixed variable names from the environment.
func overrideFromEnv(cfg *Config) {
	if key := firstEnv("FIRMLENS_LLM_GROQ_KEY", "GROQ_API_KEY"); key != "" {
		cfg.LLM.GroqKey = key
	}
	if model := os.Getenv("GROQ_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if s := os.Getenv("GROQ_TEMPERATURE"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.LLM.Temperature = f
		}
	}
	if s := os.Getenv("GROQ_MAX_TOKENS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.LLM.MaxTokens = n
		}
	}
	if key := firstEnv("FIRMLENS_NEWS_API_KEY", "NEWSAPI_KEY"); key != "" {
		cfg.News.APIKey = key
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Store.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Store.Username = user
	}
	if pw := firstEnv("FIRMLENS_STORE_PASSWORD", "NEO4J_PASSWORD"); pw != "" {
		cfg.Store.Password = pw
	}
	if s := os.Getenv("PORT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.API.Port = n
		}
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
