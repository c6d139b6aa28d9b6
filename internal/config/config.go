package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheMemory    = "memory"
	CacheRedis     = "redis"
	CacheFirestore = "firestore"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	Proxy       string `yaml:"proxy"`

	Yahoo struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
		Range     string `yaml:"range"`
		Interval  string `yaml:"interval"`
		NewsCount int    `yaml:"news_count"`
	} `yaml:"yahoo"`

	AlphaVantageKey string `yaml:"alpha_vantage_key"`

	Cache struct {
		Backend     string        `yaml:"backend"`
		HistoryTTL  time.Duration `yaml:"history_ttl"`
		SearchTTL   time.Duration `yaml:"search_ttl"`
		NewsTTL     time.Duration `yaml:"news_ttl"`
		PurgeCron   string        `yaml:"purge_cron"`
		RedisAddr   string        `yaml:"redis_addr"`
		RedisPass   string        `yaml:"redis_password"`
		RedisDB     int           `yaml:"redis_db"`
		RedisPrefix string        `yaml:"redis_prefix"`
		Firestore   string        `yaml:"firestore_project"`
	} `yaml:"cache"`

	Watchlist struct {
		Symbols []string `yaml:"symbols"`
		Cron    string   `yaml:"cron"`
	} `yaml:"watchlist"`

	Server struct {
		AllowOrigins   string        `yaml:"allow_origins"`
		RateLimit      int           `yaml:"rate_limit"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"server"`

	MaxConcurrentFetches int `yaml:"max_concurrent_fetches"`
}

// Load reads an optional .env file and an optional YAML file at path, then applies
// environment overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] .env not loaded: %v", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Proxy = getEnv("HTTPS_PROXY", c.Proxy)
	c.AlphaVantageKey = getEnv("ALPHA_VANTAGE_KEY", c.AlphaVantageKey)

	c.Yahoo.BaseURL = getEnv("YAHOO_BASE_URL", c.Yahoo.BaseURL)
	c.Yahoo.Range = getEnv("HISTORY_RANGE", c.Yahoo.Range)
	c.Yahoo.Interval = getEnv("HISTORY_INTERVAL", c.Yahoo.Interval)
	c.Yahoo.NewsCount = getEnvInt("NEWS_COUNT", c.Yahoo.NewsCount)

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.HistoryTTL = getEnvDuration("HISTORY_CACHE_TTL", c.Cache.HistoryTTL)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPass = getEnv("REDIS_PASSWORD", c.Cache.RedisPass)
	c.Cache.RedisDB = getEnvInt("REDIS_DB", c.Cache.RedisDB)
	c.Cache.Firestore = getEnv("FIRESTORE_PROJECT_ID", c.Cache.Firestore)

	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Watchlist.Symbols = splitList(v)
	}
	c.Server.AllowOrigins = getEnv("ALLOW_ORIGINS", c.Server.AllowOrigins)
	c.Server.RateLimit = getEnvInt("RATE_LIMIT", c.Server.RateLimit)
	c.MaxConcurrentFetches = getEnvInt("MAX_CONCURRENT_FETCHES", c.MaxConcurrentFetches)
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.Yahoo.Range == "" {
		c.Yahoo.Range = "1mo"
	}
	if c.Yahoo.Interval == "" {
		c.Yahoo.Interval = "1d"
	}
	if c.Yahoo.NewsCount == 0 {
		c.Yahoo.NewsCount = 10
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.HistoryTTL == 0 {
		c.Cache.HistoryTTL = 5 * time.Minute
	}
	if c.Cache.SearchTTL == 0 {
		c.Cache.SearchTTL = 10 * time.Minute
	}
	if c.Cache.NewsTTL == 0 {
		c.Cache.NewsTTL = 15 * time.Minute
	}
	if c.Cache.PurgeCron == "" {
		c.Cache.PurgeCron = "@every 5m"
	}
	if c.Cache.RedisPrefix == "" {
		c.Cache.RedisPrefix = "stockanalyzer:"
	}
	if c.Watchlist.Cron == "" {
		c.Watchlist.Cron = "@every 15m"
	}
	if c.Server.AllowOrigins == "" {
		c.Server.AllowOrigins = "*"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if c.MaxConcurrentFetches == 0 {
		c.MaxConcurrentFetches = 10
	}
	for i, s := range c.Watchlist.Symbols {
		c.Watchlist.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	case CacheFirestore:
		if c.Cache.Firestore == "" {
			return fmt.Errorf("cache.firestore_project is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.MaxConcurrentFetches < 1 {
		return fmt.Errorf("max_concurrent_fetches must be positive")
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("server.rate_limit must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("[WARN] %s=%q is not an integer, ignoring", key, value)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("[WARN] %s=%q is not a duration, ignoring", key, value)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
