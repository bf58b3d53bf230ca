package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/grouping"
)

// Config holds all configuration for the noisegate server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Loki     LokiConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// LokiConfig configures the optional log poller. The poller is disabled
// when BaseURL is empty.
type LokiConfig struct {
	BaseURL      string
	Username     string
	Password     string
	OrgID        string
	Timeout      time.Duration
	Query        string
	Service      string
	Namespace    string
	Levels       []string
	PollInterval time.Duration
	Lookback     time.Duration
	Limit        int
}

// Enabled reports whether the Loki poller should run.
func (c LokiConfig) Enabled() bool {
	return c.BaseURL != ""
}

// EngineConfig holds grouping and suppression settings shared by every
// tenant engine.
type EngineConfig struct {
	AlertSuppressionWindow time.Duration `mapstructure:"alert_suppression_window"`
	LogSuppressionWindow   time.Duration `mapstructure:"log_suppression_window"`
	ActivityWindow         time.Duration `mapstructure:"activity_window"`
	ActionableMinCount     int           `mapstructure:"actionable_min_count"`
	SampleCap              int           `mapstructure:"sample_cap"`
	SignatureLength        int           `mapstructure:"signature_length"`
	MaxGroups              int           `mapstructure:"max_groups"`
	LastSeenPolicy         string        `mapstructure:"last_seen_policy"`
	NoiseRulesFile         string        `mapstructure:"noise_rules_file"`
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AlertSuppressionWindow: 5 * time.Minute,
		LogSuppressionWindow:   5 * time.Minute,
		ActivityWindow:         grouping.DefaultActivityWindow,
		ActionableMinCount:     grouping.DefaultActionableMinCount,
		SampleCap:              grouping.DefaultSampleCap,
		SignatureLength:        12,
		MaxGroups:              0,
		LastSeenPolicy:         "processed",
	}
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	def := DefaultEngineConfig()
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("NOISEGATE_PORT", 8080),
			Env:                envString("NOISEGATE_ENV", "development"),
			RateLimitPerMinute: envInt("NOISEGATE_RATE_LIMIT_RPM", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Loki: LokiConfig{
			BaseURL:      os.Getenv("LOKI_BASE_URL"),
			Username:     os.Getenv("LOKI_USERNAME"),
			Password:     os.Getenv("LOKI_PASSWORD"),
			OrgID:        envString("LOKI_ORG_ID", "default"),
			Timeout:      envDuration("LOKI_TIMEOUT", 30*time.Second),
			Query:        os.Getenv("LOKI_QUERY"),
			Service:      os.Getenv("LOKI_SERVICE"),
			Namespace:    os.Getenv("LOKI_NAMESPACE"),
			Levels:       envList("LOKI_LEVELS", []string{"error", "warn", "critical", "fatal"}),
			PollInterval: envDuration("LOKI_POLL_INTERVAL", 30*time.Second),
			Lookback:     envDuration("LOKI_LOOKBACK", 5*time.Minute),
			Limit:        envInt("LOKI_LIMIT", 1000),
		},
		Engine: EngineConfig{
			AlertSuppressionWindow: envDuration("ENGINE_ALERT_SUPPRESSION_WINDOW", def.AlertSuppressionWindow),
			LogSuppressionWindow:   envDuration("ENGINE_LOG_SUPPRESSION_WINDOW", def.LogSuppressionWindow),
			ActivityWindow:         envDuration("ENGINE_ACTIVITY_WINDOW", def.ActivityWindow),
			ActionableMinCount:     envInt("ENGINE_ACTIONABLE_MIN_COUNT", def.ActionableMinCount),
			SampleCap:              envInt("ENGINE_SAMPLE_CAP", def.SampleCap),
			SignatureLength:        envInt("ENGINE_SIGNATURE_LENGTH", def.SignatureLength),
			MaxGroups:              envInt("ENGINE_MAX_GROUPS", def.MaxGroups),
			LastSeenPolicy:         envString("ENGINE_LAST_SEEN_POLICY", def.LastSeenPolicy),
			NoiseRulesFile:         os.Getenv("ENGINE_NOISE_RULES_FILE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Loki.Enabled() {
		if !strings.HasPrefix(c.Loki.BaseURL, "http://") && !strings.HasPrefix(c.Loki.BaseURL, "https://") {
			return fmt.Errorf("LOKI_BASE_URL must start with http:// or https://, got %q", c.Loki.BaseURL)
		}
		if c.Loki.Query == "" && c.Loki.Service == "" {
			return fmt.Errorf("LOKI_QUERY or LOKI_SERVICE is required when LOKI_BASE_URL is set")
		}
		if c.Loki.PollInterval <= 0 {
			return fmt.Errorf("LOKI_POLL_INTERVAL must be positive, got %s", c.Loki.PollInterval)
		}
	}

	return c.Engine.Validate()
}

// Validate checks engine settings. Used by both the server and the CLI.
func (c EngineConfig) Validate() error {
	if c.AlertSuppressionWindow < 0 {
		return fmt.Errorf("alert suppression window must not be negative, got %s", c.AlertSuppressionWindow)
	}
	if c.LogSuppressionWindow < 0 {
		return fmt.Errorf("log suppression window must not be negative, got %s", c.LogSuppressionWindow)
	}
	if c.SignatureLength < 0 || c.SignatureLength > 64 {
		return fmt.Errorf("signature length must be between 1 and 64, got %d", c.SignatureLength)
	}
	if c.MaxGroups < 0 {
		return fmt.Errorf("max groups must not be negative, got %d", c.MaxGroups)
	}
	if _, err := grouping.ParseLastSeenPolicy(c.LastSeenPolicy); err != nil {
		return fmt.Errorf("last seen policy must be processed or latest, got %q", c.LastSeenPolicy)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
