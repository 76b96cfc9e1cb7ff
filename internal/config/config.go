package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AI         AIConfig         `mapstructure:"ai"`
	Suggestion SuggestionConfig `mapstructure:"suggestion"`
	Nudge      NudgeConfig      `mapstructure:"nudge"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Security   SecurityConfig   `mapstructure:"security"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	NodeID          int64         `mapstructure:"node_id"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// StorageConfig selects where snapshots are persisted
type StorageConfig struct {
	Driver       string        `mapstructure:"driver"` // file, redis, mysql
	Dir          string        `mapstructure:"dir"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig configures the HTTP collaborators
type AIConfig struct {
	ClassifierURL    string        `mapstructure:"classifier_url"`
	RankerURL        string        `mapstructure:"ranker_url"`
	ThemeURL         string        `mapstructure:"theme_url"`
	TranslatorURL    string        `mapstructure:"translator_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TranslationCache struct {
		Enabled bool          `mapstructure:"enabled"`
		TTL     time.Duration `mapstructure:"ttl"`
		MaxMB   int           `mapstructure:"max_mb"`
	} `mapstructure:"translation_cache"`
	Breaker struct {
		FailureThreshold uint32        `mapstructure:"failure_threshold"`
		Timeout          time.Duration `mapstructure:"timeout"`
		Interval         time.Duration `mapstructure:"interval"`
	} `mapstructure:"breaker"`
}

// SuggestionConfig tunes the suggestion orchestrator
type SuggestionConfig struct {
	WindowSize    int           `mapstructure:"window_size"`
	ContextSize   int           `mapstructure:"context_size"`
	TopK          int           `mapstructure:"top_k"`
	Interval      int           `mapstructure:"interval"`
	ComboKeywords []string      `mapstructure:"combo_keywords"`
	AIDelay       time.Duration `mapstructure:"ai_delay"`
}

// NudgeConfig tunes the nudge engine
type NudgeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	HistorySize int           `mapstructure:"history_size"`
	Threshold   float64       `mapstructure:"threshold"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	QueueBuffer int           `mapstructure:"queue_buffer"`
}

// CatalogConfig locates the product and combo files
type CatalogConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// RealtimeConfig tunes the websocket hub
type RealtimeConfig struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MessageRate    float64       `mapstructure:"message_rate"`
	MessageBurst   int           `mapstructure:"message_burst"`
}

// RateLimitConfig represents HTTP rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	PerIP   struct {
		RPS   float64       `mapstructure:"rps"`
		Burst int           `mapstructure:"burst"`
		TTL   time.Duration `mapstructure:"ttl"`
	} `mapstructure:"per_ip"`
	Suggestions struct {
		Limit  int           `mapstructure:"limit"`
		Window time.Duration `mapstructure:"window"`
	} `mapstructure:"suggestions"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	RequireAuth bool `mapstructure:"require_auth"`
	JWT         struct {
		Secret string        `mapstructure:"secret"`
		Expire time.Duration `mapstructure:"expire"`
		Issuer string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	CORS struct {
		AllowOrigins     []string      `mapstructure:"allow_origins"`
		AllowCredentials bool          `mapstructure:"allow_credentials"`
		MaxAge           time.Duration `mapstructure:"max_age"`
	} `mapstructure:"cors"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// GetAddr returns the server address
func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetDSN returns the database DSN
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, d.Loc)
}

// GetAddr returns the Redis address
func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir is required for the file driver")
		}
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required for the redis driver")
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.Username == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, username and dbname are required for the mysql driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if c.Security.RequireAuth && c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required when auth is enforced")
	}

	if c.Suggestion.Interval <= 0 {
		return fmt.Errorf("suggestion interval must be positive")
	}
	if c.Suggestion.WindowSize <= 0 || c.Suggestion.TopK <= 0 {
		return fmt.Errorf("suggestion window_size and top_k must be positive")
	}

	if c.Nudge.Threshold < 0 || c.Nudge.Threshold > 1 {
		return fmt.Errorf("nudge threshold must be within [0,1]: %v", c.Nudge.Threshold)
	}

	return nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "groupcart:snapshot:"
	}
	if c.Storage.WriteTimeout == 0 {
		c.Storage.WriteTimeout = 5 * time.Second
	}

	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "Local"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	if c.AI.Timeout == 0 {
		c.AI.Timeout = 5 * time.Second
	}
	if c.AI.TranslationCache.TTL == 0 {
		c.AI.TranslationCache.TTL = time.Hour
	}
	if c.AI.TranslationCache.MaxMB == 0 {
		c.AI.TranslationCache.MaxMB = 32
	}
	if c.AI.Breaker.FailureThreshold == 0 {
		c.AI.Breaker.FailureThreshold = 5
	}
	if c.AI.Breaker.Timeout == 0 {
		c.AI.Breaker.Timeout = 30 * time.Second
	}
	if c.AI.Breaker.Interval == 0 {
		c.AI.Breaker.Interval = time.Minute
	}

	if c.Suggestion.WindowSize == 0 {
		c.Suggestion.WindowSize = 20
	}
	if c.Suggestion.ContextSize == 0 {
		c.Suggestion.ContextSize = 3
	}
	if c.Suggestion.TopK == 0 {
		c.Suggestion.TopK = 5
	}
	if c.Suggestion.Interval == 0 {
		c.Suggestion.Interval = 3
	}
	if len(c.Suggestion.ComboKeywords) == 0 {
		c.Suggestion.ComboKeywords = []string{"combo", "set", "bundle", "party set", "deal"}
	}

	if c.Nudge.HistorySize == 0 {
		c.Nudge.HistorySize = 10
	}
	if c.Nudge.Cooldown == 0 {
		c.Nudge.Cooldown = 5 * time.Minute
	}
	if c.Nudge.QueueBuffer == 0 {
		c.Nudge.QueueBuffer = 256
	}

	if c.Catalog.DataDir == "" {
		c.Catalog.DataDir = "./data/catalog"
	}

	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 64
	}
	if c.Realtime.MaxMessageSize == 0 {
		c.Realtime.MaxMessageSize = 64 * 1024
	}
	if c.Realtime.PongWait == 0 {
		c.Realtime.PongWait = 60 * time.Second
	}
	if c.Realtime.PingPeriod == 0 {
		c.Realtime.PingPeriod = c.Realtime.PongWait * 9 / 10
	}
	if c.Realtime.WriteWait == 0 {
		c.Realtime.WriteWait = 10 * time.Second
	}
	if c.Realtime.MessageRate == 0 {
		c.Realtime.MessageRate = 5
	}
	if c.Realtime.MessageBurst == 0 {
		c.Realtime.MessageBurst = 10
	}

	if c.RateLimit.PerIP.RPS == 0 {
		c.RateLimit.PerIP.RPS = 20
	}
	if c.RateLimit.PerIP.Burst == 0 {
		c.RateLimit.PerIP.Burst = 40
	}
	if c.RateLimit.PerIP.TTL == 0 {
		c.RateLimit.PerIP.TTL = 10 * time.Minute
	}
	if c.RateLimit.Suggestions.Limit == 0 {
		c.RateLimit.Suggestions.Limit = 30
	}
	if c.RateLimit.Suggestions.Window == 0 {
		c.RateLimit.Suggestions.Window = time.Minute
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 7 * 24 * time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "groupcart"
	}
	if len(c.Security.CORS.AllowOrigins) == 0 {
		c.Security.CORS.AllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Security.CORS.MaxAge == 0 {
		c.Security.CORS.MaxAge = 12 * time.Hour
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "groupcart"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "groupcart"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}
}
