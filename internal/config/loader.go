package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"groupcart/pkg/log"
)

const envPrefix = "GROUPCART"

var (
	// GlobalConfig holds the global configuration instance
	GlobalConfig *Config

	mu      sync.RWMutex
	current *viper.Viper
)

// defaults registered with viper so env overrides work for keys absent from the file
var viperDefaults = map[string]interface{}{
	"server.port":                  5000,
	"server.mode":                  "debug",
	"storage.driver":               "file",
	"storage.dir":                  "./data",
	"redis.host":                   "localhost",
	"database.host":                "",
	"database.username":            "",
	"database.password":            "",
	"database.dbname":              "",
	"ai.classifier_url":            "",
	"ai.ranker_url":                "",
	"ai.theme_url":                 "",
	"ai.translator_url":            "",
	"ai.translation_cache.enabled": true,
	"nudge.enabled":                true,
	"nudge.threshold":              0.4,
	"catalog.data_dir":             "./data/catalog",
	"rate_limit.enabled":           true,
	"security.require_auth":        false,
	"security.jwt.secret":          "",
	"metrics.enabled":              true,
	"tracing.enabled":              false,
	"log.level":                    "info",
}

// LoadConfig loads configuration from a .env file, the yaml file, an optional
// per-environment overlay and GROUPCART_* environment variables, in that order
// of increasing precedence.
func LoadConfig(configPath string) (*Config, error) {
	// a missing .env is the normal case outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to load .env file")
	}

	v := viper.New()
	for key, value := range viperDefaults {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
		v.AddConfigPath("/etc/groupcart")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Info("Config file not found, using defaults and environment variables")
	} else {
		log.WithField("file", v.ConfigFileUsed()).Info("Using config file")
	}

	if used := v.ConfigFileUsed(); used != "" {
		envConfigPath := filepath.Join(filepath.Dir(used), fmt.Sprintf("config.%s.yaml", Env()))
		if _, err := os.Stat(envConfigPath); err == nil {
			v.SetConfigFile(envConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to merge env config: %w", err)
			}
			// keep watching the base file
			v.SetConfigFile(used)
			log.WithField("file", envConfigPath).Info("Loaded environment config")
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	GlobalConfig = config
	current = v
	mu.Unlock()

	return config, nil
}

// MustLoadConfig loads configuration and panics on error
func MustLoadConfig(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// GetConfig returns the global configuration instance
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()

	if GlobalConfig == nil {
		panic("Config not loaded. Call LoadConfig first.")
	}
	return GlobalConfig
}

// ReloadConfig reloads the configuration from the file last loaded
func ReloadConfig() (*Config, error) {
	mu.RLock()
	v := current
	mu.RUnlock()

	if v == nil {
		return nil, fmt.Errorf("config not initialized")
	}

	newConfig, err := LoadConfig(v.ConfigFileUsed())
	if err != nil {
		return nil, fmt.Errorf("failed to reload config: %w", err)
	}
	return newConfig, nil
}

// WatchConfig reloads the configuration when the file changes and hands the
// new value to callback. Invalid edits are logged and the old config is kept.
func WatchConfig(callback func(*Config)) {
	mu.RLock()
	v := current
	mu.RUnlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.WithField("file", e.Name).Info("Config file changed")
		cfg, err := ReloadConfig()
		if err != nil {
			log.WithError(err).Error("Failed to reload config")
			return
		}
		if callback != nil {
			callback(cfg)
		}
	})
	v.WatchConfig()
}

// Env returns the deployment environment name
func Env() string {
	if env := os.Getenv(envPrefix + "_ENV"); env != "" {
		return env
	}
	return "dev"
}

// IsProduction returns true if running in production mode
func IsProduction() bool {
	env := Env()
	return env == "prod" || env == "production"
}
