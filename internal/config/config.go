// Copyright 2025 Medsearch Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Augmentation trigger policies for the generative fallback.
const (
	// AugmentOnEmpty queries the AI only when local results are empty.
	AugmentOnEmpty = "on_empty"
	// AugmentAlways queries the AI for every search.
	AugmentAlways = "always"
)

// Config represents the complete application configuration.
type Config struct {
	AI      AIConfig      `mapstructure:"ai"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Search  SearchConfig  `mapstructure:"search"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AIConfig selects the active generative provider and its credentials.
// Missing credentials are not a startup error: the service boots and
// degrades to local-only results.
type AIConfig struct {
	Provider       string `mapstructure:"provider"`
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	GeminiModel    string `mapstructure:"gemini_model"`
	GeminiEndpoint string `mapstructure:"gemini_endpoint"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	OpenAIModel    string `mapstructure:"openai_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// MaxRetries opts in to retrying transient provider failures.
	// Zero, the default, keeps every call single-attempt.
	MaxRetries int `mapstructure:"max_retries"`
}

// CatalogConfig contains catalog store configuration.
type CatalogConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// SearchConfig contains the search pipeline policy knobs.
type SearchConfig struct {
	AugmentPolicy   string `mapstructure:"augment_policy"`
	DedupeAIResults bool   `mapstructure:"dedupe_ai_results"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// Load loads configuration from an optional file and environment
// variables. Environment variables take precedence over file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, configPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("MEDSEARCH")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini_model", "gemini-1.5-flash")
	v.SetDefault("ai.gemini_endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.openai_model", "gpt-4o-mini")
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("ai.max_retries", 0)

	v.SetDefault("catalog.db_path", "./medicines.db")

	v.SetDefault("search.augment_policy", AugmentOnEmpty)
	v.SetDefault("search.dedupe_ai_results", false)

	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic.
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings.
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"AI_PROVIDER":     "ai.provider",
		"GEMINI_API_KEY":  "ai.gemini_api_key",
		"OPENAI_API_KEY":  "ai.openai_api_key",
		"CATALOG_DB_PATH": "catalog.db_path",
		"LOG_LEVEL":       "logging.level",
		"LOG_FORMAT":      "logging.format",
		"LOG_OUTPUT":      "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates enum values and numeric ranges. AI
// credentials are deliberately not required here.
func validateConfig(config *Config) error {
	var errs []ValidationError

	validProviders := []string{"gemini", "openai"}
	if !contains(validProviders, config.AI.Provider) {
		errs = append(errs, ValidationError{
			Field:   "ai.provider",
			Message: fmt.Sprintf("provider must be one of: %s", strings.Join(validProviders, ", ")),
		})
	}

	if config.AI.TimeoutSeconds < 10 || config.AI.TimeoutSeconds > 30 {
		errs = append(errs, ValidationError{
			Field:   "ai.timeout_seconds",
			Message: "timeout must be between 10 and 30 seconds",
		})
	}

	if config.AI.MaxRetries < 0 || config.AI.MaxRetries > 2 {
		errs = append(errs, ValidationError{
			Field:   "ai.max_retries",
			Message: "max retries must be between 0 and 2",
		})
	}

	if config.Catalog.DBPath == "" {
		errs = append(errs, ValidationError{
			Field:   "catalog.db_path",
			Message: "catalog database path is required",
		})
	}

	validPolicies := []string{AugmentOnEmpty, AugmentAlways}
	if !contains(validPolicies, config.Search.AugmentPolicy) {
		errs = append(errs, ValidationError{
			Field:   "search.augment_policy",
			Message: fmt.Sprintf("augment policy must be one of: %s", strings.Join(validPolicies, ", ")),
		})
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errs) > 0 {
		var messages []string
		for _, err := range errs {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(messages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with credentials
// masked for startup logging.
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.AI.GeminiAPIKey != "" {
		masked.AI.GeminiAPIKey = maskValue(masked.AI.GeminiAPIKey)
	}
	if masked.AI.OpenAIAPIKey != "" {
		masked.AI.OpenAIAPIKey = maskValue(masked.AI.OpenAIAPIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters.
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig enables configuration hot-reloading. The callback
// receives the freshly loaded config on every change.
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := Load(configPath)
		if err != nil {
			fmt.Printf("Failed to reload config after change to %s: %v\n", e.Name, err)
			return
		}
		callback(config)
	})

	return nil
}
