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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_PATH", "AI_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"CATALOG_DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return configPath
}

func TestLoadConfig(t *testing.T) {
	clearConfigEnv(t)

	configPath := writeConfigFile(t, `
ai:
  provider: "openai"
  openai_api_key: "sk-test-key"  # pragma: allowlist secret
  openai_model: "gpt-4o-mini"
  timeout_seconds: 20
catalog:
  db_path: "./test_medicines.db"
search:
  augment_policy: "always"
  dedupe_ai_results: true
server:
  port: 9090
logging:
  level: "debug"
  format: "json"
  output: "stdout"
`)

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.AI.Provider != "openai" {
		t.Errorf("Expected provider 'openai', got '%s'", config.AI.Provider)
	}
	if config.AI.OpenAIAPIKey != "sk-test-key" {
		t.Errorf("Expected OpenAI API key 'sk-test-key', got '%s'", config.AI.OpenAIAPIKey)
	}
	if config.AI.TimeoutSeconds != 20 {
		t.Errorf("Expected timeout 20, got %d", config.AI.TimeoutSeconds)
	}
	if config.Catalog.DBPath != "./test_medicines.db" {
		t.Errorf("Expected db path './test_medicines.db', got '%s'", config.Catalog.DBPath)
	}
	if config.Search.AugmentPolicy != AugmentAlways {
		t.Errorf("Expected augment policy 'always', got '%s'", config.Search.AugmentPolicy)
	}
	if !config.Search.DedupeAIResults {
		t.Error("Expected dedupe_ai_results to be true")
	}
	if config.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.Server.Port)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	// Empty file: every value comes from defaults.
	configPath := writeConfigFile(t, "")

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.AI.Provider != "gemini" {
		t.Errorf("Expected default provider 'gemini', got '%s'", config.AI.Provider)
	}
	if config.AI.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("Expected default gemini model, got '%s'", config.AI.GeminiModel)
	}
	if config.AI.TimeoutSeconds != 30 {
		t.Errorf("Expected default timeout 30, got %d", config.AI.TimeoutSeconds)
	}
	if config.AI.MaxRetries != 0 {
		t.Errorf("Expected retries to default to 0, got %d", config.AI.MaxRetries)
	}
	if config.Search.AugmentPolicy != AugmentOnEmpty {
		t.Errorf("Expected default augment policy 'on_empty', got '%s'", config.Search.AugmentPolicy)
	}
	if config.Search.DedupeAIResults {
		t.Error("Expected dedupe_ai_results to default to false")
	}
	if config.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.Server.Port)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadConfigWithoutCredentials(t *testing.T) {
	// Missing AI credentials must not block startup: the service
	// degrades to local-only search.
	clearConfigEnv(t)

	configPath := writeConfigFile(t, `
catalog:
  db_path: "./medicines.db"
`)

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Config without credentials must load: %v", err)
	}
	if config.AI.GeminiAPIKey != "" || config.AI.OpenAIAPIKey != "" {
		t.Error("Expected no credentials to be set")
	}
}

func TestEnvironmentVariableOverrides(t *testing.T) {
	clearConfigEnv(t)

	configPath := writeConfigFile(t, `
ai:
  provider: "gemini"
  gemini_api_key: "file-key"
catalog:
  db_path: "./file_medicines.db"
logging:
  level: "info"
`)

	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("CATALOG_DB_PATH", "./env_medicines.db")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.AI.GeminiAPIKey != "env-key" {
		t.Errorf("Expected API key from env 'env-key', got '%s'", config.AI.GeminiAPIKey)
	}
	if config.Catalog.DBPath != "./env_medicines.db" {
		t.Errorf("Expected db path from env, got '%s'", config.Catalog.DBPath)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level from env 'debug', got '%s'", config.Logging.Level)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearConfigEnv(t)

	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for explicitly named missing config file")
	}
}

func TestConfigValidation(t *testing.T) {
	valid := Config{
		AI: AIConfig{
			Provider:       "gemini",
			TimeoutSeconds: 30,
		},
		Catalog: CatalogConfig{DBPath: "./medicines.db"},
		Search:  SearchConfig{AugmentPolicy: AugmentOnEmpty},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		expectedError bool
		errorContains string
	}{
		{
			name:          "Valid configuration",
			mutate:        func(c *Config) {},
			expectedError: false,
		},
		{
			name:          "Unknown provider",
			mutate:        func(c *Config) { c.AI.Provider = "claude" },
			expectedError: true,
			errorContains: "ai.provider",
		},
		{
			name:          "Timeout too low",
			mutate:        func(c *Config) { c.AI.TimeoutSeconds = 5 },
			expectedError: true,
			errorContains: "ai.timeout_seconds",
		},
		{
			name:          "Timeout too high",
			mutate:        func(c *Config) { c.AI.TimeoutSeconds = 60 },
			expectedError: true,
			errorContains: "ai.timeout_seconds",
		},
		{
			name:          "Retries out of range",
			mutate:        func(c *Config) { c.AI.MaxRetries = 5 },
			expectedError: true,
			errorContains: "ai.max_retries",
		},
		{
			name:          "Missing db path",
			mutate:        func(c *Config) { c.Catalog.DBPath = "" },
			expectedError: true,
			errorContains: "catalog.db_path",
		},
		{
			name:          "Unknown augment policy",
			mutate:        func(c *Config) { c.Search.AugmentPolicy = "sometimes" },
			expectedError: true,
			errorContains: "search.augment_policy",
		},
		{
			name:          "Port out of range",
			mutate:        func(c *Config) { c.Server.Port = 70000 },
			expectedError: true,
			errorContains: "server.port",
		},
		{
			name:          "Unknown log level",
			mutate:        func(c *Config) { c.Logging.Level = "verbose" },
			expectedError: true,
			errorContains: "logging.level",
		},
		{
			name:          "Unknown log format",
			mutate:        func(c *Config) { c.Logging.Format = "xml" },
			expectedError: true,
			errorContains: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)

			err := validateConfig(&config)
			if tt.expectedError {
				if err == nil {
					t.Fatal("Expected validation error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to mention '%s', got: %v", tt.errorContains, err)
				}
			} else if err != nil {
				t.Errorf("Expected no validation error, got: %v", err)
			}
		})
	}
}

func TestMaskSensitiveValues(t *testing.T) {
	config := &Config{
		AI: AIConfig{
			GeminiAPIKey: "AIzaSyTestKey1234567890",
			OpenAIAPIKey: "short",
		},
	}

	masked := config.MaskSensitiveValues()

	if masked.AI.GeminiAPIKey != "AIzaSyTe"+strings.Repeat("*", 15) {
		t.Errorf("Expected masked Gemini key, got '%s'", masked.AI.GeminiAPIKey)
	}
	if masked.AI.OpenAIAPIKey != "*****" {
		t.Errorf("Expected fully masked short key, got '%s'", masked.AI.OpenAIAPIKey)
	}

	// Masking must not touch the original.
	if config.AI.GeminiAPIKey != "AIzaSyTestKey1234567890" {
		t.Error("Original config was mutated by masking")
	}
}
