// Copyright 2024 Infra Advisor Project
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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	Model      ModelConfig      `mapstructure:"model"`
	Server     ServerConfig     `mapstructure:"server"`
	Context    ContextConfig    `mapstructure:"context"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

// ModelConfig contains the local model endpoint configuration
type ModelConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Name           string  `mapstructure:"name"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
}

// ServerConfig contains the HTTP server configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ContextConfig contains conversation context storage settings
type ContextConfig struct {
	StorageType            string `mapstructure:"storage_type"`
	SQLitePath             string `mapstructure:"sqlite_path"`
	SessionTTLHours        int    `mapstructure:"session_ttl_hours"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

// RecommendConfig externalizes the recommendation analysis thresholds
type RecommendConfig struct {
	CPUGrowthThreshold    float64 `mapstructure:"cpu_growth_threshold"`
	MemoryGrowthThreshold float64 `mapstructure:"memory_growth_threshold"`
	NetworkSaturationThreshold float64 `mapstructure:"network_saturation_threshold"`
	HighCPUThreshold      float64 `mapstructure:"high_cpu_threshold"`
	HighMemoryThreshold   float64 `mapstructure:"high_memory_threshold"`
	MaxCoresPerVM         int     `mapstructure:"max_cores_per_vm"`
}

// ValidationConfig contains input validation settings
type ValidationConfig struct {
	MaxInputLength int `mapstructure:"max_input_length"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AuditConfig contains audit event storage configuration
type AuditConfig struct {
	StorageType string `mapstructure:"storage_type"`
	FilePath    string `mapstructure:"file_path"`
	DBPath      string `mapstructure:"db_path"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	EnableHotReload  bool
	Environment      string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over config file values
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		EnableHotReload:  false,
		Environment:      getEnvironment(),
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set configuration file path
	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("INFRA_ADVISOR")

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set explicit environment variable mappings
	setEnvironmentMappings(v)

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// ModelTimeout returns the model call timeout as a duration.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// SessionTTL returns the session retention window as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Context.SessionTTLHours) * time.Hour
}

// CleanupInterval returns the session sweep interval as a duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Context.CleanupIntervalMinutes) * time.Minute
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Model defaults (local OpenAI-compatible serving daemon)
	v.SetDefault("model.base_url", "http://localhost:11434/v1")
	v.SetDefault("model.api_key", "local")
	v.SetDefault("model.name", "llama3.1:8b-instruct")
	v.SetDefault("model.timeout_seconds", 60)
	v.SetDefault("model.max_tokens", 1024)
	v.SetDefault("model.temperature", 0.3)

	// Server defaults
	v.SetDefault("server.addr", ":8080")

	// Context store defaults
	v.SetDefault("context.storage_type", "memory")
	v.SetDefault("context.sqlite_path", "./contexts.db")
	v.SetDefault("context.session_ttl_hours", 24)
	v.SetDefault("context.cleanup_interval_minutes", 10)

	// Recommendation threshold defaults
	v.SetDefault("recommend.cpu_growth_threshold", 0.10)
	v.SetDefault("recommend.memory_growth_threshold", 0.15)
	v.SetDefault("recommend.network_saturation_threshold", 0.90)
	v.SetDefault("recommend.high_cpu_threshold", 0.80)
	v.SetDefault("recommend.high_memory_threshold", 0.80)
	v.SetDefault("recommend.max_cores_per_vm", 8)

	// Validation defaults
	v.SetDefault("validation.max_input_length", 10000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Audit defaults
	v.SetDefault("audit.storage_type", "file")
	v.SetDefault("audit.file_path", "./audit.log")
	v.SetDefault("audit.db_path", "./audit.db")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	// Check for CONFIG_PATH environment variable
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	// Use provided config path
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations; a missing file is fine, defaults and
	// environment variables still apply.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	// Map common environment variables
	envMappings := map[string]string{
		"MODEL_BASE_URL":  "model.base_url",
		"MODEL_API_KEY":   "model.api_key",
		"MODEL_NAME":      "model.name",
		"SERVER_ADDR":     "server.addr",
		"CONTEXT_DB_PATH": "context.sqlite_path",
		"AUDIT_DB_PATH":   "audit.db_path",
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

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errors []ValidationError

	if config.Model.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "model.base_url",
			Message: "model endpoint URL is required. Set via config file or MODEL_BASE_URL environment variable",
		})
	}

	if config.Model.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "model.timeout_seconds",
			Message: "timeout_seconds must be greater than 0",
		})
	}

	if config.Model.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "model.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.Model.Temperature < 0 || config.Model.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "model.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Message: "server address is required",
		})
	}

	validContextStorage := []string{"memory", "sqlite"}
	if !contains(validContextStorage, config.Context.StorageType) {
		errors = append(errors, ValidationError{
			Field:   "context.storage_type",
			Message: fmt.Sprintf("storage type must be one of: %s", strings.Join(validContextStorage, ", ")),
		})
	}

	if config.Context.StorageType == "sqlite" && config.Context.SQLitePath == "" {
		errors = append(errors, ValidationError{
			Field:   "context.sqlite_path",
			Message: "sqlite_path is required for sqlite context storage",
		})
	}

	if config.Context.SessionTTLHours <= 0 {
		errors = append(errors, ValidationError{
			Field:   "context.session_ttl_hours",
			Message: "session_ttl_hours must be greater than 0",
		})
	}

	if config.Context.CleanupIntervalMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "context.cleanup_interval_minutes",
			Message: "cleanup_interval_minutes must be greater than 0",
		})
	}

	for field, value := range map[string]float64{
		"recommend.cpu_growth_threshold":       config.Recommend.CPUGrowthThreshold,
		"recommend.memory_growth_threshold":    config.Recommend.MemoryGrowthThreshold,
		"recommend.network_saturation_threshold": config.Recommend.NetworkSaturationThreshold,
		"recommend.high_cpu_threshold":         config.Recommend.HighCPUThreshold,
		"recommend.high_memory_threshold":      config.Recommend.HighMemoryThreshold,
	} {
		if value <= 0 || value > 1 {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "threshold must be in (0, 1]",
			})
		}
	}

	if config.Recommend.MaxCoresPerVM <= 0 {
		errors = append(errors, ValidationError{
			Field:   "recommend.max_cores_per_vm",
			Message: "max_cores_per_vm must be greater than 0",
		})
	}

	if config.Validation.MaxInputLength <= 0 {
		errors = append(errors, ValidationError{
			Field:   "validation.max_input_length",
			Message: "max_input_length must be greater than 0",
		})
	}

	// Validate enum values
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	validStorageTypes := []string{"file", "sqlite"}
	if !contains(validStorageTypes, config.Audit.StorageType) {
		errors = append(errors, ValidationError{
			Field:   "audit.storage_type",
			Message: fmt.Sprintf("storage type must be one of: %s", strings.Join(validStorageTypes, ", ")),
		})
	}

	// Validate directory existence for file paths
	if config.Context.StorageType == "sqlite" && config.Context.SQLitePath != "" {
		if err := validateDirectoryExists(filepath.Dir(config.Context.SQLitePath)); err != nil {
			errors = append(errors, ValidationError{
				Field:   "context.sqlite_path",
				Message: fmt.Sprintf("context database directory does not exist: %s", filepath.Dir(config.Context.SQLitePath)),
			})
		}
	}

	// Return all validation errors
	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.Model.APIKey != "" {
		masked.Model.APIKey = maskValue(masked.Model.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// getEnvironment returns the current environment (development, production, etc.)
func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "development"
}

// WatchConfig reloads configuration whenever the file changes and hands
// each successfully reloaded Config to the callback. A reload that fails
// validation is logged and dropped; the running configuration stays in
// effect.
func WatchConfig(configPath string, logger *zap.Logger, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("Configuration file changed", zap.String("file", e.Name))

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			EnableHotReload:  true,
			Environment:      getEnvironment(),
			ValidateRequired: true,
		})
		if err != nil {
			logger.Error("Failed to reload configuration, keeping previous values", zap.Error(err))
			return
		}

		callback(config)
	})

	return nil
}
