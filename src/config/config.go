package config

import (
	"fmt"
	"os"
	"strings"

	"alphatrak-observer/src/models"
	"alphatrak-observer/src/utils"

	"gopkg.in/yaml.v3"
)

// Environment overrides. The password is only ever read from here.
const (
	EnvUsername = "ALPHATRAK_USERNAME"
	EnvPassword = "ALPHATRAK_PASSWORD"
	EnvToken    = "ALPHATRAK_TOKEN"
	EnvLogLevel = "ALPHATRAK_LOG_LEVEL"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()
	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills the optional settings left empty in the file.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "alphatrak-observer"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcHost == "" {
		c.GrpcHost = c.Host
	}
	if c.API.LanguageID == "" {
		c.API.LanguageID = "1"
	}
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = 30
	}
	if c.API.InsecureSkipVerify == nil {
		skip := true
		c.API.InsecureSkipVerify = &skip
	}
	if c.Polling.IntervalMinutes <= 0 {
		c.Polling.IntervalMinutes = int(utils.DefaultPollInterval.Minutes())
	}
	if c.Polling.WindowDays <= 0 {
		c.Polling.WindowDays = int(utils.DefaultFetchWindow.Hours() / 24)
	}
	if c.Polling.ValidationWindowDays <= 0 {
		c.Polling.ValidationWindowDays = int(utils.DefaultValidationWindow.Hours() / 24)
	}
	if c.Polling.HistorySize <= 0 {
		c.Polling.HistorySize = utils.DefaultHistorySize
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		c.Storage.DBPath = "alphatrak.db"
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = utils.DefaultRetentionDays
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "alphatrak:snapshots"
	}
}

// -----------------------------------------------------------------------------

// ApplyEnv overlays the ALPHATRAK_* variables. lookup is os.LookupEnv outside
// tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvUsername); ok && v != "" {
		c.Credentials.Username = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Credentials.Password = v
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Credentials.Token = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}
	if c.GrpcPort != 0 && c.GrpcPort == c.Port && c.GrpcHost == c.Host {
		return fmt.Errorf("grpc and http servers cannot share %s:%d", c.Host, c.Port)
	}

	switch strings.ToLower(c.Storage.DBType) {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}

	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	switch len(c.API.PasswordKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("api.password_key must be 16, 24 or 32 bytes, got %d", len(c.API.PasswordKey))
	}

	if c.Credentials.Token == "" && (c.Credentials.Username == "" || c.Credentials.Password == "") {
		return fmt.Errorf("either a token or a username and password (via %s) is required", EnvPassword)
	}

	seen := make(map[int64]bool, len(c.Pets))
	for _, id := range c.Pets {
		if id <= 0 {
			return fmt.Errorf("invalid pet id: %d", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate pet id: %d", id)
		}
		seen[id] = true
	}
	if len(c.Pets) == 0 && c.Credentials.Username == "" {
		return fmt.Errorf("pets must be listed when no username is configured for discovery")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr cannot be empty when redis is enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path.
// The password is never written.
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
