package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"go-billing-core/internal/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Numbering NumberingConfig `yaml:"numbering"`
}

type ServerConfig struct {
	Port              int      `yaml:"port"`
	BaseURL           string   `yaml:"base_url"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	AllowRegistration bool     `yaml:"allow_registration"`
}

type DatabaseConfig struct {
	Driver         string `yaml:"driver"` // mysql, sqlite
	DSN            string `yaml:"dsn"`
	LogLevel       string `yaml:"log_level"` // silent, error, warn, info
	ConnectRetries int    `yaml:"connect_retries"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	TimeFormat string `yaml:"time_format"`
	Output     string `yaml:"output"`
}

// NumberingConfig holds the patterns final document numbers are rendered with.
type NumberingConfig struct {
	QuotePattern   string `yaml:"quote_pattern"`
	InvoicePattern string `yaml:"invoice_pattern"`
}

// Load reads the optional YAML file at path, overlays environment variables
// and fills in defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	c.Server.BaseURL = getEnv("BASE_URL", c.Server.BaseURL)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("ALLOW_REGISTRATION"); v != "" {
		c.Server.AllowRegistration = v == "true"
	}

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_DSN", c.Database.DSN)
	c.Database.LogLevel = getEnv("DB_LOG_LEVEL", c.Database.LogLevel)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)

	c.Numbering.QuotePattern = getEnv("QUOTE_NUMBER_PATTERN", c.Numbering.QuotePattern)
	c.Numbering.InvoicePattern = getEnv("INVOICE_NUMBER_PATTERN", c.Numbering.InvoicePattern)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}
	if c.Database.ConnectRetries == 0 {
		c.Database.ConnectRetries = 5
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Numbering.QuotePattern == "" {
		c.Numbering.QuotePattern = "Q{seq:04d}"
	}
	if c.Numbering.InvoicePattern == "" {
		c.Numbering.InvoicePattern = "I{seq:04d}"
	}
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	for _, p := range []string{c.Numbering.QuotePattern, c.Numbering.InvoicePattern} {
		if !strings.Contains(p, "{seq") {
			return fmt.Errorf("number pattern %q has no {seq} placeholder", p)
		}
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
