package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Library  LibraryConfig  `mapstructure:"library"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress"`
}

// LibraryConfig holds library model configuration.
type LibraryConfig struct {
	SeedPath      string        `mapstructure:"seedPath"`
	PageSize      int           `mapstructure:"pageSize"`
	UploadDelay   time.Duration `mapstructure:"uploadDelay"`
	UploadTimeout time.Duration `mapstructure:"uploadTimeout"`
	ThumbnailSize int           `mapstructure:"thumbnailSize"`
}

// SessionsConfig holds per-browser session configuration.
type SessionsConfig struct {
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`
	SweepCron   string        `mapstructure:"sweepCron"`
	MaxSessions int           `mapstructure:"maxSessions"`
}

// UploadsConfig holds upload throttling configuration.
type UploadsConfig struct {
	RequestsPerMinute int `mapstructure:"requestsPerMinute"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Library: LibraryConfig{
			PageSize:      10,
			UploadDelay:   800 * time.Millisecond,
			UploadTimeout: 30 * time.Second,
			ThumbnailSize: 160,
		},
		Sessions: SessionsConfig{
			IdleTimeout: 2 * time.Hour,
			SweepCron:   "*/10 * * * *",
			MaxSessions: 1000,
		},
		Uploads: UploadsConfig{
			RequestsPerMinute: 30,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables (.env included) > config file > defaults
func Load(configPath string) (*Config, error) {
	// A .env file in the working directory is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediashelf")
	}

	// Environment variable settings
	v.SetEnvPrefix("MEDIASHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.maxSizeMB", d.Logging.MaxSizeMB)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("logging.maxAgeDays", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	// Library defaults
	v.SetDefault("library.seedPath", d.Library.SeedPath)
	v.SetDefault("library.pageSize", d.Library.PageSize)
	v.SetDefault("library.uploadDelay", d.Library.UploadDelay)
	v.SetDefault("library.uploadTimeout", d.Library.UploadTimeout)
	v.SetDefault("library.thumbnailSize", d.Library.ThumbnailSize)

	// Session defaults
	v.SetDefault("sessions.idleTimeout", d.Sessions.IdleTimeout)
	v.SetDefault("sessions.sweepCron", d.Sessions.SweepCron)
	v.SetDefault("sessions.maxSessions", d.Sessions.MaxSessions)

	// Upload defaults
	v.SetDefault("uploads.requestsPerMinute", d.Uploads.RequestsPerMinute)
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Library.PageSize <= 0 {
		return fmt.Errorf("library.pageSize must be positive, got %d", c.Library.PageSize)
	}
	if c.Library.UploadDelay < 0 {
		return fmt.Errorf("library.uploadDelay must not be negative")
	}
	if c.Library.ThumbnailSize <= 0 {
		return fmt.Errorf("library.thumbnailSize must be positive, got %d", c.Library.ThumbnailSize)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Version is set at build time with -ldflags "-X github.com/mediashelf/mediashelf/internal/config.Version=..."
var Version = "dev"
