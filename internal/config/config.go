// Package config loads the server configuration from flags, environment
// variables (prefix STAMPER_) and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go-pdfstamper/internal/pdf"
)

const (
	EnvPrefix = "STAMPER"

	DefaultHost            = ""
	DefaultPort            = 8080
	DefaultUploadDir       = "uploads"
	DefaultOutputDir       = "output"
	DefaultMaxUploadSize   = 25 * 1024 * 1024
	DefaultMaxImageSize    = 5 * 1024 * 1024
	DefaultSessionTTL      = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute

	DefaultDirPerm = 0o750
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int

	UploadDir string
	OutputDir string

	MaxUploadSize int64
	MaxImageSize  int64

	SessionTTL      time.Duration
	CleanupInterval time.Duration

	// DefaultFont is applied to jobs that do not name a font.
	DefaultFont string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		UploadDir:       DefaultUploadDir,
		OutputDir:       DefaultOutputDir,
		MaxUploadSize:   DefaultMaxUploadSize,
		MaxImageSize:    DefaultMaxImageSize,
		SessionTTL:      DefaultSessionTTL,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// Load reads .env, then parses args (without the program name) on top of
// environment variables and defaults.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	v := viper.New()
	setupViperEnvironment(v, cfg)

	fs := pflag.NewFlagSet("stamper-api", pflag.ContinueOnError)
	defineFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	populateConfig(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// PORT without prefix keeps working for platform deployments.
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("upload-dir", cfg.UploadDir)
	v.SetDefault("output-dir", cfg.OutputDir)
	v.SetDefault("max-upload-size", cfg.MaxUploadSize)
	v.SetDefault("max-image-size", cfg.MaxImageSize)
	v.SetDefault("session-ttl", cfg.SessionTTL)
	v.SetDefault("cleanup-interval", cfg.CleanupInterval)
	v.SetDefault("default-font", cfg.DefaultFont)
}

func defineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("host", cfg.Host, "Address to listen on (empty for all interfaces)")
	fs.Int("port", cfg.Port, "Port to listen on")
	fs.String("upload-dir", cfg.UploadDir, "Directory for uploaded templates and images")
	fs.String("output-dir", cfg.OutputDir, "Directory for stamped documents")
	fs.Int64("max-upload-size", cfg.MaxUploadSize, "Maximum template upload size in bytes")
	fs.Int64("max-image-size", cfg.MaxImageSize, "Maximum image upload size in bytes")
	fs.Duration("session-ttl", cfg.SessionTTL, "Lifetime of an upload session")
	fs.Duration("cleanup-interval", cfg.CleanupInterval, "Interval between expired session sweeps")
	fs.String("default-font", cfg.DefaultFont, "Standard font applied when a job names none")
}

func populateConfig(v *viper.Viper, cfg *Config) {
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.UploadDir = v.GetString("upload-dir")
	cfg.OutputDir = v.GetString("output-dir")
	cfg.MaxUploadSize = v.GetInt64("max-upload-size")
	cfg.MaxImageSize = v.GetInt64("max-image-size")
	cfg.SessionTTL = v.GetDuration("session-ttl")
	cfg.CleanupInterval = v.GetDuration("cleanup-interval")
	cfg.DefaultFont = v.GetString("default-font")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.UploadDir == "" || c.OutputDir == "" {
		return errors.New("upload and output directories cannot be empty")
	}
	if c.MaxUploadSize <= 0 || c.MaxImageSize <= 0 {
		return errors.New("maximum upload sizes must be positive")
	}
	if c.SessionTTL <= 0 || c.CleanupInterval <= 0 {
		return errors.New("session ttl and cleanup interval must be positive")
	}
	if c.DefaultFont != "" && !pdf.IsStandardFont(c.DefaultFont) {
		return fmt.Errorf("default font %q is not a standard font", c.DefaultFont)
	}
	return nil
}

// EnsureDirs creates the upload and output directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadDir, c.OutputDir} {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
