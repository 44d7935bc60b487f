package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultDownloadDir is the base directory used when nothing else is configured
const DefaultDownloadDir = "/app/downloads"

// Config holds all configuration options for the download service
type Config struct {
	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Instagram session
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration for upstream requests
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Addr              string        `yaml:"addr" json:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	MetricsEnabled    bool          `yaml:"metrics_enabled" json:"metrics_enabled"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	AppID     string `yaml:"app_id" json:"app_id"`
	// Account names a stored credential set to use when no cookies are configured
	Account string `yaml:"account" json:"account"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`

	// MediaBurst gives CDN video fetches their own bucket of this many per minute. Zero shares the API limit.
	MediaBurst int `yaml:"media_burst" json:"media_burst"`
}

// RetryConfig holds retry configuration for upstream requests
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory   string `yaml:"base_directory" json:"base_directory"`
	FileNamePattern string `yaml:"file_name_pattern" json:"file_name_pattern"`
	SaveMetadata    bool   `yaml:"save_metadata" json:"save_metadata"`
	SaveCaption     bool   `yaml:"save_caption" json:"save_caption"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	RequestTimeout      time.Duration `yaml:"request_timeout" json:"request_timeout"`
	SkipVideos          bool          `yaml:"skip_videos" json:"skip_videos"`
	VideoChunks         int           `yaml:"video_chunks" json:"video_chunks"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              "0.0.0.0:8000",
			ReadHeaderTimeout: 10 * time.Second,
			MaxBodyBytes:      64 << 10,
			MetricsEnabled:    true,
			ShutdownTimeout:   15 * time.Second,
		},
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			AppID:     "936619743392459",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		Output: OutputConfig{
			BaseDirectory:   DefaultDownloadDir,
			FileNamePattern: "{shortcode}",
			SaveMetadata:    true,
			SaveCaption:     true,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			RequestTimeout:      30 * time.Second,
			SkipVideos:          false,
			VideoChunks:         4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Server
	if addr := os.Getenv("IGLOADER_LISTEN_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if metrics := os.Getenv("IGLOADER_METRICS_ENABLED"); metrics != "" {
		c.Server.MetricsEnabled = strings.ToLower(metrics) == "true"
	}

	// Instagram session
	if sessionID := os.Getenv("IGLOADER_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("IGLOADER_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if userAgent := os.Getenv("IGLOADER_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}
	if account := os.Getenv("IGLOADER_ACCOUNT"); account != "" {
		c.Instagram.Account = account
	}

	// Rate limiting
	if rpm := os.Getenv("IGLOADER_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGLOADER_REQUESTS_PER_MINUTE: %w", err))
		} else if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if burst := os.Getenv("IGLOADER_MEDIA_BURST"); burst != "" {
		val, err := strconv.Atoi(burst)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGLOADER_MEDIA_BURST: %w", err))
		} else if val >= 0 {
			c.RateLimit.MediaBurst = val
		}
	}

	// Output directory. DOWNLOAD_DIR is the name used by container deployments.
	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		c.Output.BaseDirectory = dir
	}
	if dir := os.Getenv("IGLOADER_DOWNLOAD_DIR"); dir != "" {
		c.Output.BaseDirectory = dir
	}

	// Concurrent downloads
	if concurrent := os.Getenv("IGLOADER_CONCURRENT_DOWNLOADS"); concurrent != "" {
		val, err := strconv.Atoi(concurrent)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGLOADER_CONCURRENT_DOWNLOADS: %w", err))
		} else if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	// Logging
	if logLevel := os.Getenv("IGLOADER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("IGLOADER_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"igloader.yaml",
		"igloader.yml",
		".igloader.yaml",
		filepath.Join(home, ".config", "igloader", "config.yaml"),
		filepath.Join(home, ".igloader.yaml"),
		"/etc/igloader/config.yaml",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}

	// Cookies come in pairs
	if (c.Instagram.SessionID == "") != (c.Instagram.CSRFToken == "") {
		errs = append(errs, errors.New("Instagram session ID and CSRF token must be set together"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MediaBurst < 0 {
		errs = append(errs, errors.New("media burst must not be negative"))
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("retry max attempts must be positive"))
		}
		if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
			errs = append(errs, errors.New("retry delays are inconsistent"))
		}
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Output.FileNamePattern == "" || !strings.Contains(c.Output.FileNamePattern, "{shortcode}") {
		errs = append(errs, errors.New("file name pattern must contain {shortcode}"))
	}
	if strings.ContainsAny(c.Output.FileNamePattern, `/\`) {
		errs = append(errs, errors.New("file name pattern must not contain path separators"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	return errors.Join(errs...)
}

// Normalize resolves the download directory to an absolute, cleaned path
func (c *Config) Normalize() error {
	abs, err := filepath.Abs(c.Output.BaseDirectory)
	if err != nil {
		return fmt.Errorf("failed to resolve download directory: %w", err)
	}
	c.Output.BaseDirectory = abs
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if dir, ok := flags["download-dir"].(string); ok && dir != "" {
		c.Output.BaseDirectory = dir
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Instagram.Account = account
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if metrics, ok := flags["metrics"].(bool); ok {
		c.Server.MetricsEnabled = metrics
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igloader.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := config.Normalize(); err != nil {
		return nil, err
	}

	return config, nil
}
