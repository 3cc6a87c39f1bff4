package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Server settings
	ServerPort      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Version         string

	// External tools and output location. Absolute after Load.
	FFmpegPath     string
	SpotdlPath     string
	DownloadFolder string

	// Download behavior
	IsolateDownloads bool
	ProcessTimeout   time.Duration

	// Logging
	LogDir    string
	LogLevel  string
	LogFormat string

	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         int
}

type RateLimitConfig struct {
	Enabled  bool
	Burst    int
	Interval time.Duration
}

// Default returns the built-in configuration. Paths are still relative.
func Default() *Config {
	ffmpeg, spotdl := defaultToolPaths(runtime.GOOS)
	return &Config{
		ServerPort:      "8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Version:         "1.0.0",

		FFmpegPath:     ffmpeg,
		SpotdlPath:     spotdl,
		DownloadFolder: "temp",

		IsolateDownloads: true,
		ProcessTimeout:   0,

		LogDir:    "logs",
		LogLevel:  "info",
		LogFormat: "text",

		CORS: CORSConfig{
			Enabled:        false,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
			MaxAge:         86400,
		},

		RateLimit: RateLimitConfig{
			Enabled:  false,
			Burst:    5,
			Interval: 1 * time.Second,
		},
	}
}

func defaultToolPaths(goos string) (ffmpeg, spotdl string) {
	if goos == "windows" {
		return filepath.Join("ffmpeg", "bin", "ffmpeg.exe"), filepath.Join("venv", "Scripts", "spotdl.exe")
	}
	return filepath.Join("ffmpeg", "bin", "ffmpeg"), filepath.Join("venv", "bin", "spotdl")
}

// Load builds the configuration from defaults, the optional YAML file at
// path (or CONFIG_FILE when path is empty) and the environment, in that
// order of precedence. Filesystem paths are resolved against the working
// directory and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = GetEnv("CONFIG_FILE", "")
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ServerPort = GetEnv("SERVER_PORT", cfg.ServerPort)
	cfg.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.Version = GetEnv("VERSION", cfg.Version)

	cfg.FFmpegPath = GetEnv("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.SpotdlPath = GetEnv("SPOTDL_PATH", cfg.SpotdlPath)
	cfg.DownloadFolder = GetEnv("DOWNLOAD_FOLDER", cfg.DownloadFolder)

	cfg.IsolateDownloads = getEnvAsBool("ISOLATE_DOWNLOADS", cfg.IsolateDownloads)
	cfg.ProcessTimeout = getEnvAsDuration("PROCESS_TIMEOUT", cfg.ProcessTimeout)

	cfg.LogDir = GetEnv("LOG_DIR", cfg.LogDir)
	cfg.LogLevel = GetEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = GetEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.CORS.Enabled = getEnvAsBool("CORS_ENABLED", cfg.CORS.Enabled)
	cfg.CORS.AllowedOrigins = getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.RateLimit.Enabled = getEnvAsBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT", cfg.RateLimit.Burst)
	cfg.RateLimit.Interval = getEnvAsDuration("RATE_LIMIT_INTERVAL", cfg.RateLimit.Interval)
}

func (c *Config) resolvePaths() error {
	paths := []struct {
		name  string
		value *string
	}{
		{"ffmpeg path", &c.FFmpegPath},
		{"spotdl path", &c.SpotdlPath},
		{"download folder", &c.DownloadFolder},
	}

	for _, p := range paths {
		if *p.value == "" {
			continue
		}
		abs, err := filepath.Abs(*p.value)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s", p.name)
		}
		*p.value = abs
	}
	return nil
}

// PrepareDirs creates the default download folder.
func (c *Config) PrepareDirs() error {
	if err := os.MkdirAll(c.DownloadFolder, 0o755); err != nil {
		return errors.Wrap(err, "failed to create download folder")
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return defaultValue
}

func ValidateConfig(cfg *Config) error {
	if cfg.ServerPort == "" {
		return errors.New("server port is required")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.WriteTimeout < 0 {
		return errors.New("write timeout must not be negative")
	}
	if cfg.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be greater than 0")
	}
	if cfg.ProcessTimeout < 0 {
		return errors.New("process timeout must not be negative")
	}
	if cfg.FFmpegPath == "" {
		return errors.New("ffmpeg path is required")
	}
	if cfg.SpotdlPath == "" {
		return errors.New("spotdl path is required")
	}
	if cfg.DownloadFolder == "" {
		return errors.New("download folder is required")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return errors.Errorf("log format must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Burst <= 0 {
			return errors.New("rate limit must be greater than 0")
		}
		if cfg.RateLimit.Interval <= 0 {
			return errors.New("rate limit interval must be greater than 0")
		}
	}
	return nil
}
