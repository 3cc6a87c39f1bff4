package config

import (
	_ "embed"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

//go:embed schema.json
var schemaJSON string

// fileConfig mirrors the YAML layout. Pointer fields distinguish "unset"
// from zero values so only keys present in the file override defaults.
type fileConfig struct {
	Version *string `yaml:"version"`

	Server struct {
		Port            *string `yaml:"port"`
		ReadTimeout     *string `yaml:"read_timeout"`
		WriteTimeout    *string `yaml:"write_timeout"`
		IdleTimeout     *string `yaml:"idle_timeout"`
		ShutdownTimeout *string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Paths struct {
		FFmpeg         *string `yaml:"ffmpeg"`
		Spotdl         *string `yaml:"spotdl"`
		DownloadFolder *string `yaml:"download_folder"`
	} `yaml:"paths"`

	Download struct {
		Isolate        *bool   `yaml:"isolate"`
		ProcessTimeout *string `yaml:"process_timeout"`
	} `yaml:"download"`

	Log struct {
		Dir    *string `yaml:"dir"`
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`

	CORS struct {
		Enabled        *bool    `yaml:"enabled"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		AllowedMethods []string `yaml:"allowed_methods"`
		AllowedHeaders []string `yaml:"allowed_headers"`
		ExposedHeaders []string `yaml:"exposed_headers"`
		MaxAge         *int     `yaml:"max_age"`
	} `yaml:"cors"`

	RateLimit struct {
		Enabled  *bool   `yaml:"enabled"`
		Burst    *int    `yaml:"burst"`
		Interval *string `yaml:"interval"`
	} `yaml:"rate_limit"`
}

// readFile loads and validates the YAML config file at path.
func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid YAML")
	}
	if raw == nil {
		return &fileConfig{}, nil
	}

	schema, err := jsonschema.CompileString("config.schema.json", schemaJSON)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile config schema")
	}

	if err := schema.Validate(raw); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config file")
	}

	return &fc, nil
}

func applyFile(cfg *Config, path string) error {
	fc, err := readFile(path)
	if err != nil {
		return err
	}

	setString(&cfg.Version, fc.Version)

	setString(&cfg.ServerPort, fc.Server.Port)
	durations := []struct {
		key   string
		value *string
		dst   *time.Duration
	}{
		{"server.read_timeout", fc.Server.ReadTimeout, &cfg.ReadTimeout},
		{"server.write_timeout", fc.Server.WriteTimeout, &cfg.WriteTimeout},
		{"server.idle_timeout", fc.Server.IdleTimeout, &cfg.IdleTimeout},
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"download.process_timeout", fc.Download.ProcessTimeout, &cfg.ProcessTimeout},
		{"rate_limit.interval", fc.RateLimit.Interval, &cfg.RateLimit.Interval},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration for %s", d.key)
		}
		*d.dst = parsed
	}

	setString(&cfg.FFmpegPath, fc.Paths.FFmpeg)
	setString(&cfg.SpotdlPath, fc.Paths.Spotdl)
	setString(&cfg.DownloadFolder, fc.Paths.DownloadFolder)

	setBool(&cfg.IsolateDownloads, fc.Download.Isolate)

	setString(&cfg.LogDir, fc.Log.Dir)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)

	setBool(&cfg.CORS.Enabled, fc.CORS.Enabled)
	setSlice(&cfg.CORS.AllowedOrigins, fc.CORS.AllowedOrigins)
	setSlice(&cfg.CORS.AllowedMethods, fc.CORS.AllowedMethods)
	setSlice(&cfg.CORS.AllowedHeaders, fc.CORS.AllowedHeaders)
	setSlice(&cfg.CORS.ExposedHeaders, fc.CORS.ExposedHeaders)
	if fc.CORS.MaxAge != nil {
		cfg.CORS.MaxAge = *fc.CORS.MaxAge
	}

	setBool(&cfg.RateLimit.Enabled, fc.RateLimit.Enabled)
	if fc.RateLimit.Burst != nil {
		cfg.RateLimit.Burst = *fc.RateLimit.Burst
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setSlice(dst *[]string, v []string) {
	if v != nil {
		*dst = v
	}
}
