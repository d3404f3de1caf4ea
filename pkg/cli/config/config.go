package config

import (
	"errors"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/meetscribe/pkg/service/audio"
	"github.com/secmon-lab/meetscribe/pkg/service/tasksync"
	"github.com/secmon-lab/meetscribe/pkg/service/worker"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the application configuration file
type AppConfig struct {
	Upload   UploadConfig   `toml:"upload"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Sync     SyncConfig     `toml:"sync"`
	Cleanup  CleanupConfig  `toml:"cleanup"`

	path string
}

// UploadConfig limits accepted audio uploads
type UploadConfig struct {
	MaxSizeMB int64    `toml:"max_size_mb"`
	Formats   []string `toml:"formats"`
}

// PipelineConfig tunes meeting processing
type PipelineConfig struct {
	Language   string `toml:"language"`
	Workers    int    `toml:"workers"`
	MaxRetries int    `toml:"max_retries"`
}

// SyncConfig is the retry policy of task delivery to external trackers
type SyncConfig struct {
	MaxRetries  int    `toml:"max_retries"`
	BaseDelay   string `toml:"base_delay"`
	Concurrency int    `toml:"concurrency"`
}

// CleanupConfig controls removal of expired audio objects
type CleanupConfig struct {
	Retention string `toml:"retention"`
	Interval  string `toml:"interval"`
}

// DefaultAppConfig returns the configuration used when no file is given
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Upload: UploadConfig{
			MaxSizeMB: audio.DefaultMaxUploadSize >> 20,
			Formats:   append([]string(nil), audio.DefaultFormats...),
		},
		Pipeline: PipelineConfig{
			Language:   "en",
			Workers:    worker.DefaultWorkers,
			MaxRetries: 3,
		},
		Sync: SyncConfig{
			MaxRetries:  tasksync.DefaultMaxRetries,
			BaseDelay:   tasksync.DefaultBaseDelay.String(),
			Concurrency: tasksync.DefaultConcurrency,
		},
		Cleanup: CleanupConfig{
			Retention: worker.DefaultRetention.String(),
			Interval:  worker.DefaultCleanupInterval.String(),
		},
	}
}

func (a *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML configuration file",
			Sources:     cli.EnvVars("MEETSCRIBE_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the configuration file if one is set, otherwise the defaults
func (a *AppConfig) Configure() (*AppConfig, error) {
	if a.path == "" {
		return DefaultAppConfig(), nil
	}
	return LoadAppConfiguration(a.path)
}

// MaxUploadSize returns the upload limit in bytes
func (a *AppConfig) MaxUploadSize() int64 {
	return a.Upload.MaxSizeMB << 20
}

func (a *AppConfig) SyncBaseDelay() time.Duration {
	d, _ := time.ParseDuration(a.Sync.BaseDelay)
	return d
}

func (a *AppConfig) CleanupRetention() time.Duration {
	d, _ := time.ParseDuration(a.Cleanup.Retention)
	return d
}

func (a *AppConfig) CleanupInterval() time.Duration {
	d, _ := time.ParseDuration(a.Cleanup.Interval)
	return d
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if a.Upload.MaxSizeMB <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "upload size limit must be positive",
			goerr.V(FieldKey, "upload.max_size_mb"), goerr.V(ValueKey, a.Upload.MaxSizeMB))
	}
	if len(a.Upload.Formats) == 0 {
		return goerr.Wrap(ErrInvalidConfig, "at least one upload format is required",
			goerr.V(FieldKey, "upload.formats"))
	}
	for _, f := range a.Upload.Formats {
		if !isKnownFormat(f) {
			return goerr.Wrap(ErrInvalidConfig, "unsupported upload format",
				goerr.V(FieldKey, "upload.formats"), goerr.V(ValueKey, f))
		}
	}

	if a.Pipeline.Workers < 1 {
		return goerr.Wrap(ErrInvalidConfig, "pipeline workers must be at least 1",
			goerr.V(FieldKey, "pipeline.workers"), goerr.V(ValueKey, a.Pipeline.Workers))
	}
	if a.Pipeline.MaxRetries < 0 {
		return goerr.Wrap(ErrInvalidConfig, "pipeline retries must not be negative",
			goerr.V(FieldKey, "pipeline.max_retries"), goerr.V(ValueKey, a.Pipeline.MaxRetries))
	}

	if a.Sync.MaxRetries < 0 {
		return goerr.Wrap(ErrInvalidConfig, "sync retries must not be negative",
			goerr.V(FieldKey, "sync.max_retries"), goerr.V(ValueKey, a.Sync.MaxRetries))
	}
	if a.Sync.Concurrency < 1 {
		return goerr.Wrap(ErrInvalidConfig, "sync concurrency must be at least 1",
			goerr.V(FieldKey, "sync.concurrency"), goerr.V(ValueKey, a.Sync.Concurrency))
	}

	durations := map[string]string{
		"sync.base_delay":   a.Sync.BaseDelay,
		"cleanup.retention": a.Cleanup.Retention,
		"cleanup.interval":  a.Cleanup.Interval,
	}
	for field, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return goerr.Wrap(ErrInvalidDuration, "duration must be positive",
				goerr.V(FieldKey, field), goerr.V(ValueKey, value))
		}
	}

	return nil
}

func isKnownFormat(f string) bool {
	for _, known := range audio.DefaultFormats {
		if f == known {
			return true
		}
	}
	return false
}

// LoadAppConfiguration loads the application configuration from a TOML file.
// Keys missing from the file keep their default values.
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	config := DefaultAppConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}
	config.path = path

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return config, nil
}
