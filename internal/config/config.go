// Package config loads queuectl settings from queuectl.yaml and
// QUEUECTL_* environment variables, with documented defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/queuectl/pkg/queuestore"
)

// Config is the process-level configuration. Per-queue settings live in the
// database config table instead, so every process sharing the queue sees
// the same values. Of its recognized keys only backoff_base is read by the
// queue (on each failure); max_retries and worker_timeout are stored and
// listed but do not change job defaults or timeouts.
type Config struct {
	DBPath    string          `mapstructure:"db_path"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Verbose   bool            `mapstructure:"verbose"`
}

type WorkerConfig struct {
	Count         int           `mapstructure:"count"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ReapThreshold time.Duration `mapstructure:"reap_threshold"`
}

type DashboardConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads queuectl.yaml from the working directory (optional) and
// applies QUEUECTL_* environment overrides, e.g. QUEUECTL_DB_PATH or
// QUEUECTL_WORKER_COUNT.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("queuectl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("db_path", queuestore.DefaultPath)
	v.SetDefault("worker.count", 3)
	v.SetDefault("worker.poll_interval", time.Second)
	v.SetDefault("worker.reap_threshold", 10*time.Minute)
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("QUEUECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeDurations := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeDurations); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Worker.Count <= 0 {
		return nil, fmt.Errorf("worker.count must be positive, got %d", cfg.Worker.Count)
	}
	if cfg.Dashboard.Port <= 0 || cfg.Dashboard.Port > 65535 {
		return nil, fmt.Errorf("dashboard.port out of range: %d", cfg.Dashboard.Port)
	}

	return &cfg, nil
}
