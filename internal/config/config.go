// Package config loads runtime settings through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the full runtime configuration tree.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Buffer     BufferConfig     `mapstructure:"buffer"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Format     FormatConfig     `mapstructure:"format"`
	Level      LevelConfig      `mapstructure:"level"`
	Sources    []SourceConfig   `mapstructure:"sources" validate:"dive"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// ServerConfig captures HTTP settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	Env  string `mapstructure:"env" validate:"oneof=development production"`
}

// BufferConfig bounds per-logger history.
type BufferConfig struct {
	Capacity int `mapstructure:"capacity" validate:"min=1"`
}

// StreamConfig tunes push delivery.
type StreamConfig struct {
	KeepAlive        time.Duration `mapstructure:"keep_alive" validate:"gt=0"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer" validate:"min=1"`
}

// SessionsConfig tunes the inactivity sweep.
type SessionsConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
}

// FormatConfig holds the timestamp layout.
type FormatConfig struct {
	Timestamp string `mapstructure:"timestamp" validate:"required"`
}

// LevelConfig holds the default severity threshold.
type LevelConfig struct {
	Default string `mapstructure:"default" validate:"oneof=DEBUG INFO WARNING ERROR CRITICAL"`
}

// SourceConfig tails files matching Pattern into logger Name.
type SourceConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Pattern string `mapstructure:"pattern" validate:"required"`
	Format  string `mapstructure:"format" validate:"omitempty,oneof=auto json clf regex"`
	Regex   string `mapstructure:"regex" validate:"required_if=Format regex"`
}

// CheckpointConfig locates tail offset files. Empty Dir disables checkpoints.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8050")
	v.SetDefault("server.env", "development")
	v.SetDefault("buffer.capacity", 1000)
	v.SetDefault("stream.keep_alive", 30*time.Second)
	v.SetDefault("stream.subscriber_buffer", 256)
	v.SetDefault("sessions.sweep_interval", 5*time.Minute)
	v.SetDefault("sessions.idle_timeout", time.Hour)
	v.SetDefault("format.timestamp", "2006-01-02 15:04:05.000000000")
	v.SetDefault("level.default", "INFO")
	v.SetDefault("checkpoint.dir", "")
}

// Load builds Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Level.Default = strings.ToUpper(strings.TrimSpace(cfg.Level.Default))
	for i := range cfg.Sources {
		if cfg.Sources[i].Format == "" {
			cfg.Sources[i].Format = "auto"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !Sortable(c.Format.Timestamp) {
		return fmt.Errorf("invalid config: timestamp layout %q does not sort in time order", c.Format.Timestamp)
	}
	return nil
}

// Sortable reports whether layout renders instants as strings whose
// lexicographic order matches time order down to the nanosecond. Polling
// watermarks compare timestamps as strings and stamps are only 1ns apart, so
// two instants one nanosecond apart must render as distinct, increasing strings.
func Sortable(layout string) bool {
	samples := []time.Time{
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 0, 0, 1, 0, time.UTC),
		time.Date(2000, 1, 1, 0, 1, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	prev := samples[0].Format(layout)
	for _, p := range samples[1:] {
		cur := p.Format(layout)
		if cur <= prev {
			return false
		}
		prev = cur
	}

	samples = append(samples,
		time.Date(2000, 1, 1, 0, 0, 0, 999999999, time.UTC),
		time.Date(2000, 1, 1, 0, 0, 0, 123456789, time.UTC),
		time.Date(2000, 1, 1, 0, 0, 0, 9, time.UTC),
	)
	for _, p := range samples {
		if p.Format(layout) >= p.Add(time.Nanosecond).Format(layout) {
			return false
		}
	}
	return true
}
