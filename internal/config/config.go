// Package config loads the timer configuration from a TOML file and builds
// the ambient logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/pelletier/go-toml/v2"

	"github.com/randomizedcoder/intervaltimer/internal/clock"
	"github.com/randomizedcoder/intervaltimer/internal/feed"
	"github.com/randomizedcoder/intervaltimer/internal/timer"
)

// DefaultPath is the file Load reads when no path is given.
const DefaultPath = "intervaltimer.toml"

// Config represents the intervaltimer.toml configuration file
type Config struct {
	Timer TimerConfig `toml:"timer"`
	Log   LogConfig   `toml:"log"`
	Host  HostConfig  `toml:"host"`
}

type TimerConfig struct {
	// Initial countdown target
	DurationMs uint16 `toml:"duration_ms"`
	// Ceiling for the host's duration slider
	MaxDurationMs uint16 `toml:"max_duration_ms"`
	// Dispatcher tick
	IntervalMs int `toml:"interval_ms"`
	// Start counting as soon as the timer is created
	AutoStart bool `toml:"auto_start"`
	// Event feed: "sharded" (lock-free, per-producer order) or "channel"
	// (one publish order across producers)
	Feed string `toml:"feed"`
}

type LogConfig struct {
	// One of trace, debug, info, notice, warning, error, critical, disabled
	Level string `toml:"level"`
}

type HostConfig struct {
	// Redraw frames per second while a countdown is in progress
	FrameRate int `toml:"frame_rate"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Timer: TimerConfig{
			DurationMs:    timer.DefaultDuration,
			MaxDurationMs: 30000,
			IntervalMs:    100,
			AutoStart:     true,
			Feed:          feed.NameSharded,
		},
		Log: LogConfig{
			Level: "info",
		},
		Host: HostConfig{
			FrameRate: 30,
		},
	}
}

// Load reads the configuration at path, falling back to DefaultPath when
// path is empty. A missing file yields Default. Keys absent from the file
// keep their default values.
func Load(path string) (Config, error) {
	config := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid %s: %w", path, err)
	}
	return config, nil
}

// Save writes the configuration to path.
func Save(path string, config Config) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Timer.IntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("timer.interval_ms must be positive, got %d", c.Timer.IntervalMs))
	}
	if c.Timer.DurationMs > c.Timer.MaxDurationMs {
		errs = append(errs, fmt.Errorf("timer.duration_ms %d exceeds timer.max_duration_ms %d",
			c.Timer.DurationMs, c.Timer.MaxDurationMs))
	}
	if c.Timer.Feed != feed.NameSharded && c.Timer.Feed != feed.NameChannel {
		errs = append(errs, fmt.Errorf("timer.feed must be %q or %q, got %q",
			feed.NameSharded, feed.NameChannel, c.Timer.Feed))
	}
	if c.Host.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("host.frame_rate must be positive, got %d", c.Host.FrameRate))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Interval returns the dispatcher tick interval.
func (c TimerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// ClampDuration limits ms to the slider ceiling.
func (c TimerConfig) ClampDuration(ms uint16) uint16 {
	return min(ms, c.MaxDurationMs)
}

// FrameInterval returns the redraw period.
func (c HostConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// TimerOptions returns the controller options described by the
// configuration, including a new event feed.
func (c Config) TimerOptions(logger *logiface.Logger[logiface.Event]) ([]timer.Option, error) {
	f, err := feed.NewNamed(c.Timer.Feed)
	if err != nil {
		return nil, err
	}
	return []timer.Option{
		timer.WithDuration(c.Timer.DurationMs),
		timer.WithInterval(c.Timer.Interval()),
		timer.WithAutoStart(c.Timer.AutoStart),
		timer.WithFeed(f),
		timer.WithLogger(logger),
	}, nil
}

// ParseLevel converts a level name to a logiface.Level.
func ParseLevel(name string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "disabled", "off":
		return logiface.LevelDisabled, nil
	case "critical", "crit":
		return logiface.LevelCritical, nil
	case "error", "err":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", name)
}

// Logger builds a JSON logger writing to w at the configured level.
func (c LogConfig) Logger(w io.Writer) (*logiface.Logger[logiface.Event], error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
			stumpy.WithTimeField(`time`),
		),
		stumpy.L.WithLevel(level),
	).Logger(), nil
}

// SliderDuration converts a host slider position in seconds to a clamped
// millisecond target. Fractions of a second are dropped.
func (c TimerConfig) SliderDuration(seconds float64) uint16 {
	if !(seconds > 0) {
		return 0
	}
	ms := math.Trunc(seconds) * 1000
	if ms >= clock.MaxMillis {
		return c.ClampDuration(clock.MaxMillis)
	}
	return c.ClampDuration(uint16(ms))
}
