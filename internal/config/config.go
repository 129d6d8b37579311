// Package config loads ipreporter settings using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ipreporter/internal/log"
	"ipreporter/internal/reporting"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. IPREPORTER_CAPTURE_INTERFACE.
const EnvPrefix = "IPREPORTER"

// Config is the full runtime configuration.
type Config struct {
	Log     log.LoggerConfig `mapstructure:"log"`
	Capture CaptureConfig    `mapstructure:"capture"`
	Export  ExportConfig     `mapstructure:"export"`
	UI      UIConfig         `mapstructure:"ui"`
}

// CaptureConfig selects where frames come from.
type CaptureConfig struct {
	Interface   string        `mapstructure:"interface"` // Empty = first non-loopback device
	SnapLen     int           `mapstructure:"snap_len"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Promiscuous bool          `mapstructure:"promiscuous"`
	ReplayFile  string        `mapstructure:"replay_file"` // Read frames from a pcap file instead of a device
	DumpFile    string        `mapstructure:"dump_file"`   // Append matched frames to a pcap file
}

// ExportConfig is where the export action writes by default.
type ExportConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"` // txt | html
}

type UIConfig struct {
	Refresh  time.Duration `mapstructure:"refresh"`
	Headless bool          `mapstructure:"headless"`
}

// Load reads configuration from path, if given, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults are static, so decoding cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.console", false)

	// Capture defaults
	v.SetDefault("capture.interface", "")
	v.SetDefault("capture.snap_len", 65536)
	v.SetDefault("capture.timeout", "1s")
	v.SetDefault("capture.promiscuous", true)
	v.SetDefault("capture.replay_file", "")
	v.SetDefault("capture.dump_file", "")

	// Export defaults
	v.SetDefault("export.path", "ip_report.txt")
	v.SetDefault("export.format", reporting.FormatText)

	// UI defaults
	v.SetDefault("ui.refresh", "250ms")
	v.SetDefault("ui.headless", false)
}

// Validate rejects values the capture and export paths cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Capture.SnapLen <= 0 {
		errs = append(errs, fmt.Errorf("capture.snap_len must be positive, got %d", c.Capture.SnapLen))
	}
	if c.Capture.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("capture.timeout must be positive, got %s", c.Capture.Timeout))
	}
	switch c.Export.Format {
	case reporting.FormatText, reporting.FormatHTML:
	default:
		errs = append(errs, fmt.Errorf("export.format: %w: %q", reporting.ErrUnsupportedFormat, c.Export.Format))
	}
	if c.UI.Refresh <= 0 {
		errs = append(errs, fmt.Errorf("ui.refresh must be positive, got %s", c.UI.Refresh))
	}
	return errors.Join(errs...)
}
