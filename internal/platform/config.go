package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/memovault/pkg/registry"
)

// ConfigFileName is the optional per-vault configuration file.
const ConfigFileName = "memovault.yaml"

// FileConfig mirrors memovault.yaml. Sizes accept human units ("5 MiB"),
// durations Go syntax ("1500ms").
type FileConfig struct {
	Adapter       string        `yaml:"adapter,omitempty"`
	DSN           string        `yaml:"dsn,omitempty"`
	SystemDir     string        `yaml:"system_dir,omitempty"`
	KeepSnapshots int           `yaml:"keep_snapshots,omitempty"`
	Locale        string        `yaml:"locale,omitempty"`
	Quota         string        `yaml:"quota,omitempty"`
	SaveDelay     string        `yaml:"save_delay,omitempty"`
	Limits        *LimitsConfig `yaml:"limits,omitempty"`
}

// LimitsConfig overrides the attachment upload limits.
type LimitsConfig struct {
	MaxImageSize string `yaml:"max_image_size,omitempty"`
	MaxFileSize  string `yaml:"max_file_size,omitempty"`
	MaxFiles     int    `yaml:"max_files,omitempty"`
}

// LoadConfig reads memovault.yaml from dir. A missing file yields
// (nil, nil).
func LoadConfig(dir string) (*FileConfig, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Options converts the file into options. They are meant to be applied
// before the caller's own, so explicit options win.
func (c *FileConfig) Options() ([]Option, error) {
	if c == nil {
		return nil, nil
	}
	var opts []Option

	if c.Adapter != "" {
		opts = append(opts, WithAdapter(c.Adapter))
	}
	if c.DSN != "" {
		opts = append(opts, WithDSN(os.ExpandEnv(c.DSN)))
	}
	if c.SystemDir != "" {
		opts = append(opts, WithSystemDir(c.SystemDir))
	}
	if c.KeepSnapshots > 0 {
		opts = append(opts, WithKeepSnapshots(c.KeepSnapshots))
	}
	if c.Locale != "" {
		tag, err := language.Parse(c.Locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", c.Locale, err)
		}
		opts = append(opts, WithLocale(tag))
	}
	if c.Quota != "" {
		n, err := humanize.ParseBytes(c.Quota)
		if err != nil {
			return nil, fmt.Errorf("invalid quota %q: %w", c.Quota, err)
		}
		opts = append(opts, WithQuota(n))
	}
	if c.SaveDelay != "" {
		d, err := time.ParseDuration(c.SaveDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid save_delay %q: %w", c.SaveDelay, err)
		}
		opts = append(opts, WithSaveDelay(d))
	}
	if c.Limits != nil {
		limits := registry.DefaultLimits
		if c.Limits.MaxImageSize != "" {
			n, err := humanize.ParseBytes(c.Limits.MaxImageSize)
			if err != nil {
				return nil, fmt.Errorf("invalid max_image_size %q: %w", c.Limits.MaxImageSize, err)
			}
			limits.MaxImageBytes = int64(n)
		}
		if c.Limits.MaxFileSize != "" {
			n, err := humanize.ParseBytes(c.Limits.MaxFileSize)
			if err != nil {
				return nil, fmt.Errorf("invalid max_file_size %q: %w", c.Limits.MaxFileSize, err)
			}
			limits.MaxFileBytes = int64(n)
		}
		if c.Limits.MaxFiles > 0 {
			limits.MaxFiles = c.Limits.MaxFiles
		}
		opts = append(opts, WithLimits(limits))
	}
	return opts, nil
}
