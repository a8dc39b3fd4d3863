// Package config loads settings shared by the specdma tools from a YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ohwr/spec-dma/pkg/driver"
)

// Environment variables
const (
	EnvConfig      = "SPECDMA_CONFIG"
	EnvPCIID       = "SPECDMA_PCI_ID"
	EnvSegmentSize = "SPECDMA_SEGMENT_SIZE"
)

// ErrInvalidConfig is returned for values that fail validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the tool settings. Zero values select the defaults.
type Config struct {
	PCIID              string `yaml:"pci_id,omitempty"`
	DebugfsRoot        string `yaml:"debugfs_root,omitempty"`
	FirmwareSearchPath string `yaml:"firmware_search_path,omitempty"`
	SegmentSize        int64  `yaml:"segment_size,omitempty"`
	Verbose            bool   `yaml:"verbose,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		DebugfsRoot:        driver.DefaultDebugfsRoot,
		FirmwareSearchPath: driver.FirmwareSearchPath,
	}
}

// DefaultPath returns the per-user config file location, or "" when no
// config directory can be determined
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "specdma", "config.yaml")
}

// Load reads the config file at path, or at $SPECDMA_CONFIG or the
// default location when path is empty, and applies environment
// overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if path = os.Getenv(EnvConfig); path != "" {
			explicit = true
		} else {
			path = DefaultPath()
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if id := os.Getenv(EnvPCIID); id != "" {
		c.PCIID = id
	}
	if v := os.Getenv(EnvSegmentSize); v != "" {
		n, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvSegmentSize, v, err)
		}
		c.SegmentSize = n
	}
	return nil
}

// Validate checks the settings
func (c *Config) Validate() error {
	if c.SegmentSize < 0 || !driver.IsAligned(c.SegmentSize) {
		return fmt.Errorf("%w: segment_size %d must be a non-negative multiple of %d",
			ErrInvalidConfig, c.SegmentSize, driver.DDRAlign)
	}
	if c.SegmentSize > driver.DDRSize {
		return fmt.Errorf("%w: segment_size %d exceeds DDR size", ErrInvalidConfig, c.SegmentSize)
	}
	if c.DebugfsRoot == "" {
		return fmt.Errorf("%w: debugfs_root is empty", ErrInvalidConfig)
	}
	if c.FirmwareSearchPath == "" {
		return fmt.Errorf("%w: firmware_search_path is empty", ErrInvalidConfig)
	}
	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
