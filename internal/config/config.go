// Package config loads rmlearn settings from YAML files and RMLEARN_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Naming strategies. Mirrors the identifiers accepted by the learn package.
const (
	NamingLength    = "length"
	NamingMonotonic = "monotonic"
)

type Config struct {
	DataDir        string         `yaml:"data_dir" mapstructure:"data_dir"`
	SettingsDB     string         `yaml:"settings_db" mapstructure:"settings_db"`
	Catalog        string         `yaml:"catalog" mapstructure:"catalog"`
	Debounce       time.Duration  `yaml:"debounce" mapstructure:"debounce"`
	CaptureTimeout time.Duration  `yaml:"capture_timeout" mapstructure:"capture_timeout"`
	NoticeTTL      time.Duration  `yaml:"notice_ttl" mapstructure:"notice_ttl"`
	Naming         string         `yaml:"naming" mapstructure:"naming"`
	Debug          DebugConfig    `yaml:"debug" mapstructure:"debug"`
	Devices        []DeviceConfig `yaml:"devices" mapstructure:"devices"`

	file string
}

type DebugConfig struct {
	// Logging enables debug-level logs.
	Logging bool `yaml:"logging" mapstructure:"logging"`
	// Compat accepts device types that do not match their model.
	Compat bool `yaml:"compat" mapstructure:"compat"`
}

type DeviceConfig struct {
	ID   string `yaml:"id" mapstructure:"id"`
	Name string `yaml:"name" mapstructure:"name"`
	// Type is the device type code, hex ("0x5f36") or decimal.
	Type  string `yaml:"type" mapstructure:"type"`
	Model string `yaml:"model,omitempty" mapstructure:"model"`
	// Simulate is a transport simulator script.
	Simulate string `yaml:"simulate,omitempty" mapstructure:"simulate"`
	// Speech prints prompts as spoken lines instead of warnings.
	Speech bool `yaml:"speech,omitempty" mapstructure:"speech"`
}

// TypeCode parses Type.
func (d DeviceConfig) TypeCode() (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(d.Type), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("device %s: invalid type %q", d.ID, d.Type)
	}
	return int(n), nil
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:        defaultDataDir(),
		Debounce:       300 * time.Millisecond,
		CaptureTimeout: 30 * time.Second,
		NoticeTTL:      5 * time.Second,
		Naming:         NamingMonotonic,
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "rmlearn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "rmlearn")
}

// Load reads the config file at path, or searches ".",
// $XDG_CONFIG_HOME/rmlearn and ~/.config/rmlearn for rmlearn.yaml when
// path is empty. A missing file in the search path is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("settings_db", "")
	v.SetDefault("catalog", "")
	v.SetDefault("debounce", cfg.Debounce)
	v.SetDefault("capture_timeout", cfg.CaptureTimeout)
	v.SetDefault("notice_ttl", cfg.NoticeTTL)
	v.SetDefault("naming", cfg.Naming)
	v.SetDefault("debug.logging", false)
	v.SetDefault("debug.compat", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rmlearn")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "rmlearn"))
		}
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "rmlearn"))
	}

	v.SetEnvPrefix("RMLEARN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// File returns the config file that was read, or "".
func (c *Config) File() string {
	return c.file
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.SettingsDB == "" {
		c.SettingsDB = filepath.Join(c.DataDir, "settings.db")
	} else if !filepath.IsAbs(c.SettingsDB) && c.SettingsDB != ":memory:" {
		c.SettingsDB = filepath.Join(c.DataDir, c.SettingsDB)
	}

	if c.Naming != NamingLength && c.Naming != NamingMonotonic {
		return fmt.Errorf("config: naming %q is invalid (must be %s or %s)", c.Naming, NamingLength, NamingMonotonic)
	}
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = 30 * time.Second
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = 5 * time.Second
	}

	seen := map[string]bool{}
	for i := range c.Devices {
		d := &c.Devices[i]
		d.ID = strings.ToLower(strings.TrimSpace(d.ID))
		if d.ID == "" {
			return fmt.Errorf("config: devices[%d]: id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("config: device %s is listed twice", d.ID)
		}
		seen[d.ID] = true
		if _, err := d.TypeCode(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if d.Simulate != "" && !filepath.IsAbs(d.Simulate) && c.file != "" {
			d.Simulate = filepath.Join(filepath.Dir(c.file), d.Simulate)
		}
	}
	return nil
}

// Device returns the device with id, matched case-insensitively.
func (c *Config) Device(id string) (DeviceConfig, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// fileConfig is the on-disk shape written by Save; durations are strings.
type fileConfig struct {
	DataDir        string         `yaml:"data_dir"`
	SettingsDB     string         `yaml:"settings_db,omitempty"`
	Catalog        string         `yaml:"catalog,omitempty"`
	Debounce       string         `yaml:"debounce"`
	CaptureTimeout string         `yaml:"capture_timeout"`
	NoticeTTL      string         `yaml:"notice_ttl"`
	Naming         string         `yaml:"naming"`
	Debug          DebugConfig    `yaml:"debug"`
	Devices        []DeviceConfig `yaml:"devices"`
}

// Marshal returns c in the YAML file format.
func (c *Config) Marshal() ([]byte, error) {
	devices := c.Devices
	if devices == nil {
		devices = []DeviceConfig{}
	}
	data, err := yaml.Marshal(fileConfig{
		DataDir:        c.DataDir,
		SettingsDB:     c.SettingsDB,
		Catalog:        c.Catalog,
		Debounce:       c.Debounce.String(),
		CaptureTimeout: c.CaptureTimeout.String(),
		NoticeTTL:      c.NoticeTTL.String(),
		Naming:         c.Naming,
		Debug:          c.Debug,
		Devices:        devices,
	})
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return data, nil
}

// Save writes c as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DefaultPath is where config init writes when no path is given.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rmlearn", "rmlearn.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rmlearn", "rmlearn.yaml")
}
