// Package config loads padawan's settings by layering YAML files over
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/padawan/pkg/bridge"
	"github.com/ormasoftchile/padawan/pkg/fragment"
	"github.com/ormasoftchile/padawan/pkg/logging"
)

// For mocking in tests.
var (
	osUserHomeDir = os.UserHomeDir
	osGetwd       = os.Getwd
)

const (
	userConfigDir    = ".config/padawan"
	projectConfigDir = ".padawan"
	configFileName   = "config.yaml"
)

// DefaultMaxSteps bounds a single fragment run, so a runaway loop sent over
// the bridge fails instead of stalling the workbench.
const DefaultMaxSteps = 100_000_000

// Config is the merged configuration.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Dialect  string       `yaml:"dialect"`
	Bridge   BridgeConfig `yaml:"bridge"`
	Watch    WatchConfig  `yaml:"watch"`

	// Sources lists the files that contributed, lowest precedence first.
	Sources []string `yaml:"-"`
}

// BridgeConfig configures the test-mode pipes.
type BridgeConfig struct {
	Dir              string        `yaml:"dir"`
	Base             string        `yaml:"base"`
	Interval         time.Duration `yaml:"interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// MaxSteps bounds the work of one fragment run. Zero means unbounded.
	MaxSteps uint64 `yaml:"max_steps"`
}

// WatchConfig configures the re-check watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Dialect:  fragment.DialectStarlark,
		Bridge: BridgeConfig{
			Base:     bridge.DefaultBase,
			Interval: bridge.DefaultInterval,
			MaxSteps: DefaultMaxSteps,
		},
		Watch: WatchConfig{Debounce: 200 * time.Millisecond},
	}
}

// Load layers the user file, the project file and then explicit (if not
// empty) over the defaults. Missing user and project files are skipped; a
// missing explicit file is an error.
func Load(explicit string) (Config, error) {
	cfg := Default()

	for _, locate := range []func() (string, error){userConfigPath, projectConfigPath} {
		path, err := locate()
		if err != nil {
			// Optional layer; its location is unknowable here.
			continue
		}
		if err := cfg.apply(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, err
		}
	}
	if explicit != "" {
		if err := cfg.apply(explicit); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

// apply decodes the file at path over c, so only the keys it sets change.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.Sources = append(c.Sources, path)
	return nil
}

// Validate checks values that can be wrong independently of each other.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := fragment.New(c.Dialect); err != nil {
		errs = append(errs, err)
	}
	if c.Bridge.Interval < 0 {
		errs = append(errs, fmt.Errorf("bridge.interval must not be negative, got %v", c.Bridge.Interval))
	}
	if c.Bridge.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("bridge.handshake_timeout must not be negative, got %v", c.Bridge.HandshakeTimeout))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %v", c.Watch.Debounce))
	}
	return errors.Join(errs...)
}

// BridgeConfig converts the bridge section for pkg/bridge.
func (c Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		Dir:              c.Bridge.Dir,
		Base:             c.Bridge.Base,
		Interval:         c.Bridge.Interval,
		HandshakeTimeout: c.Bridge.HandshakeTimeout,
	}
}

// Interpreter builds the fragment interpreter for the configured dialect
// and step budget.
func (c Config) Interpreter(logger *slog.Logger) (fragment.Interpreter, error) {
	return fragment.New(c.Dialect,
		fragment.WithLogger(logger),
		fragment.WithMaxSteps(c.Bridge.MaxSteps),
	)
}

// Level returns the parsed log level, info if it does not parse.
func (c Config) Level() logging.Level {
	l, _ := logging.ParseLevel(c.LogLevel)
	return l
}

var userConfigPath = func() (string, error) {
	home, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, userConfigDir, configFileName), nil
}

var projectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// UserConfigDir returns the directory holding the user configuration.
func UserConfigDir() (string, error) {
	home, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, userConfigDir), nil
}
