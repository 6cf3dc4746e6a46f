package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/padawan/pkg/logging"
)

// withHomeAndWorkdir points the user and project layers into temp dirs.
func withHomeAndWorkdir(t *testing.T) (home, wd string) {
	t.Helper()
	home, wd = t.TempDir(), t.TempDir()
	origHome, origWd := osUserHomeDir, osGetwd
	t.Cleanup(func() { osUserHomeDir, osGetwd = origHome, origWd })
	osUserHomeDir = func() (string, error) { return home, nil }
	osGetwd = func() (string, error) { return wd, nil }
	return home, wd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaultsOnly(t *testing.T) {
	withHomeAndWorkdir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Bridge, cfg.Bridge)
	assert.Equal(t, "starlark", cfg.Dialect)
	assert.Empty(t, cfg.Sources)
	assert.Equal(t, logging.LevelInfo, cfg.Level())
}

func TestLoadLayers(t *testing.T) {
	home, wd := withHomeAndWorkdir(t)
	userPath := filepath.Join(home, userConfigDir, configFileName)
	projectPath := filepath.Join(wd, projectConfigDir, configFileName)
	explicit := filepath.Join(t.TempDir(), "explicit.yaml")

	writeFile(t, userPath, "log_level: debug\nbridge:\n  dir: /run/user\n  base: mine\n")
	writeFile(t, projectPath, "dialect: expr\nbridge:\n  base: project\n  interval: 25ms\n")
	writeFile(t, explicit, "bridge:\n  handshake_timeout: 3s\n  max_steps: 5000\nwatch:\n  debounce: 1s\n")

	cfg, err := Load(explicit)
	require.NoError(t, err)

	assert.Equal(t, []string{userPath, projectPath, explicit}, cfg.Sources)
	assert.Equal(t, logging.LevelDebug, cfg.Level())
	assert.Equal(t, "expr", cfg.Dialect)
	assert.Equal(t, BridgeConfig{
		Dir:              "/run/user",
		Base:             "project",
		Interval:         25 * time.Millisecond,
		HandshakeTimeout: 3 * time.Second,
		MaxSteps:         5000,
	}, cfg.Bridge)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)

	bc := cfg.BridgeConfig()
	assert.Equal(t, "/run/user/project_in", bc.InPath())
}

func TestLoadMissingExplicit(t *testing.T) {
	withHomeAndWorkdir(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMalformed(t *testing.T) {
	_, wd := withHomeAndWorkdir(t)
	writeFile(t, filepath.Join(wd, projectConfigDir, configFileName), "bridge: [unclosed\n")

	_, err := Load("")
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "chatty"
	cfg.Dialect = "lua"
	cfg.Bridge.Interval = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "chatty")
	assert.ErrorContains(t, err, "lua")
	assert.ErrorContains(t, err, "bridge.interval")
}

func TestInterpreterStepBudget(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint64(DefaultMaxSteps), cfg.Bridge.MaxSteps)

	cfg.Bridge.MaxSteps = 1000
	interp, err := cfg.Interpreter(logging.Discard())
	require.NoError(t, err)
	_, err = interp.Exec(context.Background(), "while True:\n    pass\n", nil, nil)
	assert.Error(t, err)

	cfg.Dialect = "lua"
	_, err = cfg.Interpreter(logging.Discard())
	assert.Error(t, err)
}
