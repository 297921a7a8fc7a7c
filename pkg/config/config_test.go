package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "unitbuild.toml", `
jobs = 4
progress = "glyph"

[toolchain]
cc = "gcc"
min_version = ">= 9"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, "glyph", cfg.Progress)
	assert.Equal(t, "gcc", cfg.Toolchain.CC)
	assert.Equal(t, ">= 9", cfg.Toolchain.MinVersion)

	// untouched fields keep their defaults
	assert.Equal(t, "clang++", cfg.Toolchain.CXX)
	assert.Equal(t, "ar", cfg.Toolchain.AR)
	assert.Equal(t, "build", cfg.BuildDir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "unitbuild.yml", `
jobs: 2
build_dir: out
toolchain:
  cxx: g++
  std: c++20
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Jobs)
	assert.Equal(t, "out", cfg.BuildDir)
	assert.Equal(t, "g++", cfg.Toolchain.CXX)
	assert.Equal(t, "c++20", cfg.Toolchain.Std)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
}

func TestLoadYAMLExtension(t *testing.T) {
	path := writeFile(t, "unitbuild.yaml", `
poll_interval: 100ms
progress: none
toolchain:
  cc: gcc
  cflags: -O2 -g
log:
  json: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "none", cfg.Progress)
	assert.Equal(t, "gcc", cfg.Toolchain.CC)
	assert.Equal(t, "-O2 -g", cfg.Toolchain.CFlags)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "clang++", cfg.Toolchain.CXX)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "unitbuild.yml", `
toolchain:
  fortran: gfortran
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFlattenInto(t *testing.T) {
	result := make(map[string]interface{})
	flattenInto(result, "", map[string]interface{}{
		"jobs": 2,
		"log": map[string]interface{}{
			"level": "debug",
		},
	})

	assert.Equal(t, map[string]interface{}{
		"jobs":      2,
		"log.level": "debug",
	}, result)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "unitbuild.toml", `progress = "fireworks"`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "progress")
}

func validConfig() Config {
	cfg := Config{
		PollInterval: 50 * time.Millisecond,
		Progress:     "bar",
	}
	cfg.Log.Level = "info"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"negative jobs", func(c *Config) { c.Jobs = -1 }, "jobs"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"unknown progress", func(c *Config) { c.Progress = "spinner" }, "progress"},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad constraint", func(c *Config) { c.Toolchain.MinVersion = ">>> 1" }, "min_version"},
		{"good constraint", func(c *Config) { c.Toolchain.MinVersion = ">= 10, < 20" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "warning"
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel())
}
