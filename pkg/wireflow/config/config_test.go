package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/wireflow/pkg/wireflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"name":    "pool",
		"workers": float64(4),
		"ratio":   2.5,
		"enabled": true,
		"timeout": "1m",
		"nested":  map[string]any{"depth": 2},
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", cfg.String("name", ""), "pool"},
		{"string default", cfg.String("missing", "dflt"), "dflt"},
		{"int from float", cfg.Int("workers", 0), 4},
		{"int rejects fraction", cfg.Int("ratio", 9), 9},
		{"int wrong type", cfg.Int("name", 3), 3},
		{"bool", cfg.Bool("enabled", false), true},
		{"duration string", cfg.Duration("timeout", 0), time.Minute},
		{"duration default", cfg.Duration("missing", time.Second), time.Second},
		{"sub", cfg.Sub("nested").Int("depth", 0), 2},
		{"sub missing", cfg.Sub("missing").Has("depth"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestNilMap(t *testing.T) {
	cfg := config.New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.False(t, cfg.Has("x"))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("workers: 3\nname: x\n"), 0o600))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Int("workers", 0))
		assert.Equal(t, "x", cfg.String("name", ""))
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "c.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"workers": 5}`), 0o600))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Int("workers", 0))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "c.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

		_, err := config.FromFile(path)
		assert.ErrorContains(t, err, "unsupported config file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestSettings(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		s := config.DefaultSettings()
		require.NoError(t, s.Validate())
		assert.True(t, s.StrictHints)
		assert.Equal(t, "memory", s.Storage.Backend)
	})

	t.Run("parse overrides defaults", func(t *testing.T) {
		s, err := config.ParseSettings([]byte(`
log_level: debug
executor:
  workers: 8
storage:
  backend: sqlite
  path: /tmp/wf.db
`))
		require.NoError(t, err)
		assert.Equal(t, 8, s.Executor.Workers)
		assert.Equal(t, "sqlite", s.Storage.Backend)
		assert.Equal(t, "wireflow", s.Storage.Prefix, "unset fields keep defaults")
		assert.True(t, s.StrictHints)
	})

	invalid := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "storage:\n  backend: hdf5\n"},
		{"sqlite without path", "storage:\n  backend: sqlite\n"},
		{"redis without address", "storage:\n  backend: redis\n"},
		{"negative workers", "executor:\n  workers: -1\n"},
		{"bad log level", "log_level: loud\n"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseSettings([]byte(tt.yaml))
			assert.ErrorContains(t, err, "invalid settings")
		})
	}

	t.Run("load from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"storage": {"backend": "redis", "redis_addr": "localhost:6379"}}`), 0o600))

		s, err := config.LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, "localhost:6379", s.Storage.RedisAddr)
	})
}
