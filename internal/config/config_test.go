package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Game.Pits)
	assert.Equal(t, 3, cfg.Game.StartSeeds)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "awari.yaml")
	data := `
game:
  pits: 3
  start_seeds: 2
storage:
  backend: hybrid
  path: /tmp/table
  max_blocks: 32
server:
  port: 9090
  read_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Game.Pits)
	assert.Equal(t, 2, cfg.Game.StartSeeds)
	assert.Equal(t, "hybrid", cfg.Storage.Backend)
	assert.Equal(t, 32, cfg.Storage.MaxBlocks)
	assert.Equal(t, 16, cfg.Storage.BlockShift, "unset keys keep defaults")
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"AWARI_PITS":            "2",
		"AWARI_STORAGE_BACKEND": "badger",
		"AWARI_RECENCY":         "not a number",
		"AWARI_SYNC_WRITES":     "true",
		"AWARI_LOG_LEVEL":       "debug",
	}
	loadEnv(&cfg, func(k string) string { return env[k] })

	assert.Equal(t, 2, cfg.Game.Pits)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, 4, cfg.Storage.Recency, "unparsable values are ignored")
	assert.True(t, cfg.Storage.SyncWrites)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*Config)
	}{
		{"too many pits", func(c *Config) { c.Game.Pits = 40 }},
		{"too many seeds", func(c *Config) { c.Game.StartSeeds = 30 }},
		{"backend", func(c *Config) { c.Storage.Backend = "floppy" }},
		{"codec", func(c *Config) { c.Storage.Codec = "xml" }},
		{"blocks", func(c *Config) { c.Storage.MaxBlocks = 0 }},
		{"level", func(c *Config) { c.Log.Level = "loud" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.tweak(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", tt.name)
		}
	}
}

func TestStorageOptions(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "hybrid"
	cfg.Storage.BlockShift = 8
	opts := cfg.StorageOptions(cfg.Logger(&bytes.Buffer{}), nil)
	assert.Equal(t, "hybrid", string(opts.Kind))
	assert.Equal(t, 8, opts.Cache.BlockShift)
	assert.NotNil(t, opts.Cache.Observer)
}

func TestLoggerJSON(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	log := cfg.Logger(&buf)
	log.Info().Msg("hidden")
	log.Warn().Int("seeds", 3).Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, `"seeds":3`), out)
}
