package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestLoad(t *testing.T) {
	// no config file, defaults only
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "model.yml", cfg.Model)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Empty(t, cfg.Naming)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "relmap:plan:", cfg.Cache.Prefix)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Empty(t, Used())
}

func TestLoadWithConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	configContent := `
model: schema/shop.yml
dialect: SQLite
log:
  level: debug
  development: true
database:
  driver: sqlite3
  url: file:shop.db
cache:
  backend: redis
  addr: cache:6379
  ttl: 30m
`
	require.NoError(t, os.WriteFile("relmap.yml", []byte(configContent), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "schema/shop.yml", cfg.Model)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "file:shop.db", cfg.Database.URL)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "relmap:plan:", cfg.Cache.Prefix, "unset keys keep defaults")
	assert.NotEmpty(t, Used())
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("relmap.yml", []byte("database:\n  url: postgres://file\n"), 0644))
	t.Setenv("RELMAP_DATABASE_URL", "postgres://env")
	t.Setenv("RELMAP_CACHE_BACKEND", "none")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "none", cfg.Cache.Backend)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"dialect", "dialect: oracle\n", "Dialect"},
		{"naming", "naming: kebab\n", "Naming"},
		{"log level", "log:\n  level: loud\n", "Level"},
		{"driver", "database:\n  driver: mysql\n", "Driver"},
		{"cache backend", "cache:\n  backend: disk\n", "Backend"},
		{"redis addr", "cache:\n  backend: redis\n  addr: \"\"\n", "Addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			require.NoError(t, os.WriteFile("relmap.yml", []byte(tt.content), 0644))
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("naming: identity\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "identity", cfg.Naming)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestMalformedFile(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("relmap.yml", []byte("dialect: [unclosed\n"), 0644))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
