package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.DriverName)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Positive(t, cfg.HashConcurrency)
	assert.Empty(t, cfg.Args)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	cfg, err := load(nil, env(map[string]string{
		"DATABASE_URL":     "/tmp/dir.db",
		"DB_DRIVER":        "sqlite3",
		"DB_QUERY_TIMEOUT": "3s",
		"BCRYPT_COST":      "10",
		"HASH_CONCURRENCY": "2",
		"LOG_LEVEL":        "debug",
		"LOG_FORMAT":       "text",
		"DB_LOG_ARGS":      "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/dir.db", cfg.DatabaseURL)
	assert.Equal(t, "sqlite3", cfg.DriverName)
	assert.Equal(t, 3*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 2, cfg.HashConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.LogQueryArgs)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	cfg, err := load(
		[]string{"-d", "flag.db", "-driver", "sqlite3", "-cost", "5", "-timeout", "1s", "-log-level", "warn", "get", "alice"},
		env(map[string]string{"DATABASE_URL": "env.db", "BCRYPT_COST": "10"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "flag.db", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.BcryptCost)
	assert.Equal(t, time.Second, cfg.QueryTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"get", "alice"}, cfg.Args)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"cost too low":     {"BCRYPT_COST": "3"},
		"cost too high":    {"BCRYPT_COST": "32"},
		"cost not number":  {"BCRYPT_COST": "twelve"},
		"bad duration":     {"DB_QUERY_TIMEOUT": "soon"},
		"unknown driver":   {"DB_DRIVER": "oracle"},
		"bad level":        {"LOG_LEVEL": "loud"},
		"bad format":       {"LOG_FORMAT": "xml"},
		"zero concurrency": {"HASH_CONCURRENCY": "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(nil, env(kv))
			assert.Error(t, err)
		})
	}

	_, err := load([]string{"-nope"}, env(nil))
	assert.Error(t, err)
}

func TestConfig_Derived(t *testing.T) {
	cfg, err := load([]string{"-cost", "4"}, env(map[string]string{"LOG_FORMAT": "text", "LOG_LEVEL": "debug"}))
	require.NoError(t, err)

	dbCfg := cfg.DB()
	assert.Equal(t, cfg.DatabaseURL, dbCfg.DSN)
	assert.Equal(t, cfg.QueryTimeout, dbCfg.DefaultTimeout)

	h, err := cfg.Hasher()
	require.NoError(t, err)
	assert.Equal(t, 4, h.Cost())

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestWithEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.env")
	require.NoError(t, os.WriteFile(path, []byte("DB_DRIVER=sqlite3\nBCRYPT_COST=6\n# comment\nLOG_FORMAT=text\n"), 0o600))

	lookup, err := withEnvFile(path, true, env(map[string]string{"BCRYPT_COST": "8"}))
	require.NoError(t, err)

	cfg, err := load(nil, lookup)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DriverName)
	assert.Equal(t, 8, cfg.BcryptCost, "the environment wins over the file")
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestWithEnvFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.env")

	lookup, err := withEnvFile(missing, false, env(map[string]string{"LOG_LEVEL": "warn"}))
	require.NoError(t, err)
	v, ok := lookup("LOG_LEVEL")
	assert.True(t, ok)
	assert.Equal(t, "warn", v)

	_, err = withEnvFile(missing, true, env(nil))
	assert.Error(t, err)
}
