package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiges-tech/todomon/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, "http://localhost:3000", cfg.CORSOrigin)
	assert.Equal(t, config.Duration(5*time.Second), cfg.StoreTimeout)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Store = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Store = "redis"
	cfg.RedisAddr = ""
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Port = "http"
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"port": "8080",
		"store": "redis",
		"redis_addr": "cache:6379",
		"redis_db": 2,
		"store_timeout": "250ms"
	}`)

	cfg := config.Default()
	require.NoError(t, config.LoadConfigFromFile(path, &cfg))

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis", cfg.Store)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, config.Duration(250*time.Millisecond), cfg.StoreTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, "http://localhost:3000", cfg.CORSOrigin)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFileErrors(t *testing.T) {
	var cfg config.AppConfig
	assert.Error(t, config.LoadConfigFromFile("", &cfg))
	assert.Error(t, config.LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.json"), &cfg))

	bad := writeFile(t, "bad.json", `{"store_timeout": "soon"}`)
	assert.Error(t, config.LoadConfigFromFile(bad, &cfg))
}

func TestFileGet(t *testing.T) {
	path := writeFile(t, "config.json", `{"port": "8080", "redis_db": 3}`)
	f := &config.File{ConfigFilePath: path}
	cfg := config.Default()
	require.NoError(t, config.Load(f, &cfg))

	v, err := f.Get("port")
	require.NoError(t, err)
	assert.Equal(t, "8080", v)

	v, err = f.Get("redis_db")
	var notString *config.ValueNotStringError
	assert.True(t, errors.As(err, &notString))
	assert.Equal(t, "3", v)

	_, err = f.Get("missing")
	var notFound *config.KeyNotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Key)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(config.EnvPort, "7000")
	t.Setenv(config.EnvNodeEnv, "production")
	t.Setenv(config.EnvAppEnv, "test")
	t.Setenv(config.EnvRedisDB, "4")
	t.Setenv(config.EnvStoreTimeout, "2s")

	cfg := config.Default()
	require.NoError(t, config.LoadConfigFromEnv(&cfg))

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "test", cfg.Env, "APP_ENV takes precedence over NODE_ENV")
	assert.Equal(t, 4, cfg.RedisDB)
	assert.Equal(t, config.Duration(2*time.Second), cfg.StoreTimeout)
	assert.Equal(t, "memory", cfg.Store)
}

func TestLoadConfigFromEnvInvalidValues(t *testing.T) {
	t.Setenv(config.EnvRedisDB, "zero")
	cfg := config.Default()
	assert.Error(t, config.LoadConfigFromEnv(&cfg))

	t.Setenv(config.EnvRedisDB, "")
	t.Setenv(config.EnvStoreTimeout, "forever")
	assert.Error(t, config.LoadConfigFromEnv(&cfg))
}

func TestLoadConfigFromDotEnv(t *testing.T) {
	dotEnv := writeFile(t, ".env", "CORS_ORIGIN=https://todo.example.com\nSTORE=redis\n")
	t.Setenv(config.EnvStore, "memory")
	// t.Setenv restores the variable afterwards; godotenv only sets unset ones
	t.Setenv(config.EnvCORSOrigin, "")
	require.NoError(t, os.Unsetenv(config.EnvCORSOrigin))

	cfg := config.Default()
	require.NoError(t, config.LoadConfigFromEnv(&cfg, dotEnv, filepath.Join(t.TempDir(), "absent.env")))

	assert.Equal(t, "https://todo.example.com", cfg.CORSOrigin)
	assert.Equal(t, "memory", cfg.Store, "process environment wins over .env")
}

func TestEnvRejectsOtherTargets(t *testing.T) {
	var m map[string]string
	err := config.Load(&config.Env{}, &m)
	assert.ErrorIs(t, err, config.ErrUnsupportedTarget)

	_, err = (&config.Env{}).Get("TODOMON_SURELY_UNSET")
	var notFound *config.KeyNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRigelCheck(t *testing.T) {
	assert.Error(t, (&config.Rigel{}).Check())
}
