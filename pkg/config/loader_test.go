package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/config"
)

type loadSuccess struct {
	Name    string        `env:"MQ_TEST_NAME" envDefault:"default"`
	Workers int           `env:"MQ_TEST_WORKERS" envDefault:"4"`
	Poll    time.Duration `env:"MQ_TEST_POLL" envDefault:"2s"`
}

type loadDefaults struct {
	Name    string `env:"MQ_TEST_DEFAULT_NAME" envDefault:"queue"`
	Enabled bool   `env:"MQ_TEST_DEFAULT_ENABLED" envDefault:"true"`
}

type loadCached struct {
	Value string `env:"MQ_TEST_CACHED" envDefault:"first"`
}

type loadRequired struct {
	Value string `env:"MQ_TEST_REQUIRED_VALUE,required"`
}

type parseUncached struct {
	Value string `env:"MQ_TEST_UNCACHED" envDefault:"a"`
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("MQ_TEST_NAME", "mailer")
	t.Setenv("MQ_TEST_WORKERS", "8")
	t.Setenv("MQ_TEST_POLL", "500ms")

	var cfg loadSuccess
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "mailer", cfg.Name)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll)
}

func TestLoad_Defaults(t *testing.T) {
	var cfg loadDefaults
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "queue", cfg.Name)
	assert.True(t, cfg.Enabled)
}

func TestLoad_CachedPerType(t *testing.T) {
	t.Setenv("MQ_TEST_CACHED", "first")

	var first loadCached
	require.NoError(t, config.Load(&first))

	t.Setenv("MQ_TEST_CACHED", "second")

	var second loadCached
	require.NoError(t, config.Load(&second))

	assert.Equal(t, "first", second.Value)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("MQ_TEST_REQUIRED_VALUE")

	var cfg loadRequired
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *loadDefaults
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestParse_NotCached(t *testing.T) {
	t.Setenv("MQ_TEST_UNCACHED", "one")
	var cfg parseUncached
	require.NoError(t, config.Parse(&cfg))
	assert.Equal(t, "one", cfg.Value)

	t.Setenv("MQ_TEST_UNCACHED", "two")
	require.NoError(t, config.Parse(&cfg))
	assert.Equal(t, "two", cfg.Value)
}

type policy struct {
	MaxRetries int             `yaml:"max_retries"`
	RetryDelay time.Duration   `yaml:"retry_delay"`
	Approval   map[string]bool `yaml:"approval"`
}

func TestLoadYAML_OverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 5\napproval:\n  event_request: true\n"), 0o600))

	cfg := policy{MaxRetries: 3, RetryDelay: time.Minute}
	require.NoError(t, config.LoadYAML(path, &cfg))

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.RetryDelay)
	assert.True(t, cfg.Approval["event_request"])
}

func TestLoadYAML_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		var cfg policy
		err := config.LoadYAML(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
		assert.ErrorIs(t, err, config.ErrReadingFile)
	})

	t.Run("bad document", func(t *testing.T) {
		t.Parallel()
		var cfg policy
		err := config.DecodeYAML([]byte("max_retries: [1"), &cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
