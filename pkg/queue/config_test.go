package queue_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/config"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

func TestConfig_Backoff(t *testing.T) {
	t.Parallel()

	cfg := queue.Config{RetryDelay: time.Minute, BackoffMultiplier: 2, MaxBackoff: 10 * time.Minute}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 10 * time.Minute},
		{60, 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Backoff(tt.retry), "retry %d", tt.retry)
	}

	flat := queue.Config{RetryDelay: 30 * time.Second, BackoffMultiplier: 0.5}
	assert.Equal(t, 30*time.Second, flat.Backoff(5), "multiplier below 1 means constant delay")
}

func TestConfig_RequiresApproval(t *testing.T) {
	t.Parallel()

	cfg := queue.Config{
		RequireApproval:        map[queue.MessageType]bool{queue.TypeEventApproved: true, queue.TypeAdminAlert: false},
		DefaultRequireApproval: true,
	}
	assert.True(t, cfg.RequiresApproval(queue.TypeEventApproved))
	assert.False(t, cfg.RequiresApproval(queue.TypeAdminAlert))
	assert.True(t, cfg.RequiresApproval(queue.TypeCustom), "unlisted types use the default")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, queue.DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*queue.Config)
	}{
		{"negative retries", func(c *queue.Config) { c.MaxRetries = -1 }},
		{"multiplier", func(c *queue.Config) { c.BackoffMultiplier = 0.5 }},
		{"queue size", func(c *queue.Config) { c.MaxQueueSize = 0 }},
		{"message size", func(c *queue.Config) { c.MaxMessageSize = 0 }},
		{"rate", func(c *queue.Config) { c.RateInterval = 0 }},
		{"batch", func(c *queue.Config) { c.BatchSize = 0 }},
		{"claim ttl", func(c *queue.Config) { c.ClaimTTL = 0 }},
		{"claim ttl within provider timeout", func(c *queue.Config) { c.ClaimTTL = c.ProviderTimeout }},
		{"oversized recheck", func(c *queue.Config) { c.OversizedRecheck = -time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := queue.DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), queue.ErrInvalidConfig)
		})
	}
}

func TestConfig_EnvDefaultsMatchDefaultConfig(t *testing.T) {
	var cfg queue.Config
	require.NoError(t, config.Parse(&cfg))

	want := queue.DefaultConfig()
	want.Version = 0
	assert.Equal(t, want, cfg)
}

func TestMemoryConfigSource_Set(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := queue.NewMemoryConfigSource(queue.DefaultConfig())

	next := queue.DefaultConfig()
	next.MaxRetries = 5
	stored, err := src.Set(next)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	cur, err := src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cur.MaxRetries)
	assert.Equal(t, int64(2), cur.Version)

	bad := queue.DefaultConfig()
	bad.BatchSize = 0
	_, err = src.Set(bad)
	require.ErrorIs(t, err, queue.ErrInvalidConfig)

	cur, err = src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur.Version, "rejected config leaves the current one")
}

func TestFileConfigSource_Reload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	base := queue.DefaultConfig()

	src := queue.NewFileConfigSource(path, base)
	cur, err := src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, cur, "missing file falls back to base")

	write := func(body string, mtime time.Time) {
		t.Helper()
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	write("max_retries: 5\nretry_delay: 30s\nrequire_approval:\n  event_approved: true\n", first)

	cur, err = src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cur.MaxRetries)
	assert.Equal(t, 30*time.Second, cur.RetryDelay)
	assert.True(t, cur.RequiresApproval(queue.TypeEventApproved))
	assert.Equal(t, base.BatchSize, cur.BatchSize, "omitted keys keep base values")
	assert.Equal(t, int64(2), cur.Version)

	write("max_retries: 7\n", first.Add(time.Minute))
	cur, err = src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, cur.MaxRetries)
	assert.False(t, cur.RequiresApproval(queue.TypeEventApproved))
	assert.Equal(t, int64(3), cur.Version)

	write("batch_size: 0\n", first.Add(2*time.Minute))
	cur, err = src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, cur.MaxRetries, "invalid file keeps the last good policy")
	assert.Equal(t, int64(3), cur.Version)
}

func TestFileConfigSource_InvalidFirstLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: [oops"), 0o600))

	_, err := queue.NewFileConfigSource(path, queue.DefaultConfig()).Current(context.Background())
	assert.Error(t, err)
}
