package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_IDS", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, "@every 1m", cfg.SchedulerReconcileSpec)
	assert.Equal(t, 30*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 24*time.Hour, cfg.InitDataTTL)
	assert.Equal(t, "en", cfg.DefaultLocale)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/raffle?sslmode=disable")
	t.Setenv("ADMIN_IDS", "1, 2,3")
	t.Setenv("CHALLENGE_TTL", "90s")
	t.Setenv("DEFAULT_LOCALE", "ru")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 90*time.Second, cfg.ChallengeTTL)

	ids, err := cfg.AdminIDSet()
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, int64(2))
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("admin ids", func(t *testing.T) {
		t.Setenv("ADMIN_IDS", "1,abc")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "99")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv("LOCK_TTL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("zero timeout", func(t *testing.T) {
		t.Setenv("NOTIFY_TIMEOUT", "0s")
		_, err := Load()
		assert.Error(t, err)
	})
}
