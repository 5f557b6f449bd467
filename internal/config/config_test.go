package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(5000), cfg.ClaimCostDefault)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, 15*time.Minute, cfg.VerificationCodeTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CLAIM_COST_DEFAULT", "2500")
	t.Setenv("TX_MAX_ATTEMPTS", "3")
	t.Setenv("TX_TIMEOUT", "2s")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("OUTBOX_MAX_RETRIES", "9")
	t.Setenv("ALLOW_CROSS_SITE_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.AllowCrossSiteDev)
	assert.Equal(t, int64(2500), cfg.ClaimCostDefault)

	policy := cfg.TxPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.Timeout)

	relay := cfg.RelayConfig()
	assert.Equal(t, 250*time.Millisecond, relay.Interval)
	assert.Equal(t, 9, relay.MaxRetries)
	assert.Equal(t, 100, relay.BatchSize)
}
