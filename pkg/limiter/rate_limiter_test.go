package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
)

func testConfig() config.RateLimiterConfig {
	return config.RateLimiterConfig{
		Enabled:         true,
		IPLimit:         2,
		PhoneLimit:      2,
		GlobalLimit:     1000,
		BurstMultiplier: 1.0,
	}
}

func TestCheckIPBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig(), logger.NewLogger("error"))
	defer rl.Stop()

	allowed, err := rl.CheckIP("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = rl.CheckIP("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _ = rl.CheckIP("10.0.0.1")
	assert.False(t, allowed)
}

func TestCheckPhoneIsIndependentPerIdentity(t *testing.T) {
	rl := NewRateLimiter(testConfig(), logger.NewLogger("error"))
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		allowed, err := rl.CheckPhone("+256700000001")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := rl.CheckPhone("+256700000001")
	assert.False(t, allowed)

	// A different phone number has its own untouched bucket.
	allowed, err := rl.CheckPhone("+256700000002")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	rl := NewRateLimiter(cfg, logger.NewLogger("error"))
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		allowed, err := rl.CheckIP("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestCheckRequestExtractsIPFromRemoteAddr(t *testing.T) {
	rl := NewRateLimiter(testConfig(), logger.NewLogger("error"))
	defer rl.Stop()

	allowed, err := rl.CheckRequest("10.0.0.5:54321")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestStatsReportsConfiguredLimits(t *testing.T) {
	rl := NewRateLimiter(testConfig(), logger.NewLogger("error"))
	defer rl.Stop()

	_, _ = rl.CheckIP("10.0.0.9")
	stats := rl.Stats()
	assert.Equal(t, true, stats["enabled"])
	assert.EqualValues(t, 2, stats["ip_limit"])
	assert.EqualValues(t, 1, stats["ip_limiters"])
}
