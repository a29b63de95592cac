package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/index-engine/engine/internal/config"
	"github.com/index-engine/engine/internal/recovery"
)

func TestRetryConfigFor_retryableKindAddsOneForTheInitialAttempt(t *testing.T) {
	base := config.RetryConfig{MaxAttempts: 99, MaxDelay: 5 * time.Second, BackoffFactor: 2.0, Jitter: 0.2}

	cfg := retryConfigFor(recovery.Lookup(recovery.VectorStoreFailure), base)

	// VectorStoreFailure is MaxRetries: 3 in the strategy table, so total
	// attempts (including the first try) must be 4, not 3.
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, base.MaxDelay, cfg.MaxDelay)
	assert.Equal(t, base.BackoffFactor, cfg.BackoffFactor)
	assert.Equal(t, base.Jitter, cfg.Jitter)
}

func TestRetryConfigFor_nonRetryableKindMakesExactlyOneAttempt(t *testing.T) {
	base := config.RetryConfig{MaxAttempts: 99}

	cfg := retryConfigFor(recovery.Lookup(recovery.PermissionDenied), base)

	assert.Equal(t, 1, cfg.MaxAttempts)
}

func TestRetryConfigFor_overridesBaseDelayOnlyWhenStrategySetsOne(t *testing.T) {
	base := config.RetryConfig{BaseDelay: 200 * time.Millisecond}

	withOwnDelay := retryConfigFor(recovery.Lookup(recovery.EmbedderUnavailable), base)
	assert.Equal(t, 1*time.Second, withOwnDelay.BaseDelay)

	withoutOwnDelay := retryConfigFor(recovery.Lookup(recovery.PermissionDenied), base)
	assert.Equal(t, base.BaseDelay, withoutOwnDelay.BaseDelay)
}
