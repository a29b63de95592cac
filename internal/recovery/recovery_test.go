package recovery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookup_matchesSpecTable(t *testing.T) {
	cases := []struct {
		kind       Kind
		maxRetries int
		baseDelay  time.Duration
		retryable  bool
	}{
		{FileWatchFailed, 3, 1 * time.Second, true},
		{ChangeDetectionFailed, 2, 2 * time.Second, true},
		{IndexUpdateFailed, 1, 1 * time.Second, true},
		{PermissionDenied, 0, 0, false},
		{FileTooLarge, 0, 0, false},
		{ProjectNotFound, 1, 1 * time.Second, true},
	}
	for _, c := range cases {
		s := Lookup(c.kind)
		assert.Equal(t, c.maxRetries, s.MaxRetries, c.kind)
		assert.Equal(t, c.baseDelay, s.BaseDelay, c.kind)
		assert.Equal(t, c.retryable, s.Retryable, c.kind)
	}
}

func TestLookup_permissionDeniedNeverRetries(t *testing.T) {
	s := Lookup(PermissionDenied)
	assert.False(t, s.Retryable)
	assert.Equal(t, ActionLogAndSurface, s.Action)
}

func TestDefaultFor_unregisteredKindsFollowTaxonomyPolicy(t *testing.T) {
	assert.True(t, Retryable(TransientIO))
	assert.False(t, Retryable(OversizeInput))
	assert.False(t, Retryable(ParseFailure))
	assert.True(t, Retryable(EmbedderUnavailable))
	assert.True(t, Retryable(VectorStoreFailure))
	assert.False(t, Retryable(ConsistencyFailure))
	assert.False(t, Retryable(ProgrammerError))
}

func TestClassifiedError_includesKindPathAndHint(t *testing.T) {
	err := New(FileTooLarge, "big.bin", errors.New("11MB > 10MB limit")).WithHint("run reindex to recover from partial index")
	msg := err.Error()
	assert.Contains(t, msg, string(FileTooLarge))
	assert.Contains(t, msg, "big.bin")
	assert.Contains(t, msg, "reindex")
}

func TestClassifiedError_unwrapsToCause(t *testing.T) {
	cause := errors.New("underlying")
	err := New(ProjectNotFound, "", cause)
	assert.ErrorIs(t, err, cause)
}
