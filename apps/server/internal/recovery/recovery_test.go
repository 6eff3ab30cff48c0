package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := WithRetry(context.Background(), "save", fast, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("busy")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	_, err := WithRetry(context.Background(), "save", fast, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, boom
	})
	require.Error(t, err)

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "save", re.Label)
	assert.Equal(t, 3, re.Attempts)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, boom)
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	boom := errors.New("invalid key")
	calls := 0
	_, err := WithRetry(context.Background(), "save", fast, func(context.Context) (int, error) {
		calls++
		return 0, Permanent(boom)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, boom)
}

func TestWithFallback(t *testing.T) {
	ctx := context.Background()

	v, recovered := WithFallback(ctx, "lookup",
		func(context.Context) (string, error) { return "primary", nil },
		func(context.Context) string { return "fallback" })
	assert.Equal(t, "primary", v)
	assert.False(t, recovered)

	v, recovered = WithFallback(ctx, "lookup",
		func(context.Context) (string, error) { return "", errors.New("down") },
		func(context.Context) string { return "fallback" })
	assert.Equal(t, "fallback", v)
	assert.True(t, recovered)
}
