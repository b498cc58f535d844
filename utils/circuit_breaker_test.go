package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()

	err := cb.Execute(ctx, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_PropagatesError(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("store down")

	err := cb.Execute(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateClosed, cb.State(), "one failure must not trip the breaker")
}

func TestCircuitBreaker_TripsAfterRepeatedFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()
	boom := errors.New("store down")

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return boom })
	}

	assert.Equal(t, StateOpen, cb.State())

	var called bool
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must fail fast without calling through")
}

func TestCircuitBreaker_SuccessesKeepItClosed(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}
