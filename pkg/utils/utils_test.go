package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	tc, err := NewTokenCounter("llama3-8b-8192")
	require.NoError(t, err)

	assert.Equal(t, 0, tc.CountTokens(""))
	assert.Greater(t, tc.CountTokens("Write a function that adds two numbers"), 3)
}

func TestCountTokensNilCounter(t *testing.T) {
	var tc *TokenCounter
	assert.Equal(t, 2, tc.CountTokens("abcdefgh"))
}

func TestCountTokensSimple(t *testing.T) {
	assert.Positive(t, CountTokensSimple("The task is complete: done"))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))
	require.NoError(t, SleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestSleeperOrDefault(t *testing.T) {
	var s Sleeper
	assert.NotNil(t, s.OrDefault())

	called := false
	custom := Sleeper(func(context.Context, time.Duration) error {
		called = true
		return nil
	})
	require.NoError(t, custom.OrDefault()(context.Background(), time.Second))
	assert.True(t, called)
}

func TestSanitizeFileStem(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"Write a function that adds two numbers", 25, "Write_a_function_that_add"},
		{"hello, world!", 0, "hello_world_"},
		{"short", 25, "short"},
		{"a--b  c", 0, "a_b_c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileStem(tt.in, tt.maxLen))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
