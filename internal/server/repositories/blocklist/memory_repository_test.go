package blocklist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AddContainsSweep(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, r.Add(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, r.Add(ctx, "b", now.Add(-time.Minute)))

	hit, _ := r.Contains(ctx, "a", now)
	assert.True(t, hit)
	hit, _ = r.Contains(ctx, "b", now)
	assert.False(t, hit, "expired entry no longer blocks")
	hit, _ = r.Contains(ctx, "a", now.Add(2*time.Minute))
	assert.False(t, hit)

	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMemory_AddKeepsLaterExpiry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, r.Add(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, r.Add(ctx, "a", now.Add(time.Minute)))

	hit, _ := r.Contains(ctx, "a", now.Add(30*time.Minute))
	assert.True(t, hit)
}
