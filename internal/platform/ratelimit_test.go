package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteBucket(t *testing.T) {
	tests := []struct {
		method string
		url    string
		want   string
	}{
		{"GET", "https://discord.com/api/v10/users/@me", "GET /api/v10/users/@me"},
		{"GET", "https://discord.com/api/v10/guilds/123456789012345678/channels", "GET /api/v10/guilds/{id}/channels"},
		{"POST", "https://discord.com/api/v10/guilds/123456789012345678/channels", "POST /api/v10/guilds/{id}/channels"},
		{"PUT", "/channels/111111111111/permissions/222222222222", "PUT /channels/{id}/permissions/{id}"},
		{"GET", "/guilds/42/channels", "GET /guilds/42/channels"}, // too short to be a snowflake
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, routeBucket(tt.method, tt.url), "%s %s", tt.method, tt.url)
	}
}

func TestBucketLimiterIsolation(t *testing.T) {
	l := newBucketLimiter()
	l.block("GET /guilds/{id}/roles", 500*time.Millisecond)

	start := time.Now()
	require.NoError(t, l.wait(context.Background(), "GET /guilds/{id}/channels"))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "unrelated bucket must not block")
}

func TestBucketLimiterWaits(t *testing.T) {
	l := newBucketLimiter()
	l.block("b", 50*time.Millisecond)

	start := time.Now()
	require.NoError(t, l.wait(context.Background(), "b"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBucketLimiterNeverShrinks(t *testing.T) {
	l := newBucketLimiter()
	l.block("b", 100*time.Millisecond)
	l.block("b", 1*time.Millisecond)

	start := time.Now()
	require.NoError(t, l.wait(context.Background(), "b"))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestBucketLimiterCancel(t *testing.T) {
	l := newBucketLimiter()
	l.block("b", time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.wait(ctx, "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
