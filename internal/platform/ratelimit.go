package platform

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// bucketLimiter tracks per-route rate-limit backoff state for one client
// instance. A wait on one bucket never blocks callers on other buckets.
// Each Client owns its limiter; nothing is shared between platforms.
type bucketLimiter struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func newBucketLimiter() *bucketLimiter {
	return &bucketLimiter{until: make(map[string]time.Time)}
}

// wait blocks until the bucket's backoff window has passed or the
// context is cancelled.
func (l *bucketLimiter) wait(ctx context.Context, bucket string) error {
	for {
		l.mu.Lock()
		until := l.until[bucket]
		l.mu.Unlock()

		d := time.Until(until)
		if d <= 0 {
			return nil
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// block extends the bucket's backoff window. A shorter window never
// shrinks an existing one.
func (l *bucketLimiter) block(bucket string, d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	l.mu.Lock()
	if deadline.After(l.until[bucket]) {
		l.until[bucket] = deadline
	}
	l.mu.Unlock()
}

// routeBucket derives a rate-limit bucket key from a request. Numeric
// path segments (snowflake ids) are collapsed so all requests against
// the same route share a bucket.
func routeBucket(method, rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if isSnowflake(seg) {
			segments[i] = "{id}"
		}
	}
	return method + " " + strings.Join(segments, "/")
}

func isSnowflake(s string) bool {
	if len(s) < 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
