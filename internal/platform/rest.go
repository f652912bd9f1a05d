package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/guildport/guildport/internal/migrate"
)

const (
	// Transient failures (network errors, 5xx) retry with exponential
	// backoff: base 1s, factor 2, cap 30s, at most 4 attempts total.
	transportMaxAttempts = 4
	transportBackoffBase = 1 * time.Second
	transportBackoffCap  = 30 * time.Second

	// DefaultRateLimitRetries bounds how many rate-limit waits a single
	// call absorbs before surfacing a rate_limit_exhausted failure.
	DefaultRateLimitRetries = 5

	// The platforms only accept browser-originated user tokens.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	maxResponseBytes = 8 << 20
)

// Config holds the knobs shared by both platform clients. The zero
// value gets sensible defaults.
type Config struct {
	BaseURL          string
	CDNBaseURL       string
	UserAgent        string
	RateLimitRetries int
	Timeout          time.Duration
	Logger           *slog.Logger
}

func (c Config) withDefaults(defaultBaseURL, defaultCDNURL string) Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.CDNBaseURL == "" {
		c.CDNBaseURL = defaultCDNURL
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RateLimitRetries <= 0 {
		c.RateLimitRetries = DefaultRateLimitRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// restClient is the authenticated REST core shared by both platform
// clients: bearer token attachment, per-bucket rate-limit backoff,
// transient retries, and status-to-failure mapping.
type restClient struct {
	platform  string
	baseURL   string
	token     string
	userAgent string
	rlRetries int
	http      *http.Client
	logger    *slog.Logger
	limiter   *bucketLimiter
}

func newRESTClient(platform, token string, cfg Config) *restClient {
	return &restClient{
		platform:  platform,
		baseURL:   cfg.BaseURL,
		token:     token,
		userAgent: cfg.UserAgent,
		rlRetries: cfg.RateLimitRetries,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    cfg.Logger,
		limiter:   newBucketLimiter(),
	}
}

// getJSON issues an authenticated GET and decodes the JSON response.
func (c *restClient) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+path, "", nil, true)
	if err != nil {
		return err
	}
	return c.decode(body, out)
}

// sendJSON issues an authenticated request with a JSON body. out may be
// nil when the response body is irrelevant.
func (c *restClient) sendJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encoding %s %s body: %w", c.platform, method, path, err)
	}
	body, err := c.do(ctx, method, c.baseURL+path, "application/json", payload, true)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(body, out)
}

// postMultipart uploads a file plus form fields, used for binary asset
// endpoints that reject JSON-embedded images.
func (c *restClient) postMultipart(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file []byte, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("%s: building multipart body: %w", c.platform, err)
		}
	}
	fw, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return fmt.Errorf("%s: building multipart body: %w", c.platform, err)
	}
	if _, err := fw.Write(file); err != nil {
		return fmt.Errorf("%s: building multipart body: %w", c.platform, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: building multipart body: %w", c.platform, err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+path, w.FormDataContentType(), buf.Bytes(), true)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(body, out)
}

// download fetches a blob from an absolute URL (CDN assets) without
// credentials, with the same transient-retry behavior.
func (c *restClient) download(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, "", nil, false)
}

func (c *restClient) decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", c.platform, err)
	}
	return nil
}

// do runs one logical API call. It retries through rate-limit waits and
// transient failures within the configured budgets, then surfaces a
// coded failure.
func (c *restClient) do(ctx context.Context, method, url, contentType string, payload []byte, authed bool) ([]byte, error) {
	bucket := routeBucket(method, url)
	transportAttempts := 0
	rateLimitWaits := 0

	for {
		if err := c.limiter.wait(ctx, bucket); err != nil {
			return nil, err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("%s: building %s %s: %w", c.platform, method, url, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if authed {
			// User token, attached verbatim (no "Bot " prefix).
			req.Header.Set("Authorization", c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			transportAttempts++
			if transportAttempts >= transportMaxAttempts {
				return nil, migrate.NewFailure(migrate.CodeTransport,
					"%s: %s %s failed after %d attempts: %v", c.platform, method, url, transportAttempts, err)
			}
			wait := transportBackoff(transportAttempts)
			c.logger.Warn("request failed, backing off",
				"platform", c.platform, "method", method, "url", url,
				"attempt", transportAttempts, "wait", wait, "error", err)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if readErr != nil {
			transportAttempts++
			if transportAttempts >= transportMaxAttempts {
				return nil, migrate.NewFailure(migrate.CodeTransport,
					"%s: reading %s %s response: %v", c.platform, method, url, readErr)
			}
			if err := sleepCtx(ctx, transportBackoff(transportAttempts)); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			// Fatal: the whole run stops on a bad credential.
			return nil, migrate.NewFailure(migrate.CodeAuth,
				"%s token is invalid or expired", c.platform)

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header, respBody)
			c.limiter.block(bucket, wait)
			rateLimitWaits++
			if rateLimitWaits > c.rlRetries {
				return nil, migrate.NewFailure(migrate.CodeRateLimit,
					"%s: still rate limited on %s after %d waits", c.platform, bucket, rateLimitWaits)
			}
			c.logger.Info("rate limited, waiting",
				"platform", c.platform, "bucket", bucket, "wait", wait, "waits", rateLimitWaits)
			continue

		case resp.StatusCode == http.StatusForbidden:
			return nil, migrate.NewFailure(migrate.CodePermission,
				"%s: missing access for %s %s", c.platform, method, url)

		case resp.StatusCode == http.StatusNotFound:
			return nil, migrate.NewFailure(migrate.CodeNotFound,
				"%s: %s not found", c.platform, url)

		case resp.StatusCode == http.StatusRequestEntityTooLarge:
			return nil, migrate.NewFailure(migrate.CodePayload,
				"%s: %s %s payload rejected as too large", c.platform, method, url)

		case resp.StatusCode >= 500:
			transportAttempts++
			if transportAttempts >= transportMaxAttempts {
				return nil, migrate.NewFailure(migrate.CodeTransport,
					"%s: %s %s: status %d after %d attempts", c.platform, method, url, resp.StatusCode, transportAttempts)
			}
			wait := transportBackoff(transportAttempts)
			c.logger.Warn("server error, backing off",
				"platform", c.platform, "method", method, "url", url,
				"status", resp.StatusCode, "attempt", transportAttempts, "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= 400:
			return nil, migrate.NewFailure(migrate.CodeTransport,
				"%s: %s %s: status %d: %s", c.platform, method, url, resp.StatusCode, truncate(respBody, 200))
		}

		return respBody, nil
	}
}

// transportBackoff returns the wait before transient attempt n+1.
func transportBackoff(attempt int) time.Duration {
	d := transportBackoffBase
	for i := 1; i < attempt && d < transportBackoffCap; i++ {
		d *= 2
	}
	if d > transportBackoffCap {
		d = transportBackoffCap
	}
	return d
}

// retryAfter extracts the platform-specified wait from a 429 response:
// Retry-After header (possibly fractional seconds), then the JSON body's
// retry_after field, then a 1s fallback.
func retryAfter(h http.Header, body []byte) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var parsed struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.RetryAfter > 0 {
		return time.Duration(parsed.RetryAfter * float64(time.Second))
	}
	return time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
