package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/source"
)

const (
	apiVersion = "2022-11-28"
	userAgent  = "octobar"

	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerPollInterval       = "X-Poll-Interval"
	headerLastModified       = "Last-Modified"
	headerIfModifiedSince    = "If-Modified-Since"

	maxBackoff = 30 * time.Second
)

// Client is a thin HTTP client for the GitHub REST API. It handles Bearer
// token authentication, JSON marshaling, request pacing and bounded retry
// with exponential backoff. It keeps no state between calls other than the
// pacing limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	log        zerolog.Logger
}

// NewClient creates a new GitHub HTTP client from the API configuration.
func NewClient(cfg model.APIConfig, log zerolog.Logger) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: cfg.MaxRetries,
		retryBase:  time.Second,
		log:        log.With().Str("component", "github").Logger(),
	}
}

// request describes a single API call.
type request struct {
	method  string
	path    string
	query   url.Values
	token   string
	headers map[string]string
	body    interface{}

	// retry allows retrying transport errors and 5xx responses.
	retry bool
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do builds the request, handles auth, pacing, rate limiting with
// exponential backoff and returns the response for any status code.
// Status classification is left to the caller.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var payload []byte
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	op := r.method + " " + r.path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(c.retryBase, attempt-1)
			if ra, ok := lastErr.(retryAfterError); ok {
				wait = ra.wait
			}
			c.log.Debug().
				Str("op", op).
				Int("attempt", attempt).
				Dur("wait", wait).
				Err(lastErr).
				Msg("retrying request")

			select {
			case <-ctx.Done():
				return nil, &source.NetworkError{Op: op, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &source.NetworkError{Op: op, Err: err}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+r.token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		req.Header.Set("User-Agent", userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &source.NetworkError{Op: op, Err: err}
			if r.retry && ctx.Err() == nil {
				continue
			}
			return nil, lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &source.NetworkError{
				Op:  op,
				Err: fmt.Errorf("reading response body: %w", readErr),
			}
			if r.retry {
				continue
			}
			return nil, lastErr
		}

		out := &response{status: resp.StatusCode, header: resp.Header, body: respBody}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = retryAfterError{
				wait: retryAfterDuration(resp.Header, c.retryBase, attempt),
				resp: out,
			}
			continue
		}

		if resp.StatusCode >= 500 && r.retry {
			lastErr = &source.HTTPError{
				StatusCode: resp.StatusCode,
				Method:     r.method,
				Path:       r.path,
				Body:       truncate(string(respBody), 200),
			}
			continue
		}

		return out, nil
	}

	if ra, ok := lastErr.(retryAfterError); ok {
		// Out of retries on 429: let the caller classify the final response.
		return ra.resp, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterError carries a 429 response and the wait it asked for.
type retryAfterError struct {
	wait time.Duration
	resp *response
}

func (e retryAfterError) Error() string {
	return fmt.Sprintf("rate limited (429), retry after %s", e.wait)
}

// classify converts a non-success response into the error taxonomy.
func classify(resp *response, method, path string) error {
	switch resp.status {
	case http.StatusUnauthorized:
		return &source.AuthError{
			Message: fmt.Sprintf(
				"authentication failed (401) on %s %s: check your access token",
				method, path,
			),
		}
	case http.StatusForbidden:
		if remaining, err := strconv.Atoi(resp.header.Get(headerRateLimitRemaining)); err == nil && remaining == 0 {
			return fmt.Errorf("%w on %s %s", source.ErrRateLimited, method, path)
		}
		return fmt.Errorf("%w on %s %s", source.ErrForbidden, method, path)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", source.ErrNotFound, method, path)
	}

	var apiErr errorResponse
	msg := truncate(string(resp.body), 200)
	if json.Unmarshal(resp.body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &source.HTTPError{
		StatusCode: resp.status,
		Method:     method,
		Path:       path,
		Body:       msg,
	}
}

// backoff returns base * 2^attempt capped at maxBackoff: 1s, 2s, 4s, ...
func backoff(base time.Duration, attempt int) time.Duration {
	d := base * time.Duration(1<<uint(attempt))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(h http.Header, base time.Duration, attempt int) time.Duration {
	if header := h.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			d := time.Duration(seconds) * time.Second
			if d > maxBackoff {
				return maxBackoff
			}
			return d
		}
	}
	return backoff(base, attempt)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
