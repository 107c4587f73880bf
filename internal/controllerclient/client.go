// Package controllerclient is a thin HTTP client for the separate
// Controller process (system/hardware management: disks, services,
// scripts, admin, stats). The Controller's internals are explicitly out
// of scope; this package only satisfies "Core interacts only via HTTP"
// with retry/timeout/status-code classification (same doRetry shape as
// an authenticated HTTP API client, trimmed of auth and paging since the
// Controller needs neither).
package controllerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

const (
	maxRetries    = 3
	baseBackoff   = 500 * time.Millisecond
	maxBackoff    = 10 * time.Second
	backoffFactor = 2.0
)

// Client talks to the Controller's JSON HTTP surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Client. httpClient may be nil, in which case a client with
// a 30-second per-request timeout is used; a supplied client's own timeout
// (or lack of one) applies to each attempt of the retry loop.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// DiskStats reports storage utilization of the media root, a stat the
// Controller owns.
type DiskStats struct {
	TotalBytes     int64 `json:"total_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

// DiskStats fetches current disk usage from the Controller.
func (c *Client) DiskStats(ctx context.Context) (DiskStats, error) {
	var stats DiskStats

	if err := c.doJSON(ctx, http.MethodGet, "/api/disks/stats", nil, &stats); err != nil {
		return DiskStats{}, err
	}

	return stats, nil
}

// doJSON executes a retried request against path, decoding a JSON
// response body into out (ignored if nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("controllerclient: encoding request body: %w", err)
		}

		reqBody = bytes.NewReader(encoded)
	}

	resp, err := c.doRetry(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("controllerclient: decoding response from %s: %w", path, err)
	}

	return nil
}

// doRetry retries on network errors and 5xx/429 responses with capped
// exponential backoff.
func (c *Client) doRetry(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("controllerclient: building request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err

			if waitErr := c.sleepBackoff(ctx, attempt); waitErr != nil {
				return nil, waitErr
			}

			continue
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		resp.Body.Close()

		if !isRetryable(resp.StatusCode) || attempt == maxRetries {
			return nil, fmt.Errorf("controllerclient: %s %s: status %d", method, path, resp.StatusCode)
		}

		c.logger.Warn("retrying controller request",
			slog.String("method", method), slog.String("path", path),
			slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt))

		if waitErr := c.sleepBackoff(ctx, attempt); waitErr != nil {
			return nil, waitErr
		}
	}

	return nil, fmt.Errorf("controllerclient: %s %s: exhausted retries: %w", method, path, lastErr)
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt)))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	t := time.NewTimer(backoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
