// Package provider adapts external KYC and AML screening providers to the
// normalized result types the check pipeline consumes.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ableka/lumina/internal/domain"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 2
	defaultRetryBase  = 200 * time.Millisecond
)

// httpClient is the shared JSON-over-HTTP transport for provider calls.
// Transient failures (network errors, 5xx, 429) are retried with
// exponential backoff; other 4xx responses are validation failures and
// are never retried.
type httpClient struct {
	name       string
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	retryBase  time.Duration
	logger     *slog.Logger
}

func newHTTPClient(name string, cfg domain.ProviderConfig, logger *slog.Logger) *httpClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = defaultMaxRetries
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	return &httpClient{
		name:       name,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: retries,
		retryBase:  base,
		logger:     logger,
	}
}

// postJSON posts payload to path and decodes the response into out.
func (c *httpClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.name, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %v: %w", c.name, ctx.Err(), domain.ErrProviderUnavailable)
			case <-time.After(backoff):
			}
			c.logger.Debug("retrying provider call",
				"provider", c.name, "path", path, "attempt", attempt)
		}

		err := c.doOnce(ctx, path, body, out)
		if err == nil {
			return nil
		}
		if domain.IsValidation(err) {
			return err
		}
		lastErr = err
	}

	c.logger.Warn("provider unavailable after retries",
		"provider", c.name, "path", path, "attempts", c.maxRetries+1, "error", lastErr)
	return fmt.Errorf("%s: %v: %w", c.name, lastErr, domain.ErrProviderUnavailable)
}

func (c *httpClient) doOnce(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.ValidationError{
			Source: c.name,
			Reason: fmt.Sprintf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail)),
		}
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
}
