// Package webhook talks to the external approval and OCR webhooks.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	// maxAttempts is the first try plus a single retry
	maxAttempts  = 2
	maxBodyBytes = 1 << 20
)

// Config holds webhook client configuration
type Config struct {
	URL        string
	Timeout    time.Duration
	RetryDelay time.Duration
}

type doer struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func newDoer(cfg Config, httpClient *http.Client, logger *zap.Logger) doer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return doer{cfg: cfg, http: httpClient, logger: logger}
}

// statusError is a non-2xx response
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook request failed: %d", e.Code)
}

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

// post sends the body built by newBody, retrying once on transport errors,
// 5xx and 429. Each attempt gets its own timeout.
func (d doer) post(ctx context.Context, newBody func() ([]byte, string, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.cfg.RetryDelay):
			}
		}

		body, contentType, err := newBody()
		if err != nil {
			return nil, err
		}
		respBody, err := d.attempt(ctx, contentType, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		d.logger.Warn("Webhook attempt failed",
			zap.String("url", d.cfg.URL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (d doer) attempt(ctx context.Context, contentType string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{Code: resp.StatusCode}
	}
	return respBody, nil
}
