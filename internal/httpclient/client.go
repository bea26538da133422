// Package httpclient is the shared loopback JSON client used by the
// observer to call the agent's internal API and vice versa. Retry
// classification follows the teacher's internal/llm/client.go
// classifyHTTPError idiom: 429/5xx/502/503/504 retry, everything else
// does not.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client is a small JSON-over-HTTP client with bounded retry, used for the
// narrow observer<->agent loopback contract (§9: "peer services over a
// narrow HTTP contract, not shared memory").
type Client struct {
	baseURL    string
	headerName string
	headerVal  string
	httpClient *http.Client
	log        zerolog.Logger
	maxRetries int
}

// New builds a client against baseURL, attaching headerName: headerVal
// (X-Internal-Key in practice) to every request.
func New(baseURL, headerName, headerVal string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		headerName: headerName,
		headerVal:  headerVal,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "httpclient").Logger(),
		maxRetries: 3,
	}
}

// CallError wraps a non-2xx response with retry classification, mirroring
// the teacher's LLMError/classifyHTTPError split.
type CallError struct {
	StatusCode int
	Body       string
	Retryable  bool
}

func (e *CallError) Error() string {
	return fmt.Sprintf("loopback call failed (status %d): %s", e.StatusCode, e.Body)
}

func classifyStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500 && status < 600:
		return true
	default:
		return false
	}
}

// Do sends method to path with body marshaled as JSON (nil for no body)
// and unmarshals the response into out (nil to discard). Retries up to
// maxRetries times on transient failures (network errors, 429, 5xx) with
// a small exponential backoff; 4xx responses fail immediately.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 250 * time.Millisecond
			c.log.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", backoff).
				Str("path", path).Msg("retrying loopback call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.attempt(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if callErr, ok := err.(*CallError); ok && !callErr.Retryable {
			return err
		}
	}
	return fmt.Errorf("loopback call to %s failed after %d attempts: %w", path, c.maxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.headerName != "" {
		req.Header.Set(c.headerName, c.headerVal)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CallError{StatusCode: 0, Body: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &CallError{StatusCode: resp.StatusCode, Body: "failed to read body", Retryable: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &CallError{StatusCode: resp.StatusCode, Body: string(respBody), Retryable: classifyStatus(resp.StatusCode)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response from %s: %w", path, err)
		}
	}
	return nil
}
