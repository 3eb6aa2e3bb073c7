package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rickgao/bybit-streams/internal/version"
)

// Errors
var (
	ErrMissingCredentials = errors.New("signed request without credentials")
)

// Bybit return codes worth retrying.
const (
	retCodeRateLimited   = 10006
	retCodeServerTimeout = 10016
)

// APIError represents an error from the Bybit API. StatusCode is the HTTP
// status; RetCode is Bybit's own code for HTTP 200 responses that failed.
type APIError struct {
	StatusCode int
	RetCode    int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.RetCode != 0 {
		return fmt.Sprintf("bybit api error %d (retCode %d): %s", e.StatusCode, e.RetCode, e.Message)
	}
	return fmt.Sprintf("bybit api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429 ||
		e.RetCode == retCodeRateLimited || e.RetCode == retCodeServerTimeout
}

// envelope is the common Bybit v5 response wrapper.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// doRequest performs an HTTP request and unwraps the response envelope.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, signed bool) (json.RawMessage, error) {
	encoded := query.Encode()
	fullURL := c.baseURL + path
	if encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if signed {
		if !c.creds.Valid() {
			return nil, ErrMissingCredentials
		}
		for k, v := range c.creds.SignREST(c.now(), c.recvWindow, encoded) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.RetCode != 0 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			RetCode:    env.RetCode,
			Message:    env.RetMsg,
			Body:       body,
		}
	}

	return env.Result, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values, signed bool) (json.RawMessage, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		result, err := c.doRequest(ctx, method, path, query, signed)
		if err == nil {
			return result, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET request with retries and decodes the result object.
func (c *Client) get(ctx context.Context, path string, query url.Values, signed bool, result any) error {
	raw, err := c.doWithRetry(ctx, http.MethodGet, path, query, signed)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}

	return nil
}
