package layeredge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"

	"github.com/flemzord/edgecycle/internal/node"
)

// maxResponseSize bounds response bodies read from the service (1 MB).
const maxResponseSize = 1 << 20

// envelope wraps every successful response payload.
type envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// newHTTPRequest builds a request against the configured base URL.
func (s *Session) newHTTPRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("layeredge: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.factory.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("layeredge: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.factory.config.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs one rate-limited round trip and maps failures to node
// sentinel errors.
func (s *Session) send(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := s.factory.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := s.newHTTPRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", node.ErrUnavailable, err)
	}
	if err := mapHTTPError(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// do sends a request, retrying transient failures, and decodes the data
// field of the response into out when out is non-nil.
func (s *Session) do(ctx context.Context, method, path string, payload, out any) error {
	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		b, err := s.send(ctx, method, path, payload)
		if err == nil {
			return b, nil
		}
		if !node.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		s.logger.Debug("request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"error", err,
		)
		return nil, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.factory.retryDelay)),
		backoff.WithMaxTries(uint(s.factory.config.MaxRetries)+1),
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("layeredge: decode %s: %w", path, err)
	}
	return nil
}
