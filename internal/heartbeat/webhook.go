package heartbeat

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// SignatureHeader carries the body signature when a secret is set.
const SignatureHeader = "X-Signature-256"

// Sign returns the "sha256=<hex>" HMAC of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("heartbeat: webhook returned HTTP %d", e.code)
}

// post delivers body once per attempt, retrying network errors and 5xx.
func (n *Notifier) post(ctx context.Context, body []byte) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "edgecycle-heartbeat")
		if n.cfg.Secret != "" {
			req.Header.Set(SignatureHeader, Sign(n.cfg.Secret, body))
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return struct{}{}, nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return struct{}{}, &statusError{code: resp.StatusCode}
		default:
			return struct{}{}, backoff.Permanent(&statusError{code: resp.StatusCode})
		}
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(n.retryDelay)),
		backoff.WithMaxTries(uint(n.cfg.MaxRetries)+1),
	)
	return err
}

const defaultRetryDelay = 2 * time.Second
