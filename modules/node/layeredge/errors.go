package layeredge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/flemzord/edgecycle/internal/node"
)

// apiError is the error envelope returned by the service.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// mapHTTPError maps a status code and body to a node sentinel error.
// Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var msg string
	var e apiError
	switch {
	case json.Unmarshal(body, &e) == nil && e.Message != "":
		msg = e.Message
	case e.Error != "":
		msg = e.Error
	default:
		msg = string(body)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", node.ErrRateLimited, msg)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", node.ErrUnauthorized, msg)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", node.ErrNotFound, msg)
	case statusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", node.ErrConflict, msg)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", node.ErrUnavailable, statusCode, msg)
	default:
		return fmt.Errorf("layeredge: HTTP %d: %s", statusCode, msg)
	}
}

// mapConnectionError maps network-level errors to node sentinel errors.
// Context errors pass through unchanged.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", node.ErrUnavailable, err)
	}
	return fmt.Errorf("layeredge: %w", err)
}
