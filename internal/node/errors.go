package node

import "errors"

// Sentinel errors for node operations.
var (
	// ErrUnauthorized indicates the remote service rejected the signature.
	ErrUnauthorized = errors.New("node: unauthorized")

	// ErrNotFound indicates the wallet or resource is unknown remotely.
	ErrNotFound = errors.New("node: not found")

	// ErrConflict indicates the action was already performed.
	ErrConflict = errors.New("node: already done")

	// ErrRateLimited indicates the remote service throttled the request.
	ErrRateLimited = errors.New("node: rate limited")

	// ErrUnavailable indicates a transient network or server failure.
	ErrUnavailable = errors.New("node: service unavailable")

	// ErrInvalidKey indicates the account credential is not a usable key.
	ErrInvalidKey = errors.New("node: invalid private key")
)

// IsRetryable reports whether a single request may be retried after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
