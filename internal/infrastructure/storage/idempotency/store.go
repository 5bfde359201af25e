// Package idempotency defines the contract for request idempotency stores.
// PostgreSQL and Redis implementations live in the sibling storage packages;
// the HTTP middleware depends only on this interface.
package idempotency

import "context"

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is the cached HTTP response for replay.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
type Store interface {
	// AcquireKey attempts to acquire an idempotency key.
	// Returns:
	//   - (nil, nil) if key acquired successfully
	//   - (cachedResponse, nil) if operation already completed
	//   - (nil, error) if key is locked by another in-flight request or
	//     reused for a different request
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)

	// CompleteKey marks a key as completed with the HTTP response to replay.
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// FailKey marks a key as failed with the HTTP response to replay.
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}
