// Package redis provides Redis-backed infrastructure components for
// deployments where several terminals share one store without PostgreSQL
// round-trips on every request.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"retailcore/internal/core/apperror"
	"retailcore/internal/infrastructure/storage/idempotency"
)

const keyPrefix = "retailcore:idem:"

// record is the stored representation of one idempotency key.
type record struct {
	UserID      string             `json:"userId"`
	Operation   string             `json:"operation"`
	Status      idempotency.Status `json:"status"`
	RequestHash string             `json:"requestHash"`
	Response    []byte             `json:"response,omitempty"`
	StatusCode  int                `json:"statusCode,omitempty"`
	ContentType string             `json:"contentType,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Compile-time interface check.
var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore manages idempotency keys in Redis. Acquisition relies on
// SET NX so exactly one request claims a key.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// AcquireKey attempts to acquire an idempotency key.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	pending, err := json.Marshal(record{
		UserID:      userID,
		Operation:   operation,
		Status:      idempotency.StatusPending,
		RequestHash: requestHash,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal pending record: %w", err)
	}

	acquired, err := s.client.SetNX(ctx, keyPrefix+key, pending, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if acquired {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Key expired between SETNX and GET; treat as acquired.
			return nil, nil
		}
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	var stored record
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record: %w", err)
	}

	if stored.UserID != userID || stored.Operation != operation || stored.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", stored.Operation).
			WithDetail("request_operation", operation)
	}

	switch stored.Status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		return &idempotency.Replay{
			StatusCode:  stored.StatusCode,
			ContentType: stored.ContentType,
			Body:        stored.Response,
		}, nil
	case idempotency.StatusPending:
		// Reclaim keys left pending by a crashed request.
		if time.Since(stored.UpdatedAt) > time.Minute {
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}

	return nil, nil
}

// CompleteKey marks a key as completed with the HTTP response to replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey marks a key as failed with the HTTP response to replay.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	var responseBytes []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			responseBytes, _ = json.Marshal(map[string]string{"error": err.Error()})
		} else {
			responseBytes = b
		}
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return fmt.Errorf("read idempotency key: %w", err)
	}
	var stored record
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("unmarshal idempotency record: %w", err)
	}

	stored.Status = status
	stored.Response = responseBytes
	stored.StatusCode = statusCode
	stored.ContentType = contentType
	stored.UpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	return s.client.Set(ctx, keyPrefix+key, updated, redis.KeepTTL).Err()
}
