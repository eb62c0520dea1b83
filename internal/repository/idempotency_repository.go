package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/utils"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "pricing:idempotency:submission:"

const (
	idempotencyPending   = "pending"
	idempotencyCompleted = "completed"
)

type idempotencyEntry struct {
	State        string `json:"state"`
	Fingerprint  string `json:"fingerprint"`
	SubmissionID int64  `json:"submission_id,omitempty"`
}

// IdempotencyRepository remembers which submission a client-supplied
// Idempotency-Key produced, so a retried POST returns the original id. Each
// key is bound to the fingerprint of the body it was first used with.
type IdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyRepository(client *redis.Client, ttl time.Duration) *IdempotencyRepository {
	return &IdempotencyRepository{client: client, ttl: ttl}
}

// Reserve claims key for a new create. When the key already completed it
// returns the stored submission id and reserved=false. A key held for a
// different fingerprint yields models.ErrIdempotencyKeyReused; one still held
// by another request yields models.ErrIdempotencyInFlight.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key, fingerprint string) (submissionID int64, reserved bool, err error) {
	pending, err := utils.SerializeModel(idempotencyEntry{State: idempotencyPending, Fingerprint: fingerprint})
	if err != nil {
		return 0, false, err
	}

	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, pending, r.ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return 0, true, nil
	}

	entry, err := r.lookup(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if entry == nil {
		// Expired between SETNX and GET; claim it again.
		return r.Reserve(ctx, key, fingerprint)
	}
	if entry.Fingerprint != fingerprint {
		slog.Warn("Idempotency key reused with a different body", "idempotency_key", key)
		return 0, false, models.ErrIdempotencyKeyReused
	}
	if entry.State != idempotencyCompleted {
		return 0, false, models.ErrIdempotencyInFlight
	}

	slog.Info("Replaying idempotent create", "idempotency_key", key, "submission_id", entry.SubmissionID)
	return entry.SubmissionID, false, nil
}

// Complete records the submission produced under key.
func (r *IdempotencyRepository) Complete(ctx context.Context, key, fingerprint string, submissionID int64) error {
	data, err := utils.SerializeModel(idempotencyEntry{
		State:        idempotencyCompleted,
		Fingerprint:  fingerprint,
		SubmissionID: submissionID,
	})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, idempotencyKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

// Release drops the key so the next Reserve claims it afresh. It is used after
// a failed create and when the replayed submission no longer exists.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) lookup(ctx context.Context, key string) (*idempotencyEntry, error) {
	data, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var entry idempotencyEntry
	if err := utils.DeserializeModel(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
