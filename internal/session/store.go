// internal/session/store.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"therapy-connect/internal/models"
)

const keyPrefix = "session:"

// maxWatchRetries bounds optimistic-lock retries in MarkSummarized.
const maxWatchRetries = 3

var (
	ErrSessionNotFound   = errors.New("SESSION_NOT_FOUND")
	ErrAlreadySummarized = errors.New("SESSION_ALREADY_SUMMARIZED")
	ErrStoreUnavailable  = errors.New("SESSION_STORE_FAILED")
)

// Store persists session tokens between /start_session and /get_summary.
type Store interface {
	Create(ctx context.Context, rec *models.SessionRecord) error
	Get(ctx context.Context, id string) (*models.SessionRecord, error)
	MarkSummarized(ctx context.Context, id string, at time.Time) error
}

// RedisStore keeps one JSON document per session under session:<id> with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// Create assigns an id when rec has none and stores the record.
func (s *RedisStore) Create(ctx context.Context, rec *models.SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.State == "" {
		rec.State = models.SessionAwaitingAnswers
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStoreUnavailable, err)
	}
	if err := s.client.Set(ctx, key(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.SessionRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec models.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// MarkSummarized moves a session to its final state, keeping its remaining TTL.
// A concurrent second caller gets ErrAlreadySummarized.
func (s *RedisStore) MarkSummarized(ctx context.Context, id string, at time.Time) error {
	k := key(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var rec models.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.IsSummarized() {
			return ErrAlreadySummarized
		}
		rec.MarkSummarized(at)

		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, updated, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrAlreadySummarized):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return ErrAlreadySummarized
}
