package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix namespaces bridge entries in Redis.
const sessionKeyPrefix = "bexio:oauthsession:"

// RedisRepo is a Redis-backed implementation of Repo for deployments where
// multiple instances must share flow state. Expiry is enforced twice: lazily
// against CreatedAt (so Get reports expired, not stale) and by a Redis key
// TTL of twice the session TTL, which stands in for the background sweep.
type RedisRepo struct {
	client  *redis.Client
	ttl     time.Duration
	nowTime func() time.Time
}

// RedisRepoOption modifies a RedisRepo instance.
type RedisRepoOption func(*RedisRepo)

// WithRedisNowTime sets the now time function (primarily for testing).
func WithRedisNowTime(nowFunc func() time.Time) RedisRepoOption {
	return func(r *RedisRepo) {
		r.nowTime = nowFunc
	}
}

// NewRedisRepo creates a Redis-backed session bridge with the given TTL.
func NewRedisRepo(client *redis.Client, ttl time.Duration, options ...RedisRepoOption) *RedisRepo {
	r := &RedisRepo{
		client:  client,
		ttl:     ttl,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Create inserts a pending session. SETNX enforces create-once across
// instances.
func (r *RedisRepo) Create(ctx context.Context, sessionID, platform string) error {
	if sessionID == "" {
		return ErrNotFound
	}

	session := Session{
		ID:        sessionID,
		Status:    StatusPending,
		Platform:  platform,
		CreatedAt: r.nowTime(),
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Create] marshal")
	}

	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+sessionID, raw, 2*r.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Create] SETNX")
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// Get retrieves a session, lazily expiring it if past TTL.
func (r *RedisRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	key := sessionKeyPrefix + sessionID

	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "[RedisRepo.Get] GET")
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, errors.Wrap(err, "[RedisRepo.Get] unmarshal")
	}
	if r.expired(session) {
		_ = r.client.Del(ctx, key).Err()
		return Session{}, ErrExpired
	}
	return session, nil
}

// Complete records the success outcome; the first terminal write wins.
func (r *RedisRepo) Complete(ctx context.Context, sessionID string, tokens Tokens) error {
	return r.finalise(ctx, sessionID, func(s *Session) {
		s.Status = StatusCompleted
		s.Tokens = &tokens
	})
}

// Fail records the failure outcome; the first terminal write wins.
func (r *RedisRepo) Fail(ctx context.Context, sessionID, reason string) error {
	return r.finalise(ctx, sessionID, func(s *Session) {
		s.Status = StatusFailed
		s.Error = reason
	})
}

// Delete removes a session. Idempotent.
func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	return errors.Wrap(r.client.Del(ctx, sessionKeyPrefix+sessionID).Err(), "[RedisRepo.Delete] DEL")
}

// PurgeExpired is a no-op: the Redis key TTL reclaims abandoned entries.
func (r *RedisRepo) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}

// finalise applies a terminal transition under WATCH so that concurrent
// callback deliveries for the same session serialize to one winner.
func (r *RedisRepo) finalise(ctx context.Context, sessionID string, apply func(*Session)) error {
	key := sessionKeyPrefix + sessionID

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "[RedisRepo.finalise] GET")
		}

		var session Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return errors.Wrap(err, "[RedisRepo.finalise] unmarshal")
		}
		if r.expired(session) {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return errors.Wrap(err, "[RedisRepo.finalise] expire DEL")
			}
			return ErrExpired
		}
		if session.Terminal() {
			return ErrAlreadyFinalised
		}

		apply(&session)
		updated, err := json.Marshal(session)
		if err != nil {
			return errors.Wrap(err, "[RedisRepo.finalise] marshal")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return errors.Wrap(err, "[RedisRepo.finalise] SET")
	}

	err := r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer finalised between WATCH and EXEC.
		return ErrAlreadyFinalised
	}
	return err
}

func (r *RedisRepo) expired(s Session) bool {
	return r.nowTime().Sub(s.CreatedAt) > r.ttl
}
