package lockmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultKeyPrefix = "ledger:lock:"
	releaseTimeout   = time.Second
)

var (
	errLockHeld = errors.New("lock is already held")
	errNotOwner = errors.New("lock expired or is held by another owner")
)

// The token check keeps a holder whose lock expired from deleting a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process that uses the same redis.
//
// A lock expires after ttl even if its holder never releases it, so ttl must
// exceed the longest expected commit.
type RedisLocker struct {
	client      redis.UniversalClient
	prefix      string
	ttl         time.Duration
	waitTimeout time.Duration
}

// NewRedisLocker returns a RedisLocker.
func NewRedisLocker(client redis.UniversalClient, ttl, waitTimeout time.Duration) *RedisLocker {
	return &RedisLocker{
		client:      client,
		prefix:      defaultKeyPrefix,
		ttl:         ttl,
		waitTimeout: waitTimeout,
	}
}

// Key returns the redis key guarding accountID.
func (l *RedisLocker) Key(accountID string) string {
	return l.prefix + accountID
}

// Acquire polls SET NX with exponential backoff until the lock is taken, the
// wait timeout expires or ctx is done. Redis errors are reported as
// domain.ErrStorageFailure.
func (l *RedisLocker) Acquire(ctx context.Context, accountID string) (Handle, error) {
	key := l.Key(accountID)
	token := uuid.NewString()

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.waitTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, l.waitTimeout)
	}
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0 // bounded by waitCtx

	op := func() error {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return waitCtx.Err()
			}
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, waitCtx))
	switch {
	case err == nil:
		return &redisHandle{locker: l, key: key, token: token, logger: zerolog.Ctx(ctx)}, nil
	case ctx.Err() != nil:
		l.abandon(ctx, key, token)
		return nil, ctx.Err()
	case waitCtx.Err() != nil:
		l.abandon(ctx, key, token)
		return nil, domain.ErrLockTimeout
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("acquire account lock")
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
}

func (l *RedisLocker) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", key, errNotOwner)
	}

	return nil
}

// abandon deletes the key if a SET NX interrupted by the deadline was applied
// after all, so the account is not blocked until the TTL expires.
func (l *RedisLocker) abandon(ctx context.Context, key, token string) {
	if err := l.release(key, token); err != nil && !errors.Is(err, errNotOwner) {
		zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("abandon account lock")
	}
}

type redisHandle struct {
	once   sync.Once
	locker *RedisLocker
	key    string
	token  string
	logger *zerolog.Logger
}

func (h *redisHandle) Release() {
	h.once.Do(func() {
		if err := h.locker.release(h.key, h.token); err != nil {
			h.logger.Error().Err(err).Msg("release account lock")
		}
	})
}
