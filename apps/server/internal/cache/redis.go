package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"bluff-lite/bluff"
)

const redisKeyPrefix = "bluff:decision:"

// Redis shares decisions across processes. Expiry is delegated to Redis
// key TTLs.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, scope string, gs bluff.GameState) (bluff.Action, bool, error) {
	fp := bluff.Fingerprint(gs)
	raw, err := r.client.Get(ctx, redisKeyPrefix+entryKey(scope, fp)).Bytes()
	if errors.Is(err, redis.Nil) {
		lookups.WithLabelValues("redis", "miss").Inc()
		return bluff.Action{}, false, nil
	}
	if err != nil {
		lookups.WithLabelValues("redis", "error").Inc()
		return bluff.Action{}, false, &Error{Op: "get", Err: err}
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		lookups.WithLabelValues("redis", "error").Inc()
		return bluff.Action{}, false, &Error{Op: "decode", Err: err}
	}
	if e.Fingerprint != fp {
		lookups.WithLabelValues("redis", "miss").Inc()
		return bluff.Action{}, false, nil
	}
	lookups.WithLabelValues("redis", "hit").Inc()
	return e.Action, true, nil
}

func (r *Redis) Put(ctx context.Context, scope string, gs bluff.GameState, action bluff.Action) error {
	fp := bluff.Fingerprint(gs)
	raw, err := json.Marshal(Entry{Fingerprint: fp, Action: action, CreatedAt: time.Now().UTC()})
	if err != nil {
		return &Error{Op: "encode", Err: err}
	}
	if err := r.client.Set(ctx, redisKeyPrefix+entryKey(scope, fp), raw, r.ttl).Err(); err != nil {
		return &Error{Op: "put", Err: err}
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, scope string, gs bluff.GameState) error {
	if err := r.client.Del(ctx, redisKeyPrefix+entryKey(scope, bluff.Fingerprint(gs))).Err(); err != nil {
		return &Error{Op: "invalidate", Err: err}
	}
	invalidations.WithLabelValues("redis", "one").Inc()
	return nil
}

func (r *Redis) InvalidateAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 256).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := r.client.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 256 {
			if err := flush(); err != nil {
				return &Error{Op: "invalidate-all", Err: err}
			}
		}
	}
	if err := iter.Err(); err != nil {
		return &Error{Op: "invalidate-all", Err: err}
	}
	if err := flush(); err != nil {
		return &Error{Op: "invalidate-all", Err: err}
	}
	invalidations.WithLabelValues("redis", "all").Inc()
	return nil
}
