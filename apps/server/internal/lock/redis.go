package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "lock")

const redisKeyPrefix = "bluff:lock:"

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX PX and a compare-and-delete release.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, &Error{Key: key, Op: "acquire", Err: err}
	}
	if !ok {
		return nil, &Error{Key: key, Op: "acquire", Err: ErrNotAcquired}
	}
	return &Lease{Key: key, Token: token, Expires: time.Now().Add(ttl)}, nil
}

func (r *Redis) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{redisKeyPrefix + lease.Key}, lease.Token).Err(); err != nil {
		return &Error{Key: lease.Key, Op: "release", Err: err}
	}
	return nil
}
