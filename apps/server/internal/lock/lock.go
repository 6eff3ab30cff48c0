package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds how long a crashed holder can block others.
const DefaultTTL = 5 * time.Second

var ErrNotAcquired = errors.New("lock held by another owner")

// Error is returned when a lock cannot be taken or released.
type Error struct {
	Key string
	Op  string // "acquire", "release"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lock %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Lease proves ownership of a key until Expires.
type Lease struct {
	Key     string
	Token   string
	Expires time.Time
}

// Locker is a keyed, TTL-bounded mutual-exclusion service. Acquire never
// blocks: it either grants the lease or fails with ErrNotAcquired.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}

// WithLock runs fn while holding key. fn is skipped when the lock is
// unavailable; the acquire error is returned so callers can log it.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(context.WithoutCancel(ctx), lease); rerr != nil {
			log.WithError(rerr).WithField("key", key).Warn("release lock")
		}
	}()
	return fn(ctx)
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// Memory is a process-local Locker.
type Memory struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]memoryEntry), clock: time.Now}
}

func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Key: key, Op: "acquire", Err: err}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.held[key]; ok && now.Before(cur.expires) {
		return nil, &Error{Key: key, Op: "acquire", Err: ErrNotAcquired}
	}
	lease := &Lease{Key: key, Token: uuid.NewString(), Expires: now.Add(ttl)}
	m.held[key] = memoryEntry{token: lease.Token, expires: lease.Expires}
	return lease, nil
}

// Release frees the key if lease still owns it. Releasing an expired or
// superseded lease is a no-op.
func (m *Memory) Release(_ context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.held[lease.Key]; ok && cur.token == lease.Token {
		delete(m.held, lease.Key)
	}
	return nil
}
