package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bluff-lite/bluff"
)

const (
	DefaultTTL  = 30 * time.Second
	DefaultSize = 4096
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Decision cache lookups by backend and result.",
	}, []string{"backend", "result"})
	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Decision cache invalidations by backend and scope (one or all).",
	}, []string{"backend", "scope"})
)

// Error wraps a cache backend failure. Callers treat it as a miss.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("cache %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Entry is a cached decision.
type Entry struct {
	Fingerprint string       `json:"fingerprint"`
	Action      bluff.Action `json:"action"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// DecisionCache maps a scoped state fingerprint to the action decided for
// it. Scope separates opponents whose models differ.
type DecisionCache interface {
	Get(ctx context.Context, scope string, gs bluff.GameState) (bluff.Action, bool, error)
	Put(ctx context.Context, scope string, gs bluff.GameState, action bluff.Action) error
	Invalidate(ctx context.Context, scope string, gs bluff.GameState) error
	InvalidateAll(ctx context.Context) error
}

func entryKey(scope, fingerprint string) string {
	return scope + ":" + fingerprint
}

// Memory is an in-process LRU cache whose entries expire after ttl.
type Memory struct {
	lru *expirable.LRU[string, Entry]
	ttl time.Duration
	now func() time.Time
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		lru: expirable.NewLRU[string, Entry](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, scope string, gs bluff.GameState) (bluff.Action, bool, error) {
	fp := bluff.Fingerprint(gs)
	e, ok := m.lru.Get(entryKey(scope, fp))
	if !ok || e.Fingerprint != fp || m.now().Sub(e.CreatedAt) >= m.ttl {
		lookups.WithLabelValues("memory", "miss").Inc()
		return bluff.Action{}, false, nil
	}
	lookups.WithLabelValues("memory", "hit").Inc()
	return e.Action, true, nil
}

func (m *Memory) Put(_ context.Context, scope string, gs bluff.GameState, action bluff.Action) error {
	fp := bluff.Fingerprint(gs)
	m.lru.Add(entryKey(scope, fp), Entry{Fingerprint: fp, Action: action, CreatedAt: m.now()})
	return nil
}

func (m *Memory) Invalidate(_ context.Context, scope string, gs bluff.GameState) error {
	m.lru.Remove(entryKey(scope, bluff.Fingerprint(gs)))
	invalidations.WithLabelValues("memory", "one").Inc()
	return nil
}

func (m *Memory) InvalidateAll(_ context.Context) error {
	m.lru.Purge()
	invalidations.WithLabelValues("memory", "all").Inc()
	return nil
}

// Len is the number of live entries.
func (m *Memory) Len() int { return m.lru.Len() }
