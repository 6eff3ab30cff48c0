package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "recovery")

var (
	retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Subsystem: "recovery",
		Name:      "retries_total",
		Help:      "Retried attempts by operation label.",
	}, []string{"label"})
	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bluff",
		Subsystem: "recovery",
		Name:      "fallbacks_total",
		Help:      "Operations answered by their fallback, by label.",
	}, []string{"label"})
)

const DefaultAttempts = 3

// Policy controls WithRetry. The zero value retries DefaultAttempts times
// starting at 50ms.
type Policy struct {
	Attempts        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:        DefaultAttempts,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Attempts == 0 {
		p.Attempts = d.Attempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	return p
}

// Error reports an operation that failed after every attempt.
type Error struct {
	Label    string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Label, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// WithRetry runs op with exponential backoff until it succeeds, returns a
// Permanent error, the attempts run out or ctx ends.
func WithRetry[T any](ctx context.Context, label string, p Policy, op func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	attempts := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		return op(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.Attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			retries.WithLabelValues(label).Inc()
			log.WithError(err).WithFields(logrus.Fields{"label": label, "next": next}).Debug("retrying")
		}),
	)
	if err != nil {
		var zero T
		return zero, &Error{Label: label, Attempts: attempts, Err: err}
	}
	return v, nil
}

// WithFallback returns primary's value, or fallback's when primary fails.
// recovered reports that the fallback answered. A primary failure is
// logged, not returned.
func WithFallback[T any](ctx context.Context, label string, primary func(context.Context) (T, error), fallback func(context.Context) T) (v T, recovered bool) {
	v, err := primary(ctx)
	if err == nil {
		return v, false
	}
	fallbacks.WithLabelValues(label).Inc()
	entry := log.WithError(err).WithField("label", label)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		entry.Debug("primary abandoned, using fallback")
	} else {
		entry.Warn("primary failed, using fallback")
	}
	return fallback(ctx), true
}
