// Package throttle locks out login identifiers after repeated failures.
//
// Each identifier has a failure counter. The fifth failure locks it for ten
// minutes and resets the counter; once the lock expires the next failure
// starts a fresh count. A successful login clears the entry.
package throttle

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultMaxFailures = 5
	DefaultLockout     = 10 * time.Minute
)

// State is the stored record for one identifier.
type State struct {
	Count       int       `json:"count"`
	LockedUntil time.Time `json:"locked_until"`
}

// Store persists throttle state. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (State, bool, error)
	Set(ctx context.Context, key string, st State) error
	Delete(ctx context.Context, key string) error
}

// Throttle applies the lockout policy on top of a Store.
type Throttle struct {
	store       Store
	maxFailures int
	lockout     time.Duration
	now         func() time.Time
}

type Option func(*Throttle)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) { t.now = now }
}

// WithPolicy overrides the failure threshold and lock duration
func WithPolicy(maxFailures int, lockout time.Duration) Option {
	return func(t *Throttle) {
		t.maxFailures = maxFailures
		t.lockout = lockout
	}
}

func New(store Store, opts ...Option) *Throttle {
	t := &Throttle{
		store:       store,
		maxFailures: DefaultMaxFailures,
		lockout:     DefaultLockout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key normalizes a login identifier
func Key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check returns the remaining lock time, or zero when the key may attempt a login.
// It never changes the stored counter.
func (t *Throttle) Check(ctx context.Context, key string) (time.Duration, error) {
	st, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	now := t.now()
	if now.Before(st.LockedUntil) {
		return st.LockedUntil.Sub(now), nil
	}
	return 0, nil
}

// Fail records a failed attempt and reports whether the key is now locked.
func (t *Throttle) Fail(ctx context.Context, key string) (bool, error) {
	now := t.now()
	st, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || (!st.LockedUntil.IsZero() && !now.Before(st.LockedUntil)) {
		st = State{}
	}
	st.Count++
	locked := false
	if st.Count >= t.maxFailures {
		st = State{Count: 0, LockedUntil: now.Add(t.lockout)}
		locked = true
	}
	return locked, t.store.Set(ctx, key, st)
}

// Succeed clears the key
func (t *Throttle) Succeed(ctx context.Context, key string) error {
	return t.store.Delete(ctx, key)
}

// RetryAfterSeconds rounds a remaining duration up to whole seconds
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
