package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrQuotaExceeded = errors.New("session quota exceeded")

const (
	DefaultSessionQuota = 3
	DefaultQuotaWindow  = 24 * time.Hour
)

// CounterStore counts events per key inside fixed windows. Incr starts a new
// window of the given length when key has none.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// QuotaStatus describes the window an Allow call landed in.
type QuotaStatus struct {
	Count     int64
	Remaining int64
	ResetAt   time.Time
}

// Quota allows at most max calls per session per window.
type Quota struct {
	store  CounterStore
	max    int64
	window time.Duration
	prefix string
}

func NewQuota(store CounterStore, max int, window time.Duration) *Quota {
	if max <= 0 {
		max = DefaultSessionQuota
	}
	if window <= 0 {
		window = DefaultQuotaWindow
	}
	return &Quota{store: store, max: int64(max), window: window, prefix: "renoguard:quota:"}
}

// Allow counts one call for id. Over the limit it returns the status with
// ErrQuotaExceeded.
func (q *Quota) Allow(ctx context.Context, id string) (QuotaStatus, error) {
	count, resetAt, err := q.store.Incr(ctx, q.prefix+id, q.window)
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("quota counter: %w", err)
	}
	status := QuotaStatus{Count: count, Remaining: q.max - count, ResetAt: resetAt}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	if count > q.max {
		return status, ErrQuotaExceeded
	}
	return status, nil
}
