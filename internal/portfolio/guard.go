package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// LockKey names the single-flight resource shared by every rebalance run.
const LockKey = "portfolio-rebalance"

// ErrRebalanceInProgress is returned when another run holds the lock.
var ErrRebalanceInProgress = errors.New("portfolio: rebalance already in progress")

// Locker is a TTL lock keyed by name. cache.Service satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// Guard admits one rebalance at a time. Without a Locker it falls back to
// an in-process mutex.
type Guard struct {
	locker Locker
	ttl    time.Duration
	local  sync.Mutex
}

func NewGuard(locker Locker, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Guard{locker: locker, ttl: ttl}
}

// Acquire returns a release func, or ErrRebalanceInProgress.
func (g *Guard) Acquire(ctx context.Context) (func(), error) {
	if g.locker == nil {
		if !g.local.TryLock() {
			return nil, ErrRebalanceInProgress
		}
		return g.local.Unlock, nil
	}

	token, ok, err := g.locker.TryLock(ctx, LockKey, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire rebalance lock: %w", err)
	}
	if !ok {
		return nil, ErrRebalanceInProgress
	}
	return func() {
		// Fresh context: the caller's may already be cancelled.
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = g.locker.Unlock(uctx, LockKey, token)
	}, nil
}
