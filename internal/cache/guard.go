package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

const lockKeyPrefix = "tournament:lock:"

// ErrLocked is returned when another process holds the lock
var ErrLocked = errors.New("locked by another process")

// Locker takes and releases named leases
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) (bool, error)
}

// Guard runs work under a named lease so that two workers sharing a
// database never run the same cycle at once.
type Guard struct {
	locker Locker
	ttl    time.Duration
}

// NewGuard returns a guard; a nil locker runs everything unguarded
func NewGuard(locker Locker, ttl time.Duration) *Guard {
	return &Guard{locker: locker, ttl: ttl}
}

// Do runs fn while holding the lease for name. When the lock store is
// unreachable fn still runs; in-process single flight remains in force.
func (g *Guard) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if g == nil || g.locker == nil {
		return fn(ctx)
	}

	key := lockKeyPrefix + name
	token, ok, err := g.locker.Lock(ctx, key, g.ttl)
	if err != nil {
		log.Warn().Err(err).Str("lock", name).Msg("Lock store unavailable, running unguarded")
		return fn(ctx)
	}
	if !ok {
		return ErrLocked
	}

	defer func() {
		// Release even when ctx is already cancelled
		released, err := g.locker.Unlock(context.WithoutCancel(ctx), key, token)
		if err != nil {
			log.Warn().Err(err).Str("lock", name).Msg("Failed to release lock")
		} else if !released {
			log.Warn().Str("lock", name).Msg("Lock expired before the work finished")
		}
	}()

	return fn(ctx)
}
