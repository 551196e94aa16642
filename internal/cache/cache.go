// Package cache provides the byte-level cache and the keyed lock used by the
// catalog client and the entity resolver. Two backends exist: an in-process
// one for single-instance deployments and tests, and a redis one shared by
// every replica.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// context was done.
var ErrLockTimeout = errors.New("cache: lock not acquired")

// Cache stores opaque values with a TTL. A miss is reported by ok == false
// with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Locker serializes work on a key. Lock blocks until the lock is held or ctx
// is done; the returned func releases it. ttl bounds how long a crashed holder
// can keep the lock on backends that support expiry.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// retryInterval is how often a contended lock is polled.
const retryInterval = 25 * time.Millisecond
