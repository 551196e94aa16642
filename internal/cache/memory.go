package cache

import (
	"context"
	"sync"
	"time"
)

// MemCache is an in-process Cache. Expired items are dropped on read and by a
// background cleanup worker.
type MemCache struct {
	items         sync.Map
	cleanupTicker *time.Ticker
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

type memItem struct {
	value   []byte
	expires time.Time
}

// NewMemCache creates a memory cache that sweeps expired keys every interval.
// A non-positive interval defaults to five minutes.
func NewMemCache(interval time.Duration) *MemCache {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemCache{
		cleanupTicker: time.NewTicker(interval),
		ctx:           ctx,
		cancel:        cancel,
	}
	mc.startCleanupWorker()
	return mc
}

func (mc *MemCache) startCleanupWorker() {
	mc.wg.Add(1)
	go func() {
		defer mc.wg.Done()
		for {
			select {
			case <-mc.cleanupTicker.C:
				mc.cleanup(time.Now())
			case <-mc.ctx.Done():
				return
			}
		}
	}()
}

// cleanup removes every key that expired before now.
func (mc *MemCache) cleanup(now time.Time) {
	mc.items.Range(func(key, value any) bool {
		if now.After(value.(*memItem).expires) {
			mc.items.Delete(key)
		}
		return true
	})
}

// Close stops the cleanup worker. It is safe to call more than once.
func (mc *MemCache) Close() {
	mc.closeOnce.Do(func() {
		mc.cancel()
		mc.cleanupTicker.Stop()
		mc.wg.Wait()
	})
}

// Get implements Cache.
func (mc *MemCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := mc.items.Load(key)
	if !ok {
		observe(backendMemory, false)
		return nil, false, nil
	}
	item := v.(*memItem)
	if time.Now().After(item.expires) {
		mc.items.Delete(key)
		observe(backendMemory, false)
		return nil, false, nil
	}
	observe(backendMemory, true)
	return item.value, true, nil
}

// Set implements Cache. A non-positive ttl deletes the key.
func (mc *MemCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		mc.items.Delete(key)
		return nil
	}
	cp := append([]byte(nil), value...)
	mc.items.Store(key, &memItem{value: cp, expires: time.Now().Add(ttl)})
	return nil
}

// Delete implements Cache.
func (mc *MemCache) Delete(_ context.Context, key string) error {
	mc.items.Delete(key)
	return nil
}

// LocalLocker is a Locker backed by one mutex per key. It only serializes
// callers inside the current process and ignores the ttl.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

// release drops one reference and forgets the key when nobody waits on it.
func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports how many keys are tracked.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
