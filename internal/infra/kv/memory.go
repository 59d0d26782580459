package kv

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process TTL key-value store implementing the kv.Store
// port. State is a flat map guarded by one mutex; expiry is lazy on access
// plus a background sweep so abandoned rate-limit windows don't pile up.
type Memory struct {
	mu      sync.Mutex
	items   map[string]item
	nowFunc func() time.Time
	done    chan struct{}
}

type item struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

func (it item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// NewMemory creates a store and starts its sweep goroutine. Call Close
// when done.
func NewMemory() *Memory {
	m := &Memory{
		items:   make(map[string]item),
		nowFunc: time.Now,
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// NewMemoryWithClock creates a store without a sweeper, using the given
// clock. Test constructor.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{items: make(map[string]item), nowFunc: now}
}

// Close stops the sweep goroutine.
func (m *Memory) Close() {
	if m.done != nil {
		close(m.done)
	}
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := m.nowFunc()
			m.mu.Lock()
			for k, it := range m.items {
				if it.expired(now) {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if it.expired(m.nowFunc()) {
		delete(m.items, key)
		return "", false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = m.nowFunc().Add(ttl)
	}
	m.items[key] = item{value: value, expiresAt: exp}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// IncrBy adds delta to the integer at key. The expiry is set only when the
// key does not yet exist (or has lapsed), mirroring an atomic
// increment-then-conditionally-expire primitive: concurrent first requests
// cannot both skip the expiry because the whole operation runs under the
// store lock.
func (m *Memory) IncrBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	it, ok := m.items[key]
	if !ok || it.expired(now) {
		var exp time.Time
		if ttl > 0 {
			exp = now.Add(ttl)
		}
		m.items[key] = item{value: strconv.FormatInt(delta, 10), expiresAt: exp}
		return delta, nil
	}
	n, err := strconv.ParseInt(it.value, 10, 64)
	if err != nil {
		return 0, err
	}
	n += delta
	it.value = strconv.FormatInt(n, 10)
	m.items[key] = it
	return n, nil
}

// Scan matches keys against pattern ("*" and "?" wildcards) on a snapshot
// taken under the lock, then invokes fn with the lock released so callers
// cannot stall the store.
func (m *Memory) Scan(_ context.Context, pattern string, fn func(key string) error) error {
	now := m.nowFunc()
	m.mu.Lock()
	matched := make([]string, 0, 16)
	for k, it := range m.items {
		if it.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			matched = append(matched, k)
		}
	}
	m.mu.Unlock()

	for _, k := range matched {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}
