// Package cache provides a generic in-memory LRU cache with TTL, used to
// memoize dashboard aggregate responses.
package cache

import "time"

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry. Called when a write invalidates all cached
	// aggregates at once.
	Purge()
	Size() int
}

// Cleaner is implemented by caches whose expired entries the Manager sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the periodic cleanup goroutine for a set of caches.
type Manager struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup sweeps expired entries from every registered cache at the
// given interval until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for _, cache := range m.caches {
					cache.CleanExpired()
				}
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}
