package model

import (
	"sync"

	"github.com/Brownie44l1/animegan-api/internal/failure"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

var errCacheClosed = failure.Newf(failure.ModelLoad, "load session", "session cache is closed")

type runner interface {
	run(in *tensor.Input) (*tensor.Output, error)
	destroy()
}

// sessionCache loads at most one runner per model path. Concurrent first
// callers share a single load; a failed load is dropped so the next call
// tries again.
type sessionCache struct {
	mu      sync.Mutex
	closed  bool
	entries map[string]*cacheEntry
	load    func(path string) (runner, error)
}

type cacheEntry struct {
	once sync.Once
	r    runner
	err  error
}

func newSessionCache(load func(string) (runner, error)) *sessionCache {
	return &sessionCache{
		entries: make(map[string]*cacheEntry),
		load:    load,
	}
}

func (c *sessionCache) get(path string) (runner, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errCacheClosed
	}
	entry, ok := c.entries[path]
	if !ok {
		entry = &cacheEntry{}
		c.entries[path] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.r, entry.err = c.load(path)
	})

	if entry.err == errCacheClosed {
		return nil, entry.err
	}
	if entry.err != nil {
		c.mu.Lock()
		if c.entries[path] == entry {
			delete(c.entries, path)
		}
		c.mu.Unlock()
		return nil, entry.err
	}
	return entry.r, nil
}

func (c *sessionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// close destroys every loaded runner. A load still in flight is waited for
// and its runner destroyed; entries that never started loading are marked
// closed so a caller already holding them gets an error instead of a nil
// runner.
func (c *sessionCache) close() {
	c.mu.Lock()
	c.closed = true
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	for _, entry := range entries {
		entry.once.Do(func() {
			entry.err = errCacheClosed
		})
		if entry.r != nil {
			entry.r.destroy()
		}
	}
}
