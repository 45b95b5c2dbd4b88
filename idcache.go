package asmdb

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type (
	// IDCache holds the next ID of each table. Share one IDCache between
	// every Database of a process so that they never hand out the same ID.
	IDCache struct {
		mu      sync.Mutex
		entries map[string]*idEntry
		group   singleflight.Group
		now     func() time.Time
	}

	idEntry struct {
		value   int64
		expires time.Time // zero means never
	}
)

func NewIDCache() *IDCache {
	return &IDCache{
		entries: map[string]*idEntry{},
		now:     time.Now,
	}
}

// Increment adds one to the entry and returns the new value. It returns
// false if the entry is missing or expired.
func (c *IDCache) Increment(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.valid(key)
	if !ok {
		return 0, false
	}
	e.value++
	return e.value, true
}

// Put sets the entry for ttl, forever if ttl is not positive.
func (c *IDCache) Put(key string, value int64, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value, ttl)
}

func (c *IDCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries that have not expired.
func (c *IDCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if _, ok := c.valid(k); ok {
			n++
		}
	}
	return n
}

// Next returns the next value of the entry. A missing entry is seeded with
// the value returned by seed, which is also the value returned to the first
// caller. Concurrent callers of a missing key wait for a single seed call
// and take their values from the entry it made, so values are never
// repeated or skipped, even if the entry expires meanwhile.
func (c *IDCache) Next(key string, ttl time.Duration, seed func() (int64, error)) (int64, error) {
	if v, ok := c.Increment(key); ok {
		return v, nil
	}
	e, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		e, ok := c.valid(key)
		c.mu.Unlock()
		if ok {
			return e, nil
		}
		v, err := seed()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.valid(key); ok {
			return e, nil
		}
		return c.put(key, v-1, ttl), nil
	})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := e.(*idEntry)
	entry.value++
	return entry.value, nil
}

func (c *IDCache) valid(key string) (*idEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

func (c *IDCache) put(key string, value int64, ttl time.Duration) *idEntry {
	e := &idEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return e
}
