package mem_cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 1024

// MemCache is a capacity-bounded in-memory cache with LRU eviction.
// Entries are never expired actively: a stale entry stays resident
// until it is overwritten or pushed out by LRU pressure.
type MemCache struct {
	closed uint32
	lru    *lru.Cache[string, *elem]
}

type elem struct {
	v        []byte
	storedAt time.Time
}

func NewMemCache(size int) *MemCache {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[string, *elem](size)
	return &MemCache{lru: c}
}

func (c *MemCache) isClosed() bool {
	return atomic.LoadUint32(&c.closed) != 0
}

func (c *MemCache) Close() error {
	atomic.CompareAndSwapUint32(&c.closed, 0, 1)
	return nil
}

func (c *MemCache) Get(key string) ([]byte, time.Time, bool) {
	if c.isClosed() {
		return nil, time.Time{}, false
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, time.Time{}, false
	}
	return e.v, e.storedAt, true
}

func (c *MemCache) Store(key string, v []byte, storedTime time.Time) {
	if c.isClosed() {
		return
	}

	// Copy so the cache owns the bytes.
	buf := make([]byte, len(v))
	copy(buf, v)

	c.lru.Add(key, &elem{v: buf, storedAt: storedTime})
}

func (c *MemCache) Clear() {
	c.lru.Purge()
}

func (c *MemCache) Len() int {
	return c.lru.Len()
}
