package mem_cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func Test_memCache(t *testing.T) {
	c := NewMemCache(1024)
	now := time.Now()
	for i := 0; i < 128; i++ {
		key := strconv.Itoa(i)
		c.Store(key, []byte{byte(i)}, now)
		v, st, ok := c.Get(key)
		if !ok || v[0] != byte(i) || !st.Equal(now) {
			t.Fatal("cache kv mismatched")
		}
	}

	// Empty values are real entries, not misses.
	c.Store("empty", nil, now)
	v, _, ok := c.Get("empty")
	if !ok || len(v) != 0 {
		t.Fatal("empty value was not stored")
	}

	for i := 0; i < 1024*4; i++ {
		c.Store(strconv.Itoa(i), []byte{}, now)
	}
	if c.Len() > 1024 {
		t.Fatal("cache overflow")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatal("clear left entries behind")
	}
}

func Test_memCache_race(t *testing.T) {
	c := NewMemCache(1024)
	defer c.Close()

	wg := sync.WaitGroup{}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 256; i++ {
				key := strconv.Itoa(i)
				c.Store(key, []byte{}, time.Now())
				_, _, _ = c.Get(key)
			}
		}()
	}
	wg.Wait()
}
