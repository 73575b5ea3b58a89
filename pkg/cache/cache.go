package cache

import (
	"io"
	"time"
)

// Backend is the shared store behind the resolver and record caches.
//
// A Backend holds opaque values with the time they were stored at.
// Staleness is the reader's concern: Get returns stale entries with
// ok == true, and a reader that finds one treats it as a miss without
// deleting it. The entry stays resident until it is overwritten by the
// next successful fetch or pushed out by capacity pressure.
type Backend interface {
	Get(key string) (v []byte, storedTime time.Time, ok bool)

	// Store overwrites any existing entry for key. v may be empty; an
	// empty stored value is distinct from a missing key.
	Store(key string, v []byte, storedTime time.Time)

	// Clear drops every entry.
	Clear()

	Len() int

	io.Closer
}
