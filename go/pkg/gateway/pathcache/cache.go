// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pathcache implements the shared path cache (component E): a
// capacity-bounded MapKey -> PathEntry table with one writer (the path
// service) and many lock-free readers (the fast path, potentially on
// multiple CPUs). It mirrors the concurrency shape of the kernel's BPF
// hash map the original prototype used for the same purpose, but as an
// in-process copy-on-write map: readers load an immutable snapshot via
// atomic.Pointer, so a lookup never observes a partially-written entry.
package pathcache

import (
	"sync"
	"sync/atomic"

	"github.com/scionproto/scion-ip-gateway/go/lib/slayers"
	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
)

// Capacity is the maximum number of entries the cache holds, matching
// the original prototype's BPF hash map sizing.
const Capacity = 4096

type snapshot = map[classify.MapKey]*slayers.PathEntry

// Cache is safe for concurrent lookups from any number of goroutines;
// concurrent upserts are serialized by an internal mutex (see Upsert).
type Cache struct {
	current atomic.Pointer[snapshot]

	// writer-only state; never touched by Lookup.
	writeMu sync.Mutex
	order   []classify.MapKey // insertion order, oldest first
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	empty := make(snapshot)
	c.current.Store(&empty)
	return c
}

// Lookup returns the entry for key and whether it was present. Safe for
// concurrent use with Upsert; never blocks.
func (c *Cache) Lookup(key classify.MapKey) (*slayers.PathEntry, bool) {
	m := *c.current.Load()
	e, ok := m[key]
	return e, ok
}

// Upsert inserts or replaces the entry for key. Concurrent Upsert calls
// are serialized by writeMu; in the gateway the single-threaded
// component G is the only writer. When the cache is at Capacity and key
// is new, the oldest-inserted key is evicted.
func (c *Cache) Upsert(key classify.MapKey, entry *slayers.PathEntry) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old := *c.current.Load()
	next := make(snapshot, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	_, existed := next[key]
	next[key] = entry
	if !existed {
		c.order = append(c.order, key)
		if len(next) > Capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(next, oldest)
		}
	}
	c.current.Store(&next)
}

// Len returns the current number of entries. Intended for metrics and
// tests, not for capacity decisions by callers.
func (c *Cache) Len() int {
	return len(*c.current.Load())
}
