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

// Package missring implements the miss ring buffer (component F): a
// lossy, single-producer/single-consumer channel carrying MapKeys from
// the fast path to the path service. It mirrors the semantics of a BPF
// ring buffer consumed via ring_buffer__poll in the original prototype's
// PathService: the producer never blocks, and a full buffer drops the
// oldest record to make room for the newest.
package missring

import (
	"sync"
	"time"

	"github.com/scionproto/scion-ip-gateway/go/pkg/gateway/classify"
)

// Capacity is the number of MapKey records the ring holds, matching the
// original prototype's "1024 * sizeof(MapKey)" byte budget expressed in
// records.
const Capacity = 1024

// Ring's Publish and Drain both take an internal mutex, so any number of
// goroutines may publish concurrently with each other and with a Drain
// caller.
type Ring struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []classify.MapKey
	head int // next slot to read
	size int // number of valid records
}

// New returns an empty ring buffer.
func New() *Ring {
	r := &Ring{buf: make([]classify.MapKey, Capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Publish records key. It never blocks: if the ring is full, the oldest
// record is dropped to make room (at-least-zero delivery, spec §4.F).
func (r *Ring) Publish(key classify.MapKey) {
	r.mu.Lock()
	tail := (r.head + r.size) % len(r.buf)
	if r.size == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.size++
	}
	r.buf[tail] = key
	r.mu.Unlock()
	r.cond.Signal()
}

// Drain calls handler once per queued record, oldest first, draining
// whatever is currently buffered. If the ring is empty it waits up to
// timeout for at least one record to arrive before returning with zero
// calls to handler.
func (r *Ring) Drain(handler func(classify.MapKey), timeout time.Duration) {
	r.mu.Lock()
	if r.size == 0 {
		timedOut := false
		timer := time.AfterFunc(timeout, func() {
			r.mu.Lock()
			timedOut = true
			r.cond.Broadcast()
			r.mu.Unlock()
		})
		for r.size == 0 && !timedOut {
			r.cond.Wait()
		}
		timer.Stop()
		if r.size == 0 {
			r.mu.Unlock()
			return
		}
	}

	keys := make([]classify.MapKey, r.size)
	for i := 0; i < r.size; i++ {
		keys[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.head = (r.head + r.size) % len(r.buf)
	r.size = 0
	r.mu.Unlock()

	for _, k := range keys {
		handler(k)
	}
}

// Len reports the number of currently queued records. Intended for
// metrics and tests.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
