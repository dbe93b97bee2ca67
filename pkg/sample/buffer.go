package sample

import (
	"sync"
	"sync/atomic"
)

// Buffer is a bounded FIFO of samples with a single writer and any number
// of concurrent readers.
//
// The writer appends into a ring under a mutex. Readers get immutable
// snapshots published through an atomic pointer, so a reader never holds
// the writer's lock while it renders. A snapshot is rebuilt at most once
// per buffer mutation.
type Buffer struct {
	mu       sync.Mutex
	ring     []float64 // len(ring) == capacity
	head     int       // index of the oldest sample
	n        int       // number of stored samples
	version  atomic.Uint64
	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	version uint64
	values  []float64
}

// NewBuffer creates a Buffer holding at most capacity samples.
// Capacity below 1 is raised to 1.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{ring: make([]float64, max(capacity, 1))}
}

// Append adds v as the newest sample, evicting the oldest one if the buffer
// is full.
func (b *Buffer) Append(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.n < len(b.ring) {
		b.ring[(b.head+b.n)%len(b.ring)] = v
		b.n++
	} else {
		b.ring[b.head] = v
		b.head = (b.head + 1) % len(b.ring)
	}
	b.version.Add(1)
}

// Snapshot returns the samples ordered oldest to newest.
// The returned slice is shared between callers and must not be modified.
func (b *Buffer) Snapshot() []float64 {
	if s := b.snapshot.Load(); s != nil && s.version == b.version.Load() {
		return s.values
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Another reader may have rebuilt it while we waited for the lock.
	if s := b.snapshot.Load(); s != nil && s.version == b.version.Load() {
		return s.values
	}

	s := &snapshot{
		version: b.version.Load(),
		values:  b.orderedLocked(),
	}
	b.snapshot.Store(s)
	return s.values
}

// SetCapacity changes the maximum number of samples. Shrinking evicts the
// oldest samples immediately; growing keeps the current contents.
func (b *Buffer) SetCapacity(capacity int) {
	capacity = max(capacity, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if capacity == len(b.ring) {
		return
	}

	values := b.orderedLocked()
	if len(values) > capacity {
		values = values[len(values)-capacity:]
	}

	b.ring = make([]float64, capacity)
	b.head = 0
	b.n = copy(b.ring, values)
	b.version.Add(1)
}

// Clear removes all samples.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.n = 0
	b.version.Add(1)
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// orderedLocked copies the ring into a new slice, oldest first.
func (b *Buffer) orderedLocked() []float64 {
	out := make([]float64, b.n)
	first := min(b.n, len(b.ring)-b.head)
	copy(out, b.ring[b.head:b.head+first])
	copy(out[first:], b.ring[:b.n-first])
	return out
}
