package rb

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/FerroO2000/shmring/internal/layout"
)

var _ Queue = (*RingBuffer)(nil)

// RingBuffer is the lock-free single producer/single consumer ring buffer.
// The producer is the only one storing the head, the consumer is the only one storing the tail.
// One slot is always left free to tell a full buffer from an empty one.
type RingBuffer struct {
	layout   *layout.Layout
	capacity uint32

	yield func()

	_ cpu.CacheLinePad

	// fullSpins is only touched by the producer
	fullSpins atomic.Uint64

	_ cpu.CacheLinePad
}

// NewRingBuffer returns a lock-free ring buffer over the layout.
func NewRingBuffer(l *layout.Layout) *RingBuffer {
	return &RingBuffer{
		layout:   l,
		capacity: uint32(l.Capacity()),

		yield: defaultYield,
	}
}

// Put appends the record. If the buffer is full, it keeps yielding
// until the consumer frees a slot. There is no timeout.
func (b *RingBuffer) Put(rec *layout.Record) {
	for b.IsFull() {
		b.fullSpins.Add(1)
		b.yield()
	}

	head := b.layout.Head().Load()

	// Plain write of the slot, then publish it by storing the new head
	b.layout.WriteSlot(head, rec)
	b.layout.Head().Store((head + 1) % b.capacity)
}

// Get copies the oldest record into rec, it returns false if the buffer is empty.
func (b *RingBuffer) Get(rec *layout.Record) bool {
	if b.IsEmpty() {
		return false
	}

	tail := b.layout.Tail().Load()

	b.layout.ReadSlot(tail, rec)
	b.layout.Tail().Store((tail + 1) % b.capacity)

	return true
}

// IsFull states whether the buffer is full.
func (b *RingBuffer) IsFull() bool {
	return isFull(b.layout.Head().Load(), b.layout.Tail().Load(), b.capacity)
}

// IsEmpty states whether the buffer is empty.
func (b *RingBuffer) IsEmpty() bool {
	return b.layout.Head().Load() == b.layout.Tail().Load()
}

// Size returns the number of queued records.
// Head and tail are loaded independently, so the result may be stale.
func (b *RingBuffer) Size() int {
	return int(size(b.layout.Head().Load(), b.layout.Tail().Load(), b.capacity))
}

// Capacity returns the number of slots.
func (b *RingBuffer) Capacity() int {
	return int(b.capacity)
}

// Reset moves both cursors to the first slot.
func (b *RingBuffer) Reset() {
	b.layout.Head().Store(0)
	b.layout.Tail().Store(0)
}

// Snapshot returns a copy of the queued records.
// It is meant for debugging: the records may be consumed while they are copied.
func (b *RingBuffer) Snapshot() []layout.Record {
	return snapshot(b.layout, b.layout.Head().Load(), b.layout.Tail().Load(), b.capacity)
}

// SetYield replaces the function called while the buffer is full.
func (b *RingBuffer) SetYield(yield func()) {
	if yield == nil {
		yield = defaultYield
	}
	b.yield = yield
}

// FullSpins returns the number of times Put found the buffer full.
func (b *RingBuffer) FullSpins() uint64 {
	return b.fullSpins.Load()
}
