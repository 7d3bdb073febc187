// Package rb provides the ring buffers that move records between
// the writer and the reader through the shared layout.
package rb

import (
	"errors"
	"runtime"
	"strings"

	"github.com/FerroO2000/shmring/internal/layout"
)

// ErrUnknownBufferKind is returned when a buffer kind cannot be parsed.
var ErrUnknownBufferKind = errors.New("ring buffer: unknown buffer kind")

// BufferKind is the type of the buffer implementation.
// Both processes must agree on it, like on the capacity.
type BufferKind uint8

const (
	// BufferKindSPSC is the lock-free single producer/single consumer implementation.
	BufferKindSPSC BufferKind = iota
	// BufferKindRWLock is the implementation guarded by a process-shared reader/writer lock.
	BufferKindRWLock
)

func (bk BufferKind) String() string {
	switch bk {
	case BufferKindSPSC:
		return "spsc"
	case BufferKindRWLock:
		return "rwlock"
	default:
		return "unknown"
	}
}

// ParseBufferKind returns the buffer kind with the given name.
func ParseBufferKind(s string) (BufferKind, error) {
	switch strings.ToLower(s) {
	case "spsc":
		return BufferKindSPSC, nil
	case "rwlock":
		return BufferKindRWLock, nil
	default:
		return 0, ErrUnknownBufferKind
	}
}

// Queue is the contract shared by the buffer implementations.
type Queue interface {
	// Put appends a record, waiting while the buffer is full.
	Put(rec *layout.Record)
	// Get copies the oldest record into rec.
	// It returns false without waiting if the buffer is empty.
	Get(rec *layout.Record) bool

	IsFull() bool
	IsEmpty() bool
	// Size returns the number of queued records, in [0, Capacity()-1].
	Size() int
	// Capacity returns the number of slots.
	Capacity() int

	// Reset moves both cursors to the first slot.
	// It must be called only when no other party is using the buffer.
	Reset()
	// Snapshot returns a copy of the queued records in FIFO order.
	Snapshot() []layout.Record

	// SetYield replaces the function called while waiting.
	SetYield(yield func())
	// FullSpins returns the number of times Put had to wait.
	FullSpins() uint64
}

// New returns the buffer of the given kind over the layout.
func New(l *layout.Layout, kind BufferKind) (Queue, error) {
	switch kind {
	case BufferKindSPSC:
		return NewRingBuffer(l), nil
	case BufferKindRWLock:
		return NewLocked(l), nil
	default:
		return nil, ErrUnknownBufferKind
	}
}

func defaultYield() {
	runtime.Gosched()
}

func size(head, tail, capacity uint32) uint32 {
	return (capacity + head - tail) % capacity
}

func isFull(head, tail, capacity uint32) bool {
	return (head+1)%capacity == tail
}

func snapshot(l *layout.Layout, head, tail, capacity uint32) []layout.Record {
	if head >= capacity || tail >= capacity {
		return nil
	}

	records := make([]layout.Record, 0, size(head, tail, capacity))
	for idx := tail; idx != head; idx = (idx + 1) % capacity {
		var rec layout.Record
		l.ReadSlot(idx, &rec)
		records = append(records, rec)
	}
	return records
}
