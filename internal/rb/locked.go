package rb

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/FerroO2000/shmring/internal/layout"
)

var (
	// ErrNotLocked is returned when releasing a lock that is not held.
	ErrNotLocked = errors.New("lock is not held")
	// ErrTooManyReaders is returned when the shared lock cannot accept another reader.
	ErrTooManyReaders = errors.New("too many readers")
)

// LockingError is raised by the rwlock backend when the shared lock is misused.
// It is delivered as a panic value, so the hot path API stays free of errors;
// callers are expected to recover it and terminate.
type LockingError struct {
	Op  string
	Err error
}

func (e *LockingError) Error() string {
	return fmt.Sprintf("ring buffer: %s: %v", e.Op, e.Err)
}

func (e *LockingError) Unwrap() error {
	return e.Err
}

const (
	writerBit  uint32 = 1 << 31
	readerMask uint32 = writerBit - 1
)

// rwLock is a reader/writer spin lock stored in a shared word.
// The highest bit marks the exclusive owner, the other bits count the shared owners.
type rwLock struct {
	word  *atomic.Uint32
	yield func()
}

func (l *rwLock) lock() {
	for !l.word.CompareAndSwap(0, writerBit) {
		l.yield()
	}
}

func (l *rwLock) unlock() {
	if !l.word.CompareAndSwap(writerBit, 0) {
		panic(&LockingError{Op: "unlock", Err: ErrNotLocked})
	}
}

func (l *rwLock) rlock() {
	for {
		val := l.word.Load()

		if val&writerBit != 0 {
			l.yield()
			continue
		}

		if val&readerMask == readerMask {
			panic(&LockingError{Op: "rlock", Err: ErrTooManyReaders})
		}

		if l.word.CompareAndSwap(val, val+1) {
			return
		}
	}
}

func (l *rwLock) runlock() {
	for {
		val := l.word.Load()

		if val&writerBit != 0 || val&readerMask == 0 {
			panic(&LockingError{Op: "runlock", Err: ErrNotLocked})
		}

		if l.word.CompareAndSwap(val, val-1) {
			return
		}
	}
}

var _ Queue = (*Locked)(nil)

// Locked is the ring buffer variant where every cursor access is guarded
// by the reader/writer lock stored in the layout.
// Mutations take the lock exclusively, inspections take it shared.
type Locked struct {
	layout   *layout.Layout
	capacity uint32

	lock *rwLock

	_ cpu.CacheLinePad

	fullSpins atomic.Uint64

	_ cpu.CacheLinePad
}

// NewLocked returns a lock guarded ring buffer over the layout.
func NewLocked(l *layout.Layout) *Locked {
	return &Locked{
		layout:   l,
		capacity: uint32(l.Capacity()),

		lock: &rwLock{
			word:  l.LockWord(),
			yield: defaultYield,
		},
	}
}

// Put appends the record, waiting while the buffer is full.
// It panics with a [*LockingError] if the shared lock is misused.
func (b *Locked) Put(rec *layout.Record) {
	for {
		b.lock.lock()

		head := b.layout.Head().Load()
		if !isFull(head, b.layout.Tail().Load(), b.capacity) {
			b.layout.WriteSlot(head, rec)
			b.layout.Head().Store((head + 1) % b.capacity)

			b.lock.unlock()
			return
		}

		b.lock.unlock()

		b.fullSpins.Add(1)
		b.lock.yield()
	}
}

// Get copies the oldest record into rec, it returns false if the buffer is empty.
func (b *Locked) Get(rec *layout.Record) bool {
	b.lock.lock()
	defer b.lock.unlock()

	tail := b.layout.Tail().Load()
	if b.layout.Head().Load() == tail {
		return false
	}

	b.layout.ReadSlot(tail, rec)
	b.layout.Tail().Store((tail + 1) % b.capacity)

	return true
}

// IsFull states whether the buffer is full.
func (b *Locked) IsFull() bool {
	b.lock.rlock()
	defer b.lock.runlock()

	return isFull(b.layout.Head().Load(), b.layout.Tail().Load(), b.capacity)
}

// IsEmpty states whether the buffer is empty.
func (b *Locked) IsEmpty() bool {
	b.lock.rlock()
	defer b.lock.runlock()

	return b.layout.Head().Load() == b.layout.Tail().Load()
}

// Size returns the number of queued records.
func (b *Locked) Size() int {
	b.lock.rlock()
	defer b.lock.runlock()

	return int(size(b.layout.Head().Load(), b.layout.Tail().Load(), b.capacity))
}

// Capacity returns the number of slots.
func (b *Locked) Capacity() int {
	return int(b.capacity)
}

// Reset moves both cursors to the first slot.
func (b *Locked) Reset() {
	b.lock.lock()
	defer b.lock.unlock()

	b.layout.Head().Store(0)
	b.layout.Tail().Store(0)
}

// Snapshot returns a consistent copy of the queued records.
func (b *Locked) Snapshot() []layout.Record {
	b.lock.rlock()
	defer b.lock.runlock()

	return snapshot(b.layout, b.layout.Head().Load(), b.layout.Tail().Load(), b.capacity)
}

// SetYield replaces the function called while waiting for the lock or for a free slot.
func (b *Locked) SetYield(yield func()) {
	if yield == nil {
		yield = defaultYield
	}
	b.lock.yield = yield
}

// FullSpins returns the number of times Put found the buffer full.
func (b *Locked) FullSpins() uint64 {
	return b.fullSpins.Load()
}
