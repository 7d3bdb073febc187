// Package layout defines the binary structure shared by the writer and the reader
// processes and provides a bounds-checked view over the mapped memory.
//
// The layout is a strict binary contract (little-endian):
//
//	offset 0    liveness flag (32-bit word, the low byte is the flag)
//	offset 8    lock word, used only by the rwlock backend
//	offset 64   head cursor (uint32), own cache line
//	offset 128  tail cursor (uint32), own cache line
//	offset 192  slots, capacity x 260 bytes
//
// Each slot holds a 255 bytes NUL padded name, one padding byte and
// a 32-bit signed identifier at offset 256.
// The total size is rounded up to a multiple of the cache line size.
package layout

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is the cache line size assumed by the layout.
// It is fixed to keep the layout identical across architectures.
const CacheLineSize = 64

// Capacity is the number of slots of the shared ring buffer.
// One slot is always kept free, so at most Capacity-1 records can be queued.
const Capacity = 500

const (
	livenessOffset = 0
	lockOffset     = 8
	headOffset     = 1 * CacheLineSize
	tailOffset     = 2 * CacheLineSize
	slotsOffset    = 3 * CacheLineSize
)

// SegmentSize is the size in bytes of the layout with the default [Capacity].
var SegmentSize = Size(Capacity)

var (
	// ErrArenaTooSmall is returned when the memory cannot hold the layout.
	ErrArenaTooSmall = errors.New("layout: arena too small")
	// ErrArenaMisaligned is returned when the memory is not aligned for atomic access.
	ErrArenaMisaligned = errors.New("layout: arena is not 8 bytes aligned")
	// ErrInvalidCapacity is returned when the capacity cannot hold at least one record.
	ErrInvalidCapacity = errors.New("layout: capacity must be at least 2")
)

// Size returns the number of bytes needed by a layout with the given capacity.
func Size(capacity int) int {
	raw := slotsOffset + capacity*SlotSize
	return (raw + CacheLineSize - 1) &^ (CacheLineSize - 1)
}

// Layout is a view over the shared memory arena.
// All the accesses are performed through offsets into the arena,
// so the view stays valid in every process mapping the same region.
type Layout struct {
	mem      []byte
	capacity int
}

// New returns a layout view over mem with the given capacity.
// The memory is not modified.
func New(mem []byte, capacity int) (*Layout, error) {
	if capacity < 2 {
		return nil, ErrInvalidCapacity
	}

	if len(mem) < Size(capacity) {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrArenaTooSmall, len(mem), Size(capacity))
	}

	if uintptr(unsafe.Pointer(&mem[0]))%8 != 0 {
		return nil, ErrArenaMisaligned
	}

	return &Layout{
		mem:      mem[:Size(capacity)],
		capacity: capacity,
	}, nil
}

// NewArena allocates process-local memory suitable for a layout with the given capacity.
// It is used when the ring is not backed by a shared segment (e.g. tests).
func NewArena(capacity int) []byte {
	words := make([]uint64, Size(capacity)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
}

// Capacity returns the number of slots.
func (l *Layout) Capacity() int {
	return l.capacity
}

// Init clears the control fields: both cursors, the lock word and the liveness flag.
// It must be called by the owner before any other process attaches.
func (l *Layout) Init() {
	l.Head().Store(0)
	l.Tail().Store(0)
	l.LockWord().Store(0)
	l.word(livenessOffset).Store(0)
}

// Liveness reports whether the producer is still running.
func (l *Layout) Liveness() bool {
	return l.word(livenessOffset).Load() != 0
}

// SetLiveness publishes the producer's liveness.
func (l *Layout) SetLiveness(alive bool) {
	var val uint32
	if alive {
		val = 1
	}
	l.word(livenessOffset).Store(val)
}

// Head returns the cursor owned by the producer.
func (l *Layout) Head() *atomic.Uint32 {
	return l.word(headOffset)
}

// Tail returns the cursor owned by the consumer.
func (l *Layout) Tail() *atomic.Uint32 {
	return l.word(tailOffset)
}

// LockWord returns the word used by the rwlock backend.
func (l *Layout) LockWord() *atomic.Uint32 {
	return l.word(lockOffset)
}

// WriteSlot copies rec into the slot at index idx with plain memory writes.
// The caller is responsible for publishing the slot.
func (l *Layout) WriteSlot(idx uint32, rec *Record) {
	rec.encode(l.slot(idx))
}

// ReadSlot copies the slot at index idx into rec.
func (l *Layout) ReadSlot(idx uint32, rec *Record) {
	rec.decode(l.slot(idx))
}

func (l *Layout) slot(idx uint32) []byte {
	if int(idx) >= l.capacity {
		panic(fmt.Sprintf("layout: slot index %d out of range [0, %d)", idx, l.capacity))
	}

	off := slotsOffset + int(idx)*SlotSize
	return l.mem[off : off+SlotSize : off+SlotSize]
}

func (l *Layout) word(off int) *atomic.Uint32 {
	if off < 0 || off+4 > len(l.mem) || off%4 != 0 {
		panic(fmt.Sprintf("layout: invalid word offset %d", off))
	}

	return (*atomic.Uint32)(unsafe.Pointer(&l.mem[off]))
}
