package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Size(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(130240, SegmentSize)
	assert.Equal(0, Size(4)%CacheLineSize)
	assert.Equal(1280, Size(4))
	assert.Equal(260, SlotSize)
}

func Test_New(t *testing.T) {
	assert := assert.New(t)

	_, err := New(NewArena(4), 1)
	assert.ErrorIs(err, ErrInvalidCapacity)

	_, err = New(NewArena(4), 8)
	assert.ErrorIs(err, ErrArenaTooSmall)

	arena := NewArena(4)
	_, err = New(arena[1:], 2)
	assert.ErrorIs(err, ErrArenaMisaligned)

	l, err := New(arena, 4)
	assert.NoError(err)
	assert.Equal(4, l.Capacity())
}

func Test_ControlFields(t *testing.T) {
	assert := assert.New(t)

	arena := NewArena(4)
	l, err := New(arena, 4)
	require.NoError(t, err)

	l.Head().Store(3)
	l.Tail().Store(1)
	l.SetLiveness(true)

	assert.True(l.Liveness())
	assert.Equal(byte(1), arena[livenessOffset])
	assert.Equal(byte(3), arena[headOffset])
	assert.Equal(byte(1), arena[tailOffset])

	l.Init()
	assert.False(l.Liveness())
	assert.Equal(uint32(0), l.Head().Load())
	assert.Equal(uint32(0), l.Tail().Load())
	assert.Equal(uint32(0), l.LockWord().Load())
}

func Test_Slots(t *testing.T) {
	assert := assert.New(t)

	arena := NewArena(4)
	l, err := New(arena, 4)
	require.NoError(t, err)

	rec := NewRecord("Element 7", 7)
	l.WriteSlot(2, &rec)

	off := slotsOffset + 2*SlotSize
	assert.Equal("Element 7", string(arena[off:off+9]))
	assert.Equal(byte(0), arena[off+9])
	assert.Equal([]byte{7, 0, 0, 0}, arena[off+idOffset:off+idOffset+4])

	neg := NewRecord("negative", -2)
	l.WriteSlot(3, &neg)
	off = slotsOffset + 3*SlotSize
	assert.Equal([]byte{0xfe, 0xff, 0xff, 0xff}, arena[off+idOffset:off+idOffset+4])

	var got Record
	l.ReadSlot(2, &got)
	assert.Equal(rec, got)
	assert.Equal("ID: 7, Name: Element 7", got.String())

	l.ReadSlot(3, &got)
	assert.Equal(int32(-2), got.ID)
	assert.Equal("negative", got.Text())

	assert.Panics(func() { l.ReadSlot(4, &got) })
}

func Test_RecordTruncation(t *testing.T) {
	assert := assert.New(t)

	long := strings.Repeat("x", 400)
	rec := NewRecord(long, 1)

	assert.Len(rec.Text(), NameSize-1)
	assert.Equal(byte(0), rec.Name[NameSize-1])

	rec.SetName("short")
	assert.Equal("short", rec.Text())
}
