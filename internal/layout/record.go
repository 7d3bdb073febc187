package layout

import (
	"bytes"
	"encoding/binary"
	"strconv"
)

const (
	// NameSize is the size of the textual field of a record.
	NameSize = 255

	idOffset = NameSize + 1

	// SlotSize is the size of a record slot inside the layout.
	SlotSize = idOffset + 4
)

// Record is the fixed size entity exchanged through the ring buffer.
// It has no internal pointers, so it can be copied verbatim across the process boundary.
type Record struct {
	// Name is a NUL padded text.
	Name [NameSize]byte
	// ID is the identifier assigned by the producer.
	ID int32
}

// NewRecord returns a record with the given name and identifier.
// Names longer than [NameSize]-1 bytes are truncated, so that the text is always NUL terminated.
func NewRecord(name string, id int32) Record {
	rec := Record{ID: id}
	rec.SetName(name)
	return rec
}

// SetName replaces the textual field of the record.
func (r *Record) SetName(name string) {
	clear(r.Name[:])
	copy(r.Name[:NameSize-1], name)
}

// Text returns the textual field up to the first NUL byte.
func (r *Record) Text() string {
	if idx := bytes.IndexByte(r.Name[:], 0); idx >= 0 {
		return string(r.Name[:idx])
	}
	return string(r.Name[:])
}

func (r *Record) String() string {
	return "ID: " + strconv.FormatInt(int64(r.ID), 10) + ", Name: " + r.Text()
}

func (r *Record) encode(dst []byte) {
	copy(dst[:NameSize], r.Name[:])
	dst[NameSize] = 0
	binary.LittleEndian.PutUint32(dst[idOffset:], uint32(r.ID))
}

func (r *Record) decode(src []byte) {
	copy(r.Name[:], src[:NameSize])
	r.ID = int32(binary.LittleEndian.Uint32(src[idOffset:]))
}
