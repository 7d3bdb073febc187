package shm

import (
	"errors"
	"fmt"
)

var (
	// ErrSegmentTooSmall is returned when the object is smaller than the requested mapping.
	ErrSegmentTooSmall = errors.New("segment too small")
	// ErrNoSpace is returned when the backing file system cannot hold the segment.
	ErrNoSpace = errors.New("not enough space for the segment")
	// ErrReleased is returned when using a released segment.
	ErrReleased = errors.New("segment released")
)

// Operations that can fail while acquiring a segment.
const (
	OpCreate = "create"
	OpSize   = "size"
	OpOpen   = "open"
	OpMap    = "map"
)

// AcquisitionError is returned when a segment cannot be created, sized, opened or mapped.
// It is fatal for both roles.
type AcquisitionError struct {
	Op   string
	Name string
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("shm: %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

func newAcquisitionError(op, name string, err error) *AcquisitionError {
	return &AcquisitionError{Op: op, Name: name, Err: err}
}
