package reader

// SequenceStatus is the outcome of tracking a record identifier.
type SequenceStatus uint8

const (
	// SequenceStatusFirst is returned for the first tracked identifier.
	SequenceStatusFirst SequenceStatus = iota
	// SequenceStatusInOrder is returned when the identifier is the expected one.
	SequenceStatusInOrder
	// SequenceStatusGap is returned when some identifiers have been skipped.
	SequenceStatusGap
	// SequenceStatusDuplicate is returned when the identifier is behind the expected one,
	// e.g. a record read twice or a restarted writer.
	SequenceStatusDuplicate
)

func (ss SequenceStatus) String() string {
	switch ss {
	case SequenceStatusFirst:
		return "first"
	case SequenceStatusInOrder:
		return "in-order"
	case SequenceStatusGap:
		return "gap"
	case SequenceStatusDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// sequenceTracker follows the identifiers assigned by the writer.
// Identifiers wrap around on overflow, so the distance between two of them
// is computed with 32-bit wrapping arithmetic.
type sequenceTracker struct {
	started  bool
	expected int32

	gaps       int64
	missing    int64
	duplicates int64
}

func newSequenceTracker() *sequenceTracker {
	return &sequenceTracker{}
}

// track records the identifier and returns how it relates to the previous ones.
// The second value is the number of skipped identifiers for a gap.
func (st *sequenceTracker) track(id int32) (SequenceStatus, int64) {
	if !st.started {
		st.started = true
		st.expected = id + 1
		return SequenceStatusFirst, 0
	}

	distance := id - st.expected

	switch {
	case distance == 0:
		st.expected = id + 1
		return SequenceStatusInOrder, 0

	case distance > 0:
		st.expected = id + 1
		st.gaps++
		st.missing += int64(distance)
		return SequenceStatusGap, int64(distance)

	default:
		// Follow the new sequence, a restarted writer starts again from zero
		st.expected = id + 1
		st.duplicates++
		return SequenceStatusDuplicate, 0
	}
}
