package reader

import (
	"sync/atomic"

	"github.com/FerroO2000/shmring/internal"
	"github.com/FerroO2000/shmring/internal/health"
)

// metrics holds the counters of the reader, along with the values
// cached from the shared memory after every poll.
type metrics struct {
	readRecords  atomic.Int64
	pollMisses   atomic.Int64
	sinkErrors   atomic.Int64
	seqGaps      atomic.Int64
	seqMissing   atomic.Int64
	seqDuplicate atomic.Int64

	size     atomic.Int64
	liveness atomic.Bool
}

func (m *metrics) init(tel *internal.Telemetry) {
	tel.NewCounter("read_records", func() int64 { return m.readRecords.Load() })
	tel.NewCounter("poll_misses", func() int64 { return m.pollMisses.Load() })
	tel.NewCounter("sink_errors", func() int64 { return m.sinkErrors.Load() })
	tel.NewCounter("sequence_gaps", func() int64 { return m.seqGaps.Load() })
	tel.NewCounter("sequence_missing", func() int64 { return m.seqMissing.Load() })
	tel.NewCounter("sequence_duplicates", func() int64 { return m.seqDuplicate.Load() })
	tel.NewGauge("size", func() int64 { return m.size.Load() })
}

func (m *metrics) register(srv *health.Server, capacity int) {
	srv.AddGauge("size", "Number of records queued in the ring buffer.", func() float64 {
		return float64(m.size.Load())
	})
	srv.AddGauge("capacity", "Number of slots of the ring buffer.", func() float64 {
		return float64(capacity)
	})
	srv.AddCounter("read_records_total", "Number of records read from the ring buffer.", func() float64 {
		return float64(m.readRecords.Load())
	})
	srv.AddCounter("poll_misses_total", "Number of polls on an empty ring buffer.", func() float64 {
		return float64(m.pollMisses.Load())
	})
	srv.AddCounter("sequence_missing_total", "Number of record identifiers never read.", func() float64 {
		return float64(m.seqMissing.Load())
	})
}

func (m *metrics) trackSequence(st *sequenceTracker) {
	m.seqGaps.Store(st.gaps)
	m.seqMissing.Store(st.missing)
	m.seqDuplicate.Store(st.duplicates)
}
