package writer

import (
	"sync/atomic"

	"github.com/FerroO2000/shmring/internal"
	"github.com/FerroO2000/shmring/internal/health"
)

// metrics holds the counters of the writer.
// The ring size is cached after every put, so that the exporters
// never read the shared memory.
type metrics struct {
	putRecords       atomic.Int64
	livenessRestores atomic.Int64
	size             atomic.Int64
	mapped           atomic.Bool
}

func (m *metrics) init(tel *internal.Telemetry, fullSpins func() uint64) {
	tel.NewCounter("put_records", func() int64 { return m.putRecords.Load() })
	tel.NewCounter("liveness_restores", func() int64 { return m.livenessRestores.Load() })
	tel.NewCounter("full_spins", func() int64 { return int64(fullSpins()) })
	tel.NewGauge("size", func() int64 { return m.size.Load() })
}

func (m *metrics) register(srv *health.Server, capacity int, fullSpins func() uint64) {
	srv.AddGauge("size", "Number of records queued in the ring buffer.", func() float64 {
		return float64(m.size.Load())
	})
	srv.AddGauge("capacity", "Number of slots of the ring buffer.", func() float64 {
		return float64(capacity)
	})
	srv.AddCounter("put_records_total", "Number of records put into the ring buffer.", func() float64 {
		return float64(m.putRecords.Load())
	})
	srv.AddCounter("full_spins_total", "Number of waits on a full ring buffer.", func() float64 {
		return float64(fullSpins())
	})
}
