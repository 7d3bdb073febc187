package reader

import (
	"time"

	"github.com/FerroO2000/shmring/internal/bench"
	"github.com/FerroO2000/shmring/internal/config"
	"github.com/FerroO2000/shmring/internal/layout"
	"github.com/FerroO2000/shmring/internal/rb"
	"github.com/FerroO2000/shmring/internal/shm"
)

// Default configuration values for the reader.
const (
	DefaultMinDelay = 50 * time.Millisecond
	DefaultMaxDelay = 120 * time.Millisecond
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of the reader role.
type Config struct {
	// Segment is the shared memory segment created by the writer.
	Segment *shm.Config

	// Backend is the ring buffer implementation. It must match the writer's one.
	//
	// Default: spsc
	Backend rb.BufferKind

	// Capacity is the number of slots of the ring buffer. It must match the writer's one.
	//
	// Default: 500
	Capacity int

	// MinDelay and MaxDelay bound the random pause between two polls.
	//
	// Default: 50ms, 120ms
	MinDelay time.Duration
	MaxDelay time.Duration

	// Wait states whether the reader waits for the writer to create the segment
	// and to advertise its liveness, instead of failing immediately.
	Wait bool

	// Drain states whether the queued records are consumed before exiting
	// once the writer is gone.
	Drain bool

	// Bench is the configuration of the latency sinks.
	Bench *bench.Config

	// HealthAddr is the address of the health endpoint. Empty disables it.
	HealthAddr string

	// HandleSignals states whether SIGINT and SIGTERM terminate the process
	// after releasing the mapping.
	//
	// Default: true
	HandleSignals bool
}

// DefaultConfig returns the default configuration of the reader.
func DefaultConfig() *Config {
	return &Config{
		Segment:       shm.DefaultConfig(),
		Backend:       rb.BufferKindSPSC,
		Capacity:      layout.Capacity,
		MinDelay:      DefaultMinDelay,
		MaxDelay:      DefaultMaxDelay,
		Bench:         bench.DefaultConfig(),
		HandleSignals: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate(ac *config.AnomalyCollector) {
	if c.Segment == nil {
		c.Segment = shm.DefaultConfig()
	}
	c.Segment.Validate(ac.Nested("Segment"))

	config.CheckOneOf(ac, "Backend", &c.Backend, rb.BufferKindSPSC, rb.BufferKindSPSC, rb.BufferKindRWLock)
	config.CheckNotLessThan(ac, "Capacity", &c.Capacity, 2, layout.Capacity)

	config.CheckNotNegative(ac, "MinDelay", &c.MinDelay, DefaultMinDelay)
	config.CheckNotNegative(ac, "MaxDelay", &c.MaxDelay, DefaultMaxDelay)
	config.CheckNotGreaterThan(ac, "MinDelay", "MaxDelay", &c.MinDelay, c.MaxDelay)

	if c.Bench == nil {
		c.Bench = bench.DefaultConfig()
	}
	c.Bench.Validate(ac.Nested("Bench"))
}
