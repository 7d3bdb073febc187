package writer

import (
	"time"

	"github.com/FerroO2000/shmring/internal/config"
	"github.com/FerroO2000/shmring/internal/layout"
	"github.com/FerroO2000/shmring/internal/rb"
	"github.com/FerroO2000/shmring/internal/shm"
)

// Default configuration values for the writer.
const (
	DefaultMessage  = "hello world"
	DefaultMinDelay = 20 * time.Millisecond
	DefaultMaxDelay = 40 * time.Millisecond
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of the writer role.
type Config struct {
	// Segment is the shared memory segment created by the writer.
	Segment *shm.Config

	// Backend is the ring buffer implementation. It must match the reader's one.
	//
	// Default: spsc
	Backend rb.BufferKind

	// Capacity is the number of slots of the ring buffer. It must match the reader's one.
	//
	// Default: 500
	Capacity int

	// Message is the text stored in every record.
	//
	// Default: "hello world"
	Message string

	// MinDelay and MaxDelay bound the random pause between two records.
	//
	// Default: 20ms, 40ms
	MinDelay time.Duration
	MaxDelay time.Duration

	// Trace states whether the whole content of the buffer is logged after every put.
	Trace bool

	// HealthAddr is the address of the health endpoint. Empty disables it.
	HealthAddr string

	// HandleSignals states whether SIGINT and SIGTERM terminate the process
	// after releasing the segment.
	//
	// Default: true
	HandleSignals bool
}

// DefaultConfig returns the default configuration of the writer.
func DefaultConfig() *Config {
	return &Config{
		Segment:       shm.DefaultConfig(),
		Backend:       rb.BufferKindSPSC,
		Capacity:      layout.Capacity,
		Message:       DefaultMessage,
		MinDelay:      DefaultMinDelay,
		MaxDelay:      DefaultMaxDelay,
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

	config.CheckNotEmpty(ac, "Message", &c.Message, DefaultMessage)
	config.CheckMaxLen(ac, "Message", &c.Message, layout.NameSize-1)

	config.CheckNotNegative(ac, "MinDelay", &c.MinDelay, DefaultMinDelay)
	config.CheckNotNegative(ac, "MaxDelay", &c.MaxDelay, DefaultMaxDelay)
	config.CheckNotGreaterThan(ac, "MinDelay", "MaxDelay", &c.MinDelay, c.MaxDelay)
}
