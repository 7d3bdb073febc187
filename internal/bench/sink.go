// Package bench records the latency of the reader's get operations.
package bench

import (
	"context"
	"errors"
	"time"

	"github.com/FerroO2000/shmring/internal"
	"github.com/FerroO2000/shmring/internal/config"
)

// ErrClosed is returned when recording on a closed sink.
var ErrClosed = errors.New("bench: sink closed")

// Sink receives the latency samples.
type Sink interface {
	// Record stores the latency of an operation completed at the given time.
	Record(at time.Time, latency time.Duration) error
	// Close flushes and releases the sink.
	Close() error
}

//////////////
//  CONFIG  //
//////////////

var _ config.Config = (*Config)(nil)

// Config is the configuration of the latency sinks.
// Every sink with a non empty destination is enabled.
type Config struct {
	// Path is the path of the CSV file.
	Path string

	// QuestDBAddress is the address of the QuestDB HTTP endpoint (host:port).
	QuestDBAddress string

	// QuestDBTable is the table where the samples are inserted.
	//
	// Default: shm_latency
	QuestDBTable string

	// QuestDBAutoFlushRows is the number of rows buffered before a flush.
	//
	// Default: 1000
	QuestDBAutoFlushRows int
}

// DefaultConfig returns the default configuration, with every sink disabled.
func DefaultConfig() *Config {
	return &Config{
		QuestDBTable:         "shm_latency",
		QuestDBAutoFlushRows: 1000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate(ac *config.AnomalyCollector) {
	config.CheckNotEmpty(ac, "QuestDBTable", &c.QuestDBTable, "shm_latency")
	config.CheckPositive(ac, "QuestDBAutoFlushRows", &c.QuestDBAutoFlushRows, 1000)
}

// Enabled states whether at least one sink is configured.
func (c *Config) Enabled() bool {
	return c.Path != "" || c.QuestDBAddress != ""
}

// NewSink returns the sink described by the configuration.
// If no sink is configured, a no-op sink is returned.
func NewSink(ctx context.Context, cfg *Config) (Sink, error) {
	tel := internal.NewTelemetry("bench", "sink")

	sinks := []Sink{}

	if cfg.Path != "" {
		csvSink, err := NewCSVSink(cfg.Path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csvSink)

		tel.LogInfo("recording latency to file", "path", cfg.Path)
	}

	if cfg.QuestDBAddress != "" {
		qdbSink, err := NewQuestDBSink(ctx, cfg)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, qdbSink)

		tel.LogInfo("recording latency to QuestDB", "address", cfg.QuestDBAddress, "table", cfg.QuestDBTable)
	}

	switch len(sinks) {
	case 0:
		return Nop{}, nil
	case 1:
		return sinks[0], nil
	default:
		return &teeSink{sinks: sinks}, nil
	}
}

func closeAll(sinks []Sink) error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every sample.
type Nop struct{}

// Record does nothing.
func (Nop) Record(time.Time, time.Duration) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// teeSink forwards every sample to all of its sinks.
type teeSink struct {
	sinks []Sink
}

func (ts *teeSink) Record(at time.Time, latency time.Duration) error {
	var errs []error
	for _, sink := range ts.sinks {
		if err := sink.Record(at, latency); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ts *teeSink) Close() error {
	return closeAll(ts.sinks)
}
