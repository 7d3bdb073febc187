// Package reader implements the consumer role: it attaches to the segment created
// by the writer and polls the ring buffer until the writer is gone.
package reader

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FerroO2000/shmring/internal"
	"github.com/FerroO2000/shmring/internal/bench"
	"github.com/FerroO2000/shmring/internal/config"
	"github.com/FerroO2000/shmring/internal/health"
	"github.com/FerroO2000/shmring/internal/layout"
	"github.com/FerroO2000/shmring/internal/pacing"
	"github.com/FerroO2000/shmring/internal/rb"
	"github.com/FerroO2000/shmring/internal/shm"
	"github.com/FerroO2000/shmring/internal/shutdown"
)

var (
	// ErrNotInitialized is returned when running a reader that has not been initialized.
	ErrNotInitialized = errors.New("reader: not initialized")
	// ErrWriterNotLive is returned by the readiness check when the liveness flag is cleared.
	ErrWriterNotLive = errors.New("reader: writer is not live")
)

/////////////
//  STATE  //
/////////////

// State is the lifecycle state of the reader.
type State uint32

const (
	// StateInit is the state before and during the attachment to the segment.
	StateInit State = iota
	// StateRunning is the state while records are polled.
	StateRunning
	// StateTerminated is the final state.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

//////////////
//  READER  //
//////////////

// Reader is the consumer role.
type Reader struct {
	tel *internal.Telemetry

	cfg *Config

	state atomic.Uint32

	segment *shm.Segment
	layout  *layout.Layout
	queue   rb.Queue

	ctrl   *shutdown.Controller
	pacer  *pacing.Pacer
	sink   bench.Sink
	health *health.Server

	seqTracker *sequenceTracker

	// Outcome of the last poll, written while holding the shutdown guard
	rec     layout.Record
	got     bool
	alive   bool
	latency time.Duration

	metrics *metrics
}

// New returns a new reader.
func New(cfg *Config) *Reader {
	return &Reader{
		tel: internal.NewTelemetry("role", "reader"),

		cfg: cfg,

		seqTracker: newSequenceTracker(),

		metrics: &metrics{},
	}
}

// State returns the current state of the reader.
func (r *Reader) State() State {
	return State(r.state.Load())
}

func (r *Reader) setState(s State) {
	r.state.Store(uint32(s))
	r.tel.LogDebug("state changed", "state", s.String())
}

// Init validates the configuration and maps the segment created by the writer.
// If the configuration asks to wait, it blocks until the segment exists
// and the writer has advertised its liveness.
func (r *Reader) Init(ctx context.Context) error {
	ctx, span := r.tel.NewTrace(ctx, "init reader")
	defer span.End()

	r.setState(StateInit)

	config.NewValidator(r.tel).Validate(r.cfg)

	span.SetAttributes(
		attribute.String("segment", r.cfg.Segment.Name),
		attribute.String("backend", r.cfg.Backend.String()),
		attribute.Int("capacity", r.cfg.Capacity),
	)

	size := layout.Size(r.cfg.Capacity)

	if r.cfg.Wait {
		r.tel.LogInfo("waiting for the segment", "path", r.cfg.Segment.Path())

		if err := shm.WaitForSegment(ctx, r.cfg.Segment, size); err != nil {
			return err
		}
	}

	seg, err := shm.OpenExisting(r.cfg.Segment)
	if err != nil {
		r.tel.LogError("failed to open segment", err)
		return err
	}

	mem, err := seg.Map(size)
	if err != nil {
		r.tel.LogError("failed to map segment", err)
		return errors.Join(err, seg.Release())
	}

	l, err := layout.New(mem, r.cfg.Capacity)
	if err != nil {
		return errors.Join(err, seg.Release())
	}

	queue, err := rb.New(l, r.cfg.Backend)
	if err != nil {
		return errors.Join(err, seg.Release())
	}

	sink, err := bench.NewSink(ctx, r.cfg.Bench)
	if err != nil {
		r.tel.LogError("failed to open latency sink", err)
		return errors.Join(err, seg.Release())
	}

	r.segment = seg
	r.layout = l
	r.queue = queue
	r.sink = sink

	r.ctrl = shutdown.NewController(seg)
	r.ctrl.AddCloser(sink)
	queue.SetYield(r.ctrl.Yield)

	r.pacer = pacing.NewPacer(r.cfg.MinDelay, r.cfg.MaxDelay)

	r.metrics.init(r.tel)

	if r.cfg.HealthAddr != "" {
		if err := r.startHealth(); err != nil {
			r.tel.LogError("failed to start health server", err)
			return errors.Join(err, r.ctrl.Teardown())
		}
	}

	if r.cfg.HandleSignals {
		r.ctrl.Install()
	}

	r.tel.LogInfo("segment mapped",
		"path", seg.Path(), "size", size, "capacity", r.cfg.Capacity, "backend", r.cfg.Backend.String())

	if r.cfg.Wait {
		if err := r.waitForLiveness(ctx); err != nil {
			return errors.Join(err, r.Close())
		}
	}

	return nil
}

func (r *Reader) startHealth() error {
	r.health = health.NewServer("shm_reader")

	r.health.AddReadinessCheck("writer-liveness", func() error {
		if !r.metrics.liveness.Load() {
			return ErrWriterNotLive
		}
		return nil
	})
	r.metrics.register(r.health, r.cfg.Capacity)

	if err := r.health.Start(r.cfg.HealthAddr); err != nil {
		return err
	}

	r.ctrl.AddCloser(r.health)

	return nil
}

func (r *Reader) waitForLiveness(ctx context.Context) error {
	for {
		var alive bool
		if err := r.ctrl.Do(func() { alive = r.layout.Liveness() }); err != nil {
			return err
		}

		if alive {
			r.metrics.liveness.Store(true)
			return nil
		}

		if err := r.pacer.Wait(ctx); err != nil {
			return err
		}
	}
}

// Run polls the ring buffer until the writer clears its liveness flag,
// the context is canceled or the process is signaled.
// The mapping is always released before returning, the segment is never removed.
func (r *Reader) Run(ctx context.Context) error {
	if r.ctrl == nil {
		return ErrNotInitialized
	}

	r.setState(StateRunning)
	r.tel.LogInfo("running")

	stop := context.AfterFunc(ctx, func() {
		_ = r.ctrl.Teardown()
	})
	defer stop()

	var runErr error
	for ctx.Err() == nil {
		if err := r.ctrl.Do(r.poll); err != nil {
			runErr = r.handleDoErr(err)
			break
		}

		if r.got {
			r.process()
		} else {
			r.metrics.pollMisses.Add(1)
			r.tel.LogDebug("no data available")
		}

		if !r.alive {
			r.tel.LogInfo("writer is not live anymore")

			if r.cfg.Drain {
				runErr = r.drain()
			}
			break
		}

		if err := r.pacer.Wait(ctx); err != nil {
			break
		}
	}

	return errors.Join(runErr, r.Close())
}

func (r *Reader) handleDoErr(err error) error {
	if errors.Is(err, shutdown.ErrTornDown) {
		return nil
	}

	r.tel.LogError("failed to get record", err)
	return err
}

// poll gets a record, measuring the latency, and checks the liveness flag.
// It runs while holding the shutdown guard.
func (r *Reader) poll() {
	start := time.Now()
	r.got = r.queue.Get(&r.rec)
	r.latency = time.Since(start)

	r.alive = r.layout.Liveness()

	r.metrics.size.Store(int64(r.queue.Size()))
	r.metrics.liveness.Store(r.alive)
}

// drain consumes the records left in the buffer.
func (r *Reader) drain() error {
	drained := 0

	for {
		if err := r.ctrl.Do(r.poll); err != nil {
			return r.handleDoErr(err)
		}

		if !r.got {
			break
		}

		r.process()
		drained++
	}

	r.tel.LogInfo("buffer drained", "records", drained)

	return nil
}

func (r *Reader) process() {
	r.metrics.readRecords.Add(1)

	r.tel.LogInfo("record read", "id", r.rec.ID, "name", r.rec.Text())

	status, skipped := r.seqTracker.track(r.rec.ID)
	switch status {
	case SequenceStatusGap:
		r.tel.LogWarn("records skipped", "id", r.rec.ID, "skipped", skipped)
	case SequenceStatusDuplicate:
		r.tel.LogWarn("record out of sequence", "id", r.rec.ID)
	}
	r.metrics.trackSequence(r.seqTracker)

	if err := r.sink.Record(time.Now(), r.latency); err != nil {
		// The sink is closed by a concurrent teardown
		if errors.Is(err, bench.ErrClosed) {
			return
		}

		r.metrics.sinkErrors.Add(1)
		r.tel.LogError("failed to record latency", err)
	}
}

// Close closes the latency sink and unmaps the segment.
// It is safe to call it more than once.
func (r *Reader) Close() error {
	if r.ctrl == nil {
		return nil
	}

	r.ctrl.Stop()

	err := r.ctrl.Teardown()
	if err != nil {
		r.tel.LogError("failed to release resources", err)
	}

	r.setState(StateTerminated)

	return err
}

// Controller returns the shutdown controller guarding the shared memory.
func (r *Reader) Controller() *shutdown.Controller {
	return r.ctrl
}
