// Package writer implements the producer role: it creates the shared segment,
// publishes its liveness and keeps putting records into the ring buffer.
package writer

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/FerroO2000/shmring/internal"
	"github.com/FerroO2000/shmring/internal/config"
	"github.com/FerroO2000/shmring/internal/health"
	"github.com/FerroO2000/shmring/internal/layout"
	"github.com/FerroO2000/shmring/internal/pacing"
	"github.com/FerroO2000/shmring/internal/rb"
	"github.com/FerroO2000/shmring/internal/shm"
	"github.com/FerroO2000/shmring/internal/shutdown"
)

// ErrNotInitialized is returned when running a writer that has not been initialized.
var ErrNotInitialized = errors.New("writer: not initialized")

/////////////
//  STATE  //
/////////////

// State is the lifecycle state of the writer.
type State uint32

const (
	// StateInit is the state before and during the acquisition of the segment.
	StateInit State = iota
	// StateRunning is the state while records are produced.
	StateRunning
	// StateShuttingDown is the state while the resources are released.
	StateShuttingDown
	// StateTerminated is the final state.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

//////////////
//  WRITER  //
//////////////

// Writer is the producer role.
type Writer struct {
	tel *internal.Telemetry

	cfg *Config

	state atomic.Uint32

	segment *shm.Segment
	layout  *layout.Layout
	queue   rb.Queue

	ctrl   *shutdown.Controller
	pacer  *pacing.Pacer
	health *health.Server

	nextID int32
	rec    layout.Record

	metrics *metrics
}

// New returns a new writer.
func New(cfg *Config) *Writer {
	return &Writer{
		tel: internal.NewTelemetry("role", "writer"),

		cfg: cfg,

		metrics: &metrics{},
	}
}

// State returns the current state of the writer.
func (w *Writer) State() State {
	return State(w.state.Load())
}

func (w *Writer) setState(s State) {
	w.state.Store(uint32(s))
	w.tel.LogDebug("state changed", "state", s.String())
}

// Init validates the configuration, creates and maps the segment,
// initializes the layout and advertises the liveness.
func (w *Writer) Init(ctx context.Context) error {
	_, span := w.tel.NewTrace(ctx, "init writer")
	defer span.End()

	w.setState(StateInit)

	config.NewValidator(w.tel).Validate(w.cfg)

	span.SetAttributes(
		attribute.String("segment", w.cfg.Segment.Name),
		attribute.String("backend", w.cfg.Backend.String()),
		attribute.Int("capacity", w.cfg.Capacity),
	)

	size := layout.Size(w.cfg.Capacity)

	seg, err := shm.Create(w.cfg.Segment, size)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			w.tel.LogError("segment already exists, remove it with shmctl if it is stale", err,
				"path", w.cfg.Segment.Path())
		} else {
			w.tel.LogError("failed to create segment", err)
		}
		return err
	}

	mem, err := seg.Map(size)
	if err != nil {
		w.tel.LogError("failed to map segment", err)
		return errors.Join(err, seg.Release())
	}

	l, err := layout.New(mem, w.cfg.Capacity)
	if err != nil {
		return errors.Join(err, seg.Release())
	}
	l.Init()

	queue, err := rb.New(l, w.cfg.Backend)
	if err != nil {
		return errors.Join(err, seg.Release())
	}

	w.segment = seg
	w.layout = l
	w.queue = queue

	w.ctrl = shutdown.NewController(seg)
	w.ctrl.ClearLivenessOnTeardown(l)
	queue.SetYield(w.ctrl.Yield)

	w.pacer = pacing.NewPacer(w.cfg.MinDelay, w.cfg.MaxDelay)

	w.metrics.init(w.tel, queue.FullSpins)
	w.metrics.mapped.Store(true)

	if w.cfg.HealthAddr != "" {
		if err := w.startHealth(); err != nil {
			w.tel.LogError("failed to start health server", err)
			return errors.Join(err, w.ctrl.Teardown())
		}
	}

	l.SetLiveness(true)

	if w.cfg.HandleSignals {
		w.ctrl.Install()
	}

	w.tel.LogInfo("segment created",
		"path", seg.Path(), "size", size, "capacity", w.cfg.Capacity, "backend", w.cfg.Backend.String())

	return nil
}

func (w *Writer) startHealth() error {
	w.health = health.NewServer("shm_writer")

	w.health.AddReadinessCheck("segment-mapped", func() error {
		if !w.metrics.mapped.Load() {
			return shutdown.ErrTornDown
		}
		return nil
	})
	w.metrics.register(w.health, w.cfg.Capacity, w.queue.FullSpins)

	if err := w.health.Start(w.cfg.HealthAddr); err != nil {
		return err
	}

	w.ctrl.AddCloser(w.health)

	return nil
}

// Run produces records until the context is canceled or the process is signaled.
// The teardown is always performed before returning.
func (w *Writer) Run(ctx context.Context) error {
	if w.ctrl == nil {
		return ErrNotInitialized
	}

	w.setState(StateRunning)
	w.tel.LogInfo("running")

	// A canceled context must also interrupt a put waiting on a full buffer
	stop := context.AfterFunc(ctx, func() {
		w.state.CompareAndSwap(uint32(StateRunning), uint32(StateShuttingDown))
		_ = w.ctrl.Teardown()
	})
	defer stop()

	var runErr error
	for ctx.Err() == nil {
		if err := w.ctrl.Do(w.produce); err != nil {
			if !errors.Is(err, shutdown.ErrTornDown) {
				w.tel.LogError("failed to put record", err)
				runErr = err
			}
			break
		}

		if err := w.pacer.Wait(ctx); err != nil {
			break
		}
	}

	return errors.Join(runErr, w.Close())
}

// produce puts the next record. It runs while holding the shutdown guard.
func (w *Writer) produce() {
	w.rec.SetName(w.cfg.Message)
	w.rec.ID = w.nextID

	w.queue.Put(&w.rec)

	// Overflow wraps around
	w.nextID++
	w.metrics.putRecords.Add(1)

	// The flag may have been cleared from outside the process
	if !w.layout.Liveness() {
		w.layout.SetLiveness(true)
		w.metrics.livenessRestores.Add(1)
	}

	size := w.queue.Size()
	w.metrics.size.Store(int64(size))

	w.tel.LogDebug("record put", "id", w.rec.ID, "size", size)

	if w.cfg.Trace {
		w.traceContent()
	}
}

func (w *Writer) traceContent() {
	records := w.queue.Snapshot()

	sb := strings.Builder{}
	for idx, rec := range records {
		if idx > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(rec.String())
	}

	w.tel.LogInfo("buffer content", "size", len(records), "records", sb.String())
}

// Close clears the liveness flag and releases the segment.
// It is safe to call it more than once.
func (w *Writer) Close() error {
	if w.ctrl == nil {
		return nil
	}

	if w.State() != StateTerminated {
		w.setState(StateShuttingDown)
	}

	w.ctrl.Stop()

	w.metrics.mapped.Store(false)
	err := w.ctrl.Teardown()
	if err != nil {
		w.tel.LogError("failed to release resources", err)
	}

	w.setState(StateTerminated)

	return err
}

// Queue returns the ring buffer. It is meant for tests and tools running in the same process.
func (w *Writer) Queue() rb.Queue {
	return w.queue
}

// Controller returns the shutdown controller guarding the shared memory.
func (w *Writer) Controller() *shutdown.Controller {
	return w.ctrl
}
