// Package shutdown coordinates the teardown of a role, both on a normal exit
// and when the process is interrupted by a signal.
package shutdown

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/FerroO2000/shmring/internal"
)

// ErrTornDown is returned when an operation is attempted after the teardown.
var ErrTornDown = errors.New("shutdown: resources already released")

// ExitCodeSignal is the exit code used when the process is stopped by a signal.
const ExitCodeSignal = 1

// Releaser is a resource that must be released exactly once.
type Releaser interface {
	Release() error
}

// LivenessPublisher publishes whether the producer is running.
type LivenessPublisher interface {
	SetLiveness(alive bool)
}

// tornDownPanic is raised by Yield to unwind an operation
// that was waiting while the resources were released.
type tornDownPanic struct{}

// Controller owns the resources that have to be released on exit.
//
// Every access to the shared memory must be performed through [Controller.Do],
// which holds the guard lock. The teardown takes the same lock, so the memory
// is never unmapped under an in-flight access.
type Controller struct {
	tel *internal.Telemetry

	guard sync.Mutex

	segment  Releaser
	liveness LivenessPublisher
	closers  []io.Closer

	once        sync.Once
	tornDown    atomic.Bool
	teardownErr error

	exit func(code int)

	signalCh chan os.Signal
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewController returns a controller releasing the given segment.
func NewController(segment Releaser) *Controller {
	return &Controller{
		tel: internal.NewTelemetry("shutdown", "controller"),

		segment: segment,

		exit: os.Exit,

		stopCh: make(chan struct{}),
	}
}

// ClearLivenessOnTeardown makes the teardown clear the liveness flag before
// anything is released. Only the producer should set it.
func (c *Controller) ClearLivenessOnTeardown(lp LivenessPublisher) {
	c.liveness = lp
}

// AddCloser registers a resource closed during the teardown,
// after the liveness flag is cleared and before the segment is released.
func (c *Controller) AddCloser(closer io.Closer) {
	c.guard.Lock()
	defer c.guard.Unlock()

	c.closers = append(c.closers, closer)
}

// SetExit replaces the function called to terminate the process after a signal.
func (c *Controller) SetExit(exit func(code int)) {
	c.exit = exit
}

// Install starts listening for SIGINT and SIGTERM.
// On signal, the teardown is run and the process exits with [ExitCodeSignal].
func (c *Controller) Install() {
	c.signalCh = make(chan os.Signal, 1)
	signal.Notify(c.signalCh, syscall.SIGINT, syscall.SIGTERM)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		select {
		case sig := <-c.signalCh:
			c.HandleSignal(sig)
		case <-c.stopCh:
		}
	}()
}

// Stop stops listening for signals.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.signalCh != nil {
			signal.Stop(c.signalCh)
		}
		close(c.stopCh)
	})

	c.wg.Wait()
}

// HandleSignal runs the forced teardown and terminates the process.
// It waits for the in-flight memory operation, if any.
func (c *Controller) HandleSignal(sig os.Signal) {
	c.tel.LogWarn("signal received, shutting down", "signal", sig.String())

	if err := c.Teardown(); err != nil {
		c.tel.LogError("failed to release resources", err)
	}

	c.exit(ExitCodeSignal)
}

// Do runs fn while holding the guard lock.
// It returns [ErrTornDown] if the resources have been released, before or while fn was running.
// Errors raised as panics by fn (e.g. a misused shared lock) are returned.
func (c *Controller) Do(fn func()) (err error) {
	c.guard.Lock()

	if c.tornDown.Load() {
		c.guard.Unlock()
		return ErrTornDown
	}

	defer func() {
		r := recover()
		if r == nil {
			c.guard.Unlock()
			return
		}

		// Yield has already released the guard
		if _, ok := r.(tornDownPanic); ok {
			err = ErrTornDown
			return
		}

		c.guard.Unlock()

		if _, ok := r.(runtime.Error); ok {
			panic(r)
		}

		if panicErr, ok := r.(error); ok {
			err = panicErr
			return
		}

		panic(r)
	}()

	fn()

	return nil
}

// Yield must be called by the operations run through [Controller.Do] while they wait.
// It lets a teardown happen, and if it does, the operation is abandoned.
func (c *Controller) Yield() {
	c.guard.Unlock()
	runtime.Gosched()
	c.guard.Lock()

	if c.tornDown.Load() {
		c.guard.Unlock()
		panic(tornDownPanic{})
	}
}

// Teardown clears the liveness flag (producer only), closes the registered resources
// and releases the segment. Only the first call has effect, the others return
// the same error.
func (c *Controller) Teardown() error {
	c.once.Do(func() {
		c.guard.Lock()
		defer c.guard.Unlock()

		c.teardownErr = c.teardown()
	})

	return c.teardownErr
}

// TornDown states whether the teardown has happened.
func (c *Controller) TornDown() bool {
	return c.tornDown.Load()
}

func (c *Controller) teardown() error {
	c.tornDown.Store(true)

	if c.liveness != nil {
		c.liveness.SetLiveness(false)
	}

	var errs []error

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.segment != nil {
		if err := c.segment.Release(); err != nil {
			errs = append(errs, err)
		}
	}

	c.tel.LogInfo("resources released")

	return errors.Join(errs...)
}
