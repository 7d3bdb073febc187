package reader

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerroO2000/shmring/internal/layout"
	"github.com/FerroO2000/shmring/internal/rb"
	"github.com/FerroO2000/shmring/internal/shm"
	"github.com/FerroO2000/shmring/internal/shutdown"
	"github.com/FerroO2000/shmring/internal/writer"
)

const testCapacity = 32

func newTestConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Segment.Dir = t.TempDir()
	cfg.Segment.Name = "reader-test"
	cfg.Capacity = testCapacity
	cfg.MinDelay = 0
	cfg.MaxDelay = time.Millisecond
	cfg.HandleSignals = false
	return cfg
}

// fakeWriter creates the segment like a writer that stopped producing
// without clearing its liveness flag.
func fakeWriter(t *testing.T, cfg *Config) *layout.Layout {
	size := layout.Size(cfg.Capacity)

	seg, err := shm.Create(cfg.Segment, size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg.Release() })

	mem, err := seg.Map(size)
	require.NoError(t, err)

	l, err := layout.New(mem, cfg.Capacity)
	require.NoError(t, err)

	l.Init()
	l.SetLiveness(true)

	return l
}

func waitFor(t *testing.T, cond func() bool) {
	require.Eventually(t, cond, 5*time.Second, time.Millisecond)
}

func Test_MissingSegment(t *testing.T) {
	assert := assert.New(t)

	r := New(newTestConfig(t))
	err := r.Init(t.Context())

	var acqErr *shm.AcquisitionError
	if assert.ErrorAs(err, &acqErr) {
		assert.Equal(shm.OpOpen, acqErr.Op)
	}
	assert.ErrorIs(err, fs.ErrNotExist)

	assert.ErrorIs(r.Run(t.Context()), ErrNotInitialized)
}

func Test_CrashedWriter(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)
	l := fakeWriter(t, cfg)

	q := rb.NewRingBuffer(l)
	for id := range 3 {
		rec := layout.NewRecord("Element", int32(id))
		q.Put(&rec)
	}

	r := New(cfg)
	require.NoError(t, r.Init(t.Context()))

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context()) }()

	// The reader keeps polling an empty buffer without hanging
	waitFor(t, func() bool { return r.metrics.pollMisses.Load() > 10 })
	assert.Equal(int64(3), r.metrics.readRecords.Load())
	assert.Equal(StateRunning, r.State())

	select {
	case <-done:
		assert.FailNow("reader exited while the writer is live")
	default:
	}

	// The liveness is observed within one poll
	l.SetLiveness(false)

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		assert.FailNow("reader did not observe the liveness flag")
	}

	assert.Equal(StateTerminated, r.State())

	// The reader never removes the segment
	assert.True(shm.Exists(cfg.Segment))
}

func Test_ExitWithoutDrain(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)
	l := fakeWriter(t, cfg)

	q := rb.NewRingBuffer(l)
	for id := range 5 {
		rec := layout.NewRecord("Element", int32(id))
		q.Put(&rec)
	}
	l.SetLiveness(false)

	r := New(cfg)
	require.NoError(t, r.Init(t.Context()))
	assert.NoError(r.Run(t.Context()))

	// One poll, then the cleared flag stops the reader
	assert.Equal(int64(1), r.metrics.readRecords.Load())
	assert.Equal(4, q.Size())
}

func Test_Drain(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)
	cfg.Drain = true
	l := fakeWriter(t, cfg)

	q := rb.NewRingBuffer(l)
	for id := range 5 {
		rec := layout.NewRecord("Element", int32(id))
		q.Put(&rec)
	}
	l.SetLiveness(false)

	r := New(cfg)
	require.NoError(t, r.Init(t.Context()))
	assert.NoError(r.Run(t.Context()))

	assert.Equal(int64(5), r.metrics.readRecords.Load())
	assert.True(q.IsEmpty())
	assert.Zero(r.metrics.seqMissing.Load())
}

func Test_WriterReader(t *testing.T) {
	for _, kind := range []rb.BufferKind{rb.BufferKindSPSC, rb.BufferKindRWLock} {
		t.Run(kind.String(), func(t *testing.T) {
			testWriterReader(t, kind)
		})
	}
}

func testWriterReader(t *testing.T, kind rb.BufferKind) {
	assert := assert.New(t)

	readerCfg := newTestConfig(t)
	readerCfg.Backend = kind
	readerCfg.Wait = true
	readerCfg.Drain = true
	readerCfg.Bench.Path = filepath.Join(t.TempDir(), "latency.csv")

	writerCfg := writer.DefaultConfig()
	writerCfg.Segment.Dir = readerCfg.Segment.Dir
	writerCfg.Segment.Name = readerCfg.Segment.Name
	writerCfg.Backend = kind
	writerCfg.Capacity = testCapacity
	writerCfg.MinDelay = 0
	writerCfg.MaxDelay = time.Millisecond
	writerCfg.HandleSignals = false

	// The reader is started first and waits for the writer
	r := New(readerCfg)
	initDone := make(chan error, 1)
	go func() { initDone <- r.Init(t.Context()) }()

	w := writer.New(writerCfg)
	require.NoError(t, w.Init(t.Context()))

	require.NoError(t, <-initDone)

	writerCtx, stopWriter := context.WithCancel(t.Context())
	writerDone := make(chan error, 1)
	go func() { writerDone <- w.Run(writerCtx) }()

	readerDone := make(chan error, 1)
	go func() { readerDone <- r.Run(t.Context()) }()

	waitFor(t, func() bool { return r.metrics.readRecords.Load() >= 50 })

	stopWriter()
	assert.NoError(<-writerDone)

	select {
	case err := <-readerDone:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		assert.FailNow("reader did not stop after the writer")
	}

	assert.Zero(r.metrics.seqMissing.Load())
	assert.Zero(r.metrics.seqDuplicate.Load())
	assert.False(shm.Exists(readerCfg.Segment))

	content, err := os.ReadFile(readerCfg.Bench.Path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal("Timestamp,Latency", lines[0])
	assert.Equal(r.metrics.readRecords.Load(), int64(len(lines)-1))
}

func Test_SignalShutdown(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)
	fakeWriter(t, cfg)

	r := New(cfg)
	require.NoError(t, r.Init(t.Context()))

	exitCodes := make(chan int, 1)
	r.Controller().SetExit(func(code int) { exitCodes <- code })

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context()) }()

	waitFor(t, func() bool { return r.metrics.pollMisses.Load() > 0 })

	r.Controller().HandleSignal(syscall.SIGINT)
	assert.Equal(shutdown.ExitCodeSignal, <-exitCodes)

	assert.NoError(<-done)
	assert.True(shm.Exists(cfg.Segment))
}

func Test_WaitCanceled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Wait = true

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	r := New(cfg)
	assert.ErrorIs(t, r.Init(ctx), context.DeadlineExceeded)
}
