package shm

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerroO2000/shmring/internal/config"
)

const testSize = 4096

func newTestConfig(t *testing.T) *Config {
	return &Config{
		Name: "test-segment",
		Dir:  t.TempDir(),
	}
}

func Test_ConfigValidate(t *testing.T) {
	assert := assert.New(t)

	suite := []struct {
		in        Config
		wantName  string
		wantDir   string
		anomalies int
	}{
		{Config{Name: "osimhen", Dir: "/dev/shm"}, "osimhen", "/dev/shm", 0},
		{Config{Name: "/osimhen", Dir: "/dev/shm"}, "osimhen", "/dev/shm", 0},
		{Config{Name: "", Dir: ""}, DefaultName, DefaultDir, 2},
		{Config{Name: "a/b", Dir: "/tmp"}, DefaultName, "/tmp", 1},
	}

	for _, tCase := range suite {
		cfg := tCase.in
		ac := config.NewAnomalyCollector()
		cfg.Validate(ac)

		assert.Equal(tCase.wantName, cfg.Name)
		assert.Equal(tCase.wantDir, cfg.Dir)
		assert.Equal(tCase.anomalies, ac.Len())
	}

	assert.Equal("/dev/shm/osimhen", DefaultConfig().Path())
}

func Test_Segment(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)

	owner, err := Create(cfg, testSize)
	require.NoError(t, err)
	assert.True(owner.Owner())
	assert.True(Exists(cfg))

	size, err := Stat(cfg)
	assert.NoError(err)
	assert.Equal(int64(testSize), size)

	ownerMem, err := owner.Map(testSize)
	require.NoError(t, err)
	assert.Len(ownerMem, testSize)

	again, err := owner.Map(testSize)
	assert.NoError(err)
	assert.Equal(&ownerMem[0], &again[0])

	// A second creation with the same name must fail
	_, err = Create(cfg, testSize)
	var acqErr *AcquisitionError
	if assert.ErrorAs(err, &acqErr) {
		assert.Equal(OpCreate, acqErr.Op)
		assert.Equal(cfg.Name, acqErr.Name)
	}
	assert.ErrorIs(err, fs.ErrExist)

	attached, err := OpenExisting(cfg)
	require.NoError(t, err)
	assert.False(attached.Owner())

	attachedMem, err := attached.Map(testSize)
	require.NoError(t, err)

	// Both mappings share the same memory
	ownerMem[10] = 42
	assert.Equal(byte(42), attachedMem[10])

	_, err = attached.Map(2 * testSize)
	assert.ErrorIs(err, ErrSegmentTooSmall)

	// The attached side never unlinks
	assert.NoError(attached.Release())
	assert.True(attached.Released())
	assert.True(Exists(cfg))

	assert.NoError(owner.Release())
	assert.False(Exists(cfg))

	// Idempotent release
	assert.NoError(owner.Release())
	assert.NoError(attached.Release())

	_, err = owner.Map(testSize)
	assert.ErrorIs(err, ErrReleased)
}

func Test_OpenMissing(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)

	_, err := OpenExisting(cfg)

	var acqErr *AcquisitionError
	if assert.ErrorAs(err, &acqErr) {
		assert.Equal(OpOpen, acqErr.Op)
	}
	assert.ErrorIs(err, fs.ErrNotExist)
}

func Test_Remove(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)

	seg, err := Create(cfg, testSize)
	require.NoError(t, err)

	assert.NoError(Remove(cfg))
	assert.False(Exists(cfg))
	assert.Error(Remove(cfg))

	// The name is free again
	other, err := Create(cfg, testSize)
	assert.NoError(err)

	assert.NoError(seg.Release())
	assert.True(Exists(cfg))
	assert.NoError(other.Release())
}

func Test_WaitForSegment(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)

	go func() {
		time.Sleep(50 * time.Millisecond)

		f, err := os.Create(filepath.Join(cfg.Dir, cfg.Name))
		if err != nil {
			return
		}
		defer f.Close()

		time.Sleep(20 * time.Millisecond)
		_ = f.Truncate(testSize)
	}()

	assert.NoError(WaitForSegment(t.Context(), cfg, testSize))

	size, err := Stat(cfg)
	assert.NoError(err)
	assert.Equal(int64(testSize), size)
}

func Test_WaitForSegmentCanceled(t *testing.T) {
	assert := assert.New(t)

	cfg := newTestConfig(t)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(WaitForSegment(ctx, cfg, testSize), context.DeadlineExceeded)
}
