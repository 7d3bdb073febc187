package bench

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerroO2000/shmring/internal/config"
)

func Test_CSVSink(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "latency.csv")

	// Existing content must be truncated
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0o644))

	cfg := DefaultConfig()
	cfg.Path = path
	assert.True(cfg.Enabled())

	sink, err := NewSink(t.Context(), cfg)
	require.NoError(t, err)
	assert.IsType(&CSVSink{}, sink)

	at := time.UnixMilli(1_700_000_000_123)
	assert.NoError(sink.Record(at, 1500*time.Nanosecond))
	assert.NoError(sink.Record(at.Add(time.Millisecond), 42*time.Microsecond))

	// Rows are visible before the sink is closed
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal([]string{
		"Timestamp,Latency",
		"1700000000123,1.5",
		"1700000000124,42",
	}, lines)

	assert.NoError(sink.Close())
	assert.NoError(sink.Close())
	assert.ErrorIs(sink.Record(at, time.Microsecond), ErrClosed)
}

func Test_CSVSinkInvalidPath(t *testing.T) {
	_, err := NewCSVSink(filepath.Join(t.TempDir(), "missing", "latency.csv"))
	assert.Error(t, err)
}

func Test_NopSink(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.False(cfg.Enabled())

	sink, err := NewSink(t.Context(), cfg)
	assert.NoError(err)
	assert.Equal(Nop{}, sink)

	assert.NoError(sink.Record(time.Now(), time.Second))
	assert.NoError(sink.Close())
}

func Test_TeeSink(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()

	first, err := NewCSVSink(filepath.Join(dir, "first.csv"))
	require.NoError(t, err)
	second, err := NewCSVSink(filepath.Join(dir, "second.csv"))
	require.NoError(t, err)

	tee := &teeSink{sinks: []Sink{first, second}}

	assert.NoError(tee.Record(time.UnixMilli(10), 2*time.Microsecond))
	assert.NoError(tee.Close())

	for _, name := range []string{"first.csv", "second.csv"} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		assert.NoError(err)
		assert.Equal("Timestamp,Latency\n10,2\n", string(content))
	}
}

func Test_ConfigValidate(t *testing.T) {
	assert := assert.New(t)

	cfg := &Config{}

	ac := config.NewAnomalyCollector()
	cfg.Validate(ac)

	assert.Equal(2, ac.Len())
	assert.Equal(DefaultConfig(), cfg)
}
