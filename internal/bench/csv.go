package bench

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
)

const csvHeader = "Timestamp,Latency\n"

// CSVSink writes one row per sample to a file.
// Rows contain the unix time in milliseconds and the latency in microseconds.
// The file is not buffered, so every row is on disk as soon as it is recorded.
type CSVSink struct {
	mux  sync.Mutex
	file *os.File
}

// NewCSVSink creates (or truncates) the file at path and writes the header.
func NewCSVSink(path string) (*CSVSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	if _, err := file.WriteString(csvHeader); err != nil {
		_ = file.Close()
		return nil, err
	}

	return &CSVSink{file: file}, nil
}

// Record writes a row.
func (cs *CSVSink) Record(at time.Time, latency time.Duration) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = strconv.AppendInt(buf.B, at.UnixMilli(), 10)
	buf.B = append(buf.B, ',')
	buf.B = strconv.AppendFloat(buf.B, microseconds(latency), 'f', -1, 64)
	buf.B = append(buf.B, '\n')

	cs.mux.Lock()
	defer cs.mux.Unlock()

	if cs.file == nil {
		return ErrClosed
	}

	_, err := cs.file.Write(buf.B)
	return err
}

// Close closes the file. It is safe to call it more than once.
func (cs *CSVSink) Close() error {
	cs.mux.Lock()
	defer cs.mux.Unlock()

	if cs.file == nil {
		return nil
	}

	err := cs.file.Close()
	cs.file = nil

	return err
}

func microseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
