package bench

import (
	"context"
	"sync"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
)

const questDBLatencyColumn = "latency_us"

// QuestDBSink sends the samples to QuestDB through the ILP over HTTP client.
// The sample time is used as the designated timestamp.
type QuestDBSink struct {
	ctx   context.Context
	table string

	mux    sync.Mutex
	sender qdb.LineSender
}

// NewQuestDBSink returns a sink connected to the configured QuestDB instance.
func NewQuestDBSink(ctx context.Context, cfg *Config) (*QuestDBSink, error) {
	sender, err := qdb.NewLineSender(ctx,
		qdb.WithAddress(cfg.QuestDBAddress),
		qdb.WithHttp(),
		qdb.WithAutoFlushRows(cfg.QuestDBAutoFlushRows),
		qdb.WithRetryTimeout(time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &QuestDBSink{
		ctx:   ctx,
		table: cfg.QuestDBTable,

		sender: sender,
	}, nil
}

// Record inserts a row.
func (qs *QuestDBSink) Record(at time.Time, latency time.Duration) error {
	qs.mux.Lock()
	defer qs.mux.Unlock()

	if qs.sender == nil {
		return ErrClosed
	}

	return qs.sender.Table(qs.table).
		Float64Column(questDBLatencyColumn, microseconds(latency)).
		At(qs.ctx, at)
}

// Close flushes the pending rows and closes the sender.
func (qs *QuestDBSink) Close() error {
	qs.mux.Lock()
	defer qs.mux.Unlock()

	if qs.sender == nil {
		return nil
	}

	ctx := qs.ctx
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	err := qs.sender.Close(ctx)
	qs.sender = nil

	return err
}
