package benchmark

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
)

// flushTimeout bounds each write attempt so a stalled store cannot back the
// queue up indefinitely.
const flushTimeout = 10 * time.Second

// Sink receives benchmark record batches. Implemented by the store layer.
type Sink interface {
	SaveBenchmarkRecords(ctx context.Context, records []model.BenchmarkRecord) error
}

// Recorder persists benchmark batches off the response path. Enqueueing
// never blocks: a full queue drops the batch with a log line. Each batch
// gets exactly one flush attempt; failures are logged and swallowed.
type Recorder struct {
	sink  Sink
	queue chan []model.BenchmarkRecord

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder creates a recorder with a bounded queue.
func NewRecorder(sink Sink, cfg config.BenchmarkConfig) *Recorder {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	return &Recorder{
		sink:  sink,
		queue: make(chan []model.BenchmarkRecord, size),
		done:  make(chan struct{}),
	}
}

// Start launches the flush worker. Safe to call once; subsequent calls are
// no-ops.
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Record enqueues a batch without blocking. Empty batches are ignored.
func (r *Recorder) Record(records []model.BenchmarkRecord) {
	if len(records) == 0 {
		return
	}
	select {
	case r.queue <- records:
	default:
		zap.L().Warn("benchmark: queue full, dropping batch",
			zap.Int("records", len(records)))
	}
}

// Close stops accepting batches, drains the queue, and waits for the worker
// to finish. A recorder that was never started gets its worker here, so the
// queued batches still flush and Close always returns.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	r.Start()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for batch := range r.queue {
		r.flush(batch)
	}
}

// flush makes exactly one save attempt; a failure is logged, never retried.
func (r *Recorder) flush(batch []model.BenchmarkRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := r.sink.SaveBenchmarkRecords(ctx, batch); err != nil {
		zap.L().Warn("benchmark: flush failed",
			zap.Int("records", len(batch)), zap.Error(err))
		return
	}
	zap.L().Debug("benchmark: batch flushed", zap.Int("records", len(batch)))
}
