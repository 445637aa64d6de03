package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/yakaglitch/Temp/internal/models"
)

// Sink persists a flushed minute record. The durable CSV store is a Sink;
// so are the optional MQTT and ClickHouse mirrors.
type Sink interface {
	Name() string
	Save(ctx context.Context, rec models.MinuteRecord) error
}

// ErrFlushQueueClosed is returned by Submit after shutdown has begun
var ErrFlushQueueClosed = errors.New("flush queue closed")

// FlushService writes minute records on a single worker goroutine so slow
// disk I/O never stalls the sampling cadence. Records are written in the
// order they were submitted.
type FlushService struct {
	sinks       []Sink
	logger      *zap.SugaredLogger
	sinkTimeout time.Duration

	// Input channel (written by acquisition service, read by worker)
	RecordChan chan models.MinuteRecord

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	flushed  atomic.Int64
	failures atomic.Int64
}

// FlushServiceConfig holds configuration for flush service
type FlushServiceConfig struct {
	QueueSize   int
	SinkTimeout time.Duration // per sink, per record
}

// DefaultFlushServiceConfig returns default configuration
func DefaultFlushServiceConfig() FlushServiceConfig {
	return FlushServiceConfig{
		QueueSize:   16,
		SinkTimeout: 10 * time.Second,
	}
}

// NewFlushService creates a flush service writing to sinks in order
func NewFlushService(config FlushServiceConfig, logger *zap.SugaredLogger, sinks ...Sink) *FlushService {
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = DefaultFlushServiceConfig().SinkTimeout
	}
	return &FlushService{
		sinks:       sinks,
		logger:      logger,
		sinkTimeout: config.SinkTimeout,
		RecordChan:  make(chan models.MinuteRecord, config.QueueSize),
		done:        make(chan struct{}),
	}
}

// Start drains the record channel until it is closed by Close. It does not
// stop on context cancellation so queued records are never dropped.
func (f *FlushService) Start(ctx context.Context) {
	defer close(f.done)
	f.logger.Info("FlushService: Starting...")

	for rec := range f.RecordChan {
		f.flush(context.WithoutCancel(ctx), rec)
	}

	f.logger.Infof("FlushService: Drained, %d records flushed, %d sink failures",
		f.flushed.Load(), f.failures.Load())
}

// Submit queues a record for flushing. It blocks while the queue is full,
// unless ctx is cancelled first. A cancelled ctx does not reject a record
// the queue has room for.
func (f *FlushService) Submit(ctx context.Context, rec models.MinuteRecord) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrFlushQueueClosed
	}

	// Room in the queue wins over a cancelled ctx, so a minute latched
	// during shutdown is still written.
	select {
	case f.RecordChan <- rec:
		return nil
	default:
	}

	select {
	case f.RecordChan <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting records; the worker finishes what is queued
func (f *FlushService) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.RecordChan)
	}
}

// Wait blocks until the worker has drained the queue and exited
func (f *FlushService) Wait() {
	<-f.done
}

// Flushed returns the number of records written by the first sink
func (f *FlushService) Flushed() int64 {
	return f.flushed.Load()
}

func (f *FlushService) flush(ctx context.Context, rec models.MinuteRecord) {
	for i, sink := range f.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, f.sinkTimeout)
		err := sink.Save(sinkCtx, rec)
		cancel()

		if err != nil {
			f.failures.Inc()
			f.logger.Errorw("FlushService: Sink failed, minute left as a gap",
				"sink", sink.Name(), "epoch", rec.Epoch, "error", err)
			continue
		}
		if i == 0 {
			f.flushed.Inc()
		}
		f.logger.Debugw("FlushService: Flushed minute", "sink", sink.Name(), "epoch", rec.Epoch)
	}
}
