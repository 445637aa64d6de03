package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"github.com/yakaglitch/Temp/internal/models"
	"github.com/yakaglitch/Temp/internal/storage"
)

type memorySink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []int64
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Save(_ context.Context, rec models.MinuteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, rec.Epoch)
	return s.err
}

func (s *memorySink) epochs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.got...)
}

func minuteRecord(ts time.Time, temp float64) models.MinuteRecord {
	return models.MinuteRecord{
		Reading:   models.Reading{TemperatureC: temp, PressureHPa: 1000, HumidityRH: 50},
		Timestamp: ts,
		Epoch:     ts.Unix(),
	}
}

func TestFlushServiceOrderAndDrain(t *testing.T) {
	primary := &memorySink{name: "primary"}
	mirror := &memorySink{name: "mirror", err: errors.New("broker down")}
	f := NewFlushService(FlushServiceConfig{QueueSize: 4}, zaptest.NewLogger(t).Sugar(), primary, mirror)

	ctx := context.Background()
	go f.Start(ctx)

	base := time.Date(2024, 7, 9, 12, 0, 0, 0, time.UTC)
	var want []int64
	for i := 0; i < 20; i++ {
		rec := minuteRecord(base.Add(time.Duration(i)*time.Minute), 20)
		test.That(t, f.Submit(ctx, rec), test.ShouldBeNil)
		want = append(want, rec.Epoch)
	}
	f.Close()
	f.Wait()

	test.That(t, primary.epochs(), test.ShouldResemble, want)
	// A failing mirror is still offered every record.
	test.That(t, mirror.epochs(), test.ShouldResemble, want)
	test.That(t, f.Flushed(), test.ShouldEqual, int64(20))

	err := f.Submit(ctx, minuteRecord(base, 20))
	test.That(t, err, test.ShouldEqual, ErrFlushQueueClosed)
	f.Close()
}

func TestFlushServiceSubmitHonorsContext(t *testing.T) {
	f := NewFlushService(FlushServiceConfig{QueueSize: 1}, zaptest.NewLogger(t).Sugar())
	// Worker not started, so the second submit blocks on a full queue.
	test.That(t, f.Submit(context.Background(), minuteRecord(time.Unix(60, 0), 1)), test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.Submit(ctx, minuteRecord(time.Unix(120, 0), 1))
	test.That(t, err, test.ShouldEqual, context.DeadlineExceeded)
}

func TestFlushServiceSubmitAcceptsWithCancelledContext(t *testing.T) {
	sink := &memorySink{name: "csv"}
	f := NewFlushService(FlushServiceConfig{QueueSize: 4}, zaptest.NewLogger(t).Sugar(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base := time.Date(2024, 7, 9, 12, 0, 0, 0, time.UTC)
	// Both select cases would be ready; the queued send must win every time.
	for i := 0; i < 4; i++ {
		test.That(t, f.Submit(ctx, minuteRecord(base.Add(time.Duration(i)*time.Minute), 20)), test.ShouldBeNil)
	}
	// Queue full and ctx done: now the caller gets the ctx error.
	test.That(t, f.Submit(ctx, minuteRecord(base.Add(5*time.Minute), 20)), test.ShouldEqual, context.Canceled)

	go f.Start(ctx)
	f.Close()
	f.Wait()
	test.That(t, sink.epochs(), test.ShouldHaveLength, 4)
}

func TestFlushServiceQueuedRecordsSurviveCancel(t *testing.T) {
	sink := &memorySink{name: "csv"}
	f := NewFlushService(FlushServiceConfig{QueueSize: 8}, zaptest.NewLogger(t).Sugar(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	base := time.Date(2024, 7, 9, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		test.That(t, f.Submit(ctx, minuteRecord(base.Add(time.Duration(i)*time.Minute), 20)), test.ShouldBeNil)
	}
	cancel()

	go f.Start(ctx)
	f.Close()
	f.Wait()
	test.That(t, sink.epochs(), test.ShouldHaveLength, 5)
}

func TestFlushServiceStorageErrorThenRecovery(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	store, err := storage.NewStore(storage.StoreConfig{
		Targets:   storage.DefaultTargets(dataDir, "BU"),
		LivePath:  filepath.Join(dataDir, "live.json"),
		Precision: 3,
	}, zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)

	core, logs := observer.New(zapcore.ErrorLevel)
	f := NewFlushService(FlushServiceConfig{QueueSize: 4}, zap.New(core).Sugar(), store)
	base := time.Date(2024, 7, 9, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Flush synchronously through the worker's own path.
	f.flush(ctx, minuteRecord(base, 20))

	test.That(t, os.RemoveAll(dataDir), test.ShouldBeNil)
	test.That(t, os.WriteFile(dataDir, []byte("blocked"), 0o644), test.ShouldBeNil)
	f.flush(ctx, minuteRecord(base.Add(time.Minute), 21))
	test.That(t, logs.Len(), test.ShouldEqual, 1)

	entry := logs.All()[0]
	test.That(t, entry.ContextMap()["sink"], test.ShouldEqual, "csv")
	loggedErr, ok := entry.ContextMap()["error"].(string)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, loggedErr, test.ShouldContainSubstring, "storage append")

	test.That(t, os.Remove(dataDir), test.ShouldBeNil)
	f.flush(ctx, minuteRecord(base.Add(2*time.Minute), 22))
	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, f.Flushed(), test.ShouldEqual, int64(2))

	rows, err := storage.LoadFile(filepath.Join(dataDir, "2024_07.csv"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rows, test.ShouldHaveLength, 1)
	test.That(t, rows[0].TemperatureC, test.ShouldEqual, 22.0)
}
