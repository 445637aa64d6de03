package aggregator

import (
	"time"

	"github.com/yakaglitch/Temp/internal/models"
)

// MinuteAggregator bridges the sampling clock to the persistence clock.
// It emits at most one record per interval bucket, and only from a real sample.
type MinuteAggregator struct {
	interval    int64 // seconds per bucket
	lastFlushed int64
	hasFlushed  bool
}

// NewMinuteAggregator creates an aggregator with the given bucket width.
// Widths under one second fall back to one minute.
func NewMinuteAggregator(interval time.Duration) *MinuteAggregator {
	secs := int64(interval / time.Second)
	if secs < 1 {
		secs = 60
	}
	return &MinuteAggregator{interval: secs}
}

// Offer hands the latest smoothed sample to the aggregator. ok=false means
// the filter is empty; no record is emitted and nothing is latched. A record
// is returned the first time a sample lands in a bucket later than the last
// flushed one.
func (a *MinuteAggregator) Offer(sample models.SmoothedSample, ok bool) (models.MinuteRecord, bool) {
	if !ok {
		return models.MinuteRecord{}, false
	}

	bucket := floorDiv(sample.Epoch, a.interval)
	// A clock stepping backwards must not re-emit an already flushed bucket.
	if a.hasFlushed && bucket <= a.lastFlushed {
		return models.MinuteRecord{}, false
	}

	a.lastFlushed = bucket
	a.hasFlushed = true
	return models.NewMinuteRecord(sample), true
}

// LastFlushed returns the start of the most recently latched bucket
func (a *MinuteAggregator) LastFlushed() (time.Time, bool) {
	if !a.hasFlushed {
		return time.Time{}, false
	}
	return time.Unix(a.lastFlushed*a.interval, 0).UTC(), true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
