package aggregator

import (
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/yakaglitch/Temp/internal/models"
)

func sampleAt(ts time.Time, temp float64) models.SmoothedSample {
	return models.SmoothedSample{
		Reading:   models.Reading{TemperatureC: temp, PressureHPa: 1000, HumidityRH: 50},
		Timestamp: ts,
		Epoch:     ts.Unix(),
	}
}

func TestMinuteAggregatorNoSampleNoRecord(t *testing.T) {
	a := NewMinuteAggregator(time.Minute)
	for i := 0; i < 300; i++ {
		_, ok := a.Offer(models.SmoothedSample{}, false)
		test.That(t, ok, test.ShouldBeFalse)
	}
	_, flushed := a.LastFlushed()
	test.That(t, flushed, test.ShouldBeFalse)
}

func TestMinuteAggregatorOnePerMinute(t *testing.T) {
	a := NewMinuteAggregator(time.Minute)
	start := time.Date(2024, 5, 1, 12, 34, 10, 0, time.UTC)

	var records []models.MinuteRecord
	// 50 Hz for three minutes
	for i := 0; i < 3*60*50; i++ {
		now := start.Add(time.Duration(i) * 20 * time.Millisecond)
		if rec, ok := a.Offer(sampleAt(now, 20), true); ok {
			records = append(records, rec)
		}
	}

	test.That(t, records, test.ShouldHaveLength, 4)
	test.That(t, records[0].Timestamp.Equal(start), test.ShouldBeTrue)
	test.That(t, records[1].Timestamp.Minute(), test.ShouldEqual, 35)
	test.That(t, records[1].Timestamp.Second(), test.ShouldEqual, 0)
	test.That(t, records[3].Timestamp.Minute(), test.ShouldEqual, 37)

	last, ok := a.LastFlushed()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last, test.ShouldResemble, time.Date(2024, 5, 1, 12, 37, 0, 0, time.UTC))
}

func TestMinuteAggregatorSkipsMinutesWithoutSamples(t *testing.T) {
	a := NewMinuteAggregator(time.Minute)
	t0 := time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC)

	rec, ok := a.Offer(sampleAt(t0, 20), true)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, rec.TemperatureC, test.ShouldEqual, 20.0)

	// Nothing arrives during 12:01; the next sample is at 12:02:05.
	rec, ok = a.Offer(sampleAt(t0.Add(95*time.Second), 21), true)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, rec.Timestamp.Minute(), test.ShouldEqual, 2)
	test.That(t, rec.TemperatureC, test.ShouldEqual, 21.0)
}

func TestMinuteAggregatorClockStepsBack(t *testing.T) {
	a := NewMinuteAggregator(time.Minute)
	t0 := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)

	_, ok := a.Offer(sampleAt(t0, 20), true)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = a.Offer(sampleAt(t0.Add(-2*time.Minute), 20), true)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = a.Offer(sampleAt(t0.Add(time.Minute), 20), true)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestMinuteAggregatorSubSecondIntervalDefaults(t *testing.T) {
	a := NewMinuteAggregator(time.Millisecond)
	t0 := time.Date(2024, 5, 1, 12, 5, 1, 0, time.UTC)
	_, ok := a.Offer(sampleAt(t0, 20), true)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = a.Offer(sampleAt(t0.Add(30*time.Second), 20), true)
	test.That(t, ok, test.ShouldBeFalse)
}
