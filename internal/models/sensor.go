package models

import (
	"math"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for persisted timestamps.
// Records are stamped in UTC so the offset always renders as +00:00.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Reading represents one instantaneous measurement from the sensor
type Reading struct {
	TemperatureC float64 `json:"temperature_c"` // Celsius
	PressureHPa  float64 `json:"pressure_hpa"`  // Hectopascal
	HumidityRH   float64 `json:"humidity_rh"`   // Percentage 0-100
}

// SmoothedSample is the mean of the current smoothing windows
type SmoothedSample struct {
	Reading
	Timestamp time.Time
	Epoch     int64
}

// MinuteRecord is the smoothed sample latched when a new minute begins
type MinuteRecord struct {
	Reading
	Timestamp time.Time
	Epoch     int64
}

// NewMinuteRecord latches a smoothed sample into a record
func NewMinuteRecord(sample SmoothedSample) MinuteRecord {
	return MinuteRecord{
		Reading:   sample.Reading,
		Timestamp: sample.Timestamp.UTC(),
		Epoch:     sample.Epoch,
	}
}

// Rounded returns a copy with every quantity rounded to precision decimals.
// This is the value that is actually serialized.
func (r MinuteRecord) Rounded(precision int) MinuteRecord {
	out := r
	out.TemperatureC = Round(r.TemperatureC, precision)
	out.PressureHPa = Round(r.PressureHPa, precision)
	out.HumidityRH = Round(r.HumidityRH, precision)
	return out
}

// FormattedTimestamp returns the record timestamp in TimestampLayout
func (r MinuteRecord) FormattedTimestamp() string {
	return r.Timestamp.UTC().Format(TimestampLayout)
}

// Round rounds v half away from zero to the given number of decimals
func Round(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
