// Package aggregator turns the high-rate stream of sensor readings into
// smoothed samples and latches one of them per elapsed minute.
package aggregator

import (
	"time"

	"github.com/yakaglitch/Temp/internal/models"
)

// SmoothingFilter keeps one moving-average window per measured quantity
type SmoothingFilter struct {
	temperature *MovingAverage
	pressure    *MovingAverage
	humidity    *MovingAverage
}

// NewSmoothingFilter creates a filter whose windows hold windowSize samples
func NewSmoothingFilter(windowSize int) *SmoothingFilter {
	return &SmoothingFilter{
		temperature: NewMovingAverage(windowSize),
		pressure:    NewMovingAverage(windowSize),
		humidity:    NewMovingAverage(windowSize),
	}
}

// Observe appends a successful reading to every window
func (f *SmoothingFilter) Observe(r models.Reading) {
	f.temperature.Add(r.TemperatureC)
	f.pressure.Add(r.PressureHPa)
	f.humidity.Add(r.HumidityRH)
}

// Current returns the mean of each window stamped with now.
// It reports false while any window is still empty.
func (f *SmoothingFilter) Current(now time.Time) (models.SmoothedSample, bool) {
	t, okT := f.temperature.Mean()
	p, okP := f.pressure.Mean()
	h, okH := f.humidity.Mean()
	if !okT || !okP || !okH {
		return models.SmoothedSample{}, false
	}

	return models.SmoothedSample{
		Reading: models.Reading{
			TemperatureC: t,
			PressureHPa:  p,
			HumidityRH:   h,
		},
		Timestamp: now,
		Epoch:     now.Unix(),
	}, true
}

// Samples returns how many readings the windows currently hold
func (f *SmoothingFilter) Samples() int {
	return f.temperature.Len()
}
