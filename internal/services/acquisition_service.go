package services

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/yakaglitch/Temp/internal/aggregator"
	"github.com/yakaglitch/Temp/internal/models"
	"github.com/yakaglitch/Temp/internal/sensor"
)

// failureLogEvery throttles sensor error logs during an outage
const failureLogEvery = 1000

// Flusher accepts latched minute records for persistence
type Flusher interface {
	Submit(ctx context.Context, rec models.MinuteRecord) error
}

// AcquisitionService polls the sensor at a fixed cadence, smooths the
// readings and hands one record per minute to the flusher. It owns all
// pipeline state; nothing is shared with other goroutines except counters.
type AcquisitionService struct {
	sensor  sensor.Sensor
	flusher Flusher
	clock   clock.Clock
	logger  *zap.SugaredLogger
	period  time.Duration

	filter     *aggregator.SmoothingFilter
	aggregator *aggregator.MinuteAggregator

	polls          atomic.Int64
	failures       atomic.Int64
	submitted      atomic.Int64
	consecutiveErr int64
}

// AcquisitionServiceConfig holds configuration for acquisition service
type AcquisitionServiceConfig struct {
	SamplePeriod  time.Duration
	WindowSize    int
	FlushInterval time.Duration
	Clock         clock.Clock // nil for the wall clock
}

// DefaultAcquisitionServiceConfig returns default configuration
func DefaultAcquisitionServiceConfig() AcquisitionServiceConfig {
	return AcquisitionServiceConfig{
		SamplePeriod:  20 * time.Millisecond,
		WindowSize:    50,
		FlushInterval: time.Minute,
	}
}

// NewAcquisitionService creates a new acquisition service
func NewAcquisitionService(
	s sensor.Sensor,
	flusher Flusher,
	config AcquisitionServiceConfig,
	logger *zap.SugaredLogger,
) *AcquisitionService {
	clk := config.Clock
	if clk == nil {
		clk = clock.New()
	}
	if config.SamplePeriod <= 0 {
		config.SamplePeriod = DefaultAcquisitionServiceConfig().SamplePeriod
	}
	return &AcquisitionService{
		sensor:     s,
		flusher:    flusher,
		clock:      clk,
		logger:     logger,
		period:     config.SamplePeriod,
		filter:     aggregator.NewSmoothingFilter(config.WindowSize),
		aggregator: aggregator.NewMinuteAggregator(config.FlushInterval),
	}
}

// Start runs the sampling loop until ctx is cancelled
func (a *AcquisitionService) Start(ctx context.Context) {
	a.logger.Infof("AcquisitionService: Starting, sampling every %v", a.period)

	ticker := a.clock.Ticker(a.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Infof("AcquisitionService: Shutting down after %d polls (%d failed), %d minutes submitted",
				a.polls.Load(), a.failures.Load(), a.submitted.Load())
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick performs one poll: read, smooth, and possibly latch a minute record.
// A failed read leaves all pipeline state untouched.
func (a *AcquisitionService) Tick(ctx context.Context) {
	a.polls.Inc()

	reading, err := a.sensor.Read(ctx)
	if err != nil {
		a.onSensorError(err)
		return
	}
	if a.consecutiveErr > 0 {
		a.logger.Infof("AcquisitionService: Sensor recovered after %d failed polls", a.consecutiveErr)
		a.consecutiveErr = 0
	}

	a.filter.Observe(reading)
	sample, ok := a.filter.Current(a.clock.Now())

	rec, ok := a.aggregator.Offer(sample, ok)
	if !ok {
		return
	}

	if err := a.flusher.Submit(ctx, rec); err != nil {
		a.logger.Warnw("AcquisitionService: Could not queue minute record", "epoch", rec.Epoch, "error", err)
		return
	}
	a.submitted.Inc()
	a.logger.Infow("AcquisitionService: Latched minute",
		"timestamp", rec.FormattedTimestamp(),
		"temperature_c", rec.TemperatureC,
		"pressure_hpa", rec.PressureHPa,
		"humidity_rh", rec.HumidityRH,
		"window", a.filter.Samples(),
		"polls", a.polls.Load(),
		"failures", a.failures.Load())
}

func (a *AcquisitionService) onSensorError(err error) {
	a.failures.Inc()
	a.consecutiveErr++

	if !sensor.IsSensorError(err) {
		a.logger.Errorw("AcquisitionService: Unexpected error from sensor", "error", err)
		return
	}
	if a.consecutiveErr == 1 || a.consecutiveErr%failureLogEvery == 0 {
		a.logger.Warnw("AcquisitionService: Sensor read failed, skipping poll",
			"consecutive", a.consecutiveErr, "error", err)
		return
	}
	a.logger.Debugw("AcquisitionService: Sensor read failed", "error", err)
}

// Stats returns poll, failure and submitted-minute counters
func (a *AcquisitionService) Stats() (polls, failures, submitted int64) {
	return a.polls.Load(), a.failures.Load(), a.submitted.Load()
}
