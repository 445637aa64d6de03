package sensor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/yakaglitch/Temp/internal/models"
)

const (
	// DefaultAddress is the BME280 address with SDO tied low
	DefaultAddress = 0x76
	// DefaultTimeout bounds one measurement
	DefaultTimeout = 100 * time.Millisecond
	// DefaultRetryInterval spaces attempts to open an absent chip
	DefaultRetryInterval = time.Second
	// DefaultCloseWait bounds how long Close waits for a stuck read
	DefaultCloseWait = 500 * time.Millisecond
)

// device is the part of *bmxx80.Dev the sensor uses
type device interface {
	Sense(e *physic.Env) error
	Halt() error
}

// opener brings up the bus and probes the chip
type opener func() (device, i2c.BusCloser, error)

// BME280Config holds configuration for the BME280 sensor
type BME280Config struct {
	Bus     string // i2creg name, "" for the first bus
	Address uint16
	Timeout time.Duration
}

// BME280 reads temperature, pressure and humidity from a Bosch BME280.
// The chip is opened lazily, so a sensor that is absent at boot only
// produces failed polls until it answers.
type BME280 struct {
	open          opener
	retryInterval time.Duration
	closeWait     time.Duration
	timeout       time.Duration
	logger        *zap.SugaredLogger

	// Owned by whoever holds inFlight.
	dev         device
	bus         i2c.BusCloser
	lastOpen    time.Time
	lastOpenErr error

	inFlight atomic.Bool
}

// NewBME280 returns a sensor for the configured bus and address. It tries to
// open the chip right away; a failure is logged and retried from Read.
func NewBME280(config BME280Config, logger *zap.SugaredLogger) *BME280 {
	addr := config.Address
	if addr == 0 {
		addr = DefaultAddress
	}

	open := func() (device, i2c.BusCloser, error) {
		if _, err := host.Init(); err != nil {
			return nil, nil, errors.Wrap(err, "failed to initialize periph host")
		}

		bus, err := i2creg.Open(config.Bus)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to open I2C bus %q", config.Bus)
		}

		// 1x oversampling keeps one forced measurement under 10ms.
		dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.Opts{
			Temperature: bmxx80.O1x,
			Pressure:    bmxx80.O1x,
			Humidity:    bmxx80.O1x,
		})
		if err != nil {
			bus.Close()
			return nil, nil, errors.Wrapf(err, "failed to initialize BME280 at %#x", addr)
		}

		logger.Infof("BME280: Opened %s on bus %q at %#x", dev, config.Bus, addr)
		return dev, bus, nil
	}

	s := newBME280(open, config.Timeout, logger)
	s.inFlight.Store(true)
	if err := s.connect(); err != nil {
		logger.Warnw("BME280: Sensor not available yet, retrying from the sampling loop", "error", err)
	}
	s.inFlight.Store(false)
	return s
}

func newBME280(open opener, timeout time.Duration, logger *zap.SugaredLogger) *BME280 {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BME280{
		open:          open,
		retryInterval: DefaultRetryInterval,
		closeWait:     DefaultCloseWait,
		timeout:       timeout,
		logger:        logger,
	}
}

// connect opens the device if it is not open yet. Attempts are spaced by
// retryInterval; in between, the last failure is returned again.
func (s *BME280) connect() error {
	if s.dev != nil {
		return nil
	}
	if !s.lastOpen.IsZero() && time.Since(s.lastOpen) < s.retryInterval {
		return s.lastOpenErr
	}

	s.lastOpen = time.Now()
	dev, bus, err := s.open()
	if err != nil {
		s.lastOpenErr = err
		return err
	}
	s.dev, s.bus, s.lastOpenErr = dev, bus, nil
	return nil
}

type senseResult struct {
	env physic.Env
	err error
}

// Read performs one measurement bounded by the configured timeout
func (s *BME280) Read(ctx context.Context) (models.Reading, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return models.Reading{}, &Error{Kind: KindBusy, Err: errors.New("previous read still in progress")}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan senseResult, 1)
	go func() {
		defer s.inFlight.Store(false)
		var res senseResult
		if res.err = s.connect(); res.err == nil {
			res.err = s.dev.Sense(&res.env)
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		return models.Reading{}, &Error{Kind: KindTimeout, Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return models.Reading{}, &Error{Kind: KindBus, Err: res.err}
		}
		reading := FromEnv(res.env)
		if err := Validate(reading); err != nil {
			return models.Reading{}, err
		}
		return reading, nil
	}
}

// Close halts the device and releases the bus. A read that timed out may
// still be on the bus; Close waits up to closeWait for it to finish.
func (s *BME280) Close() error {
	deadline := time.Now().Add(s.closeWait)
	for !s.inFlight.CompareAndSwap(false, true) {
		if time.Now().After(deadline) {
			return &Error{Kind: KindBusy, Err: errors.New("read still in progress, not halting")}
		}
		time.Sleep(time.Millisecond)
	}
	defer s.inFlight.Store(false)

	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	if s.bus != nil {
		if closeErr := s.bus.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	s.dev, s.bus = nil, nil
	if err != nil {
		return errors.Wrap(err, "failed to close BME280")
	}
	s.logger.Info("BME280: Closed")
	return nil
}

// FromEnv converts periph's fixed-point units into Celsius, hPa and %RH
func FromEnv(env physic.Env) models.Reading {
	return models.Reading{
		TemperatureC: float64(env.Temperature-physic.ZeroCelsius) / float64(physic.Kelvin),
		PressureHPa:  float64(env.Pressure) / float64(100*physic.Pascal),
		HumidityRH:   float64(env.Humidity) / float64(physic.PercentRH),
	}
}
