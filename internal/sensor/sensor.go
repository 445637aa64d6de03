// Package sensor defines the sensor capability consumed by the acquisition
// loop and a BME280 implementation on top of periph.io.
package sensor

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/yakaglitch/Temp/internal/models"
)

// Sensor returns instantaneous readings or fails explicitly. Implementations
// must bound every Read; a hung bus surfaces as an Error, never a hang.
type Sensor interface {
	Read(ctx context.Context) (models.Reading, error)
	Close() error
}

// Kind classifies a sensor failure
type Kind int

const (
	// KindBus is a failed bus transaction or absent device
	KindBus Kind = iota
	// KindTimeout means the read did not complete in time
	KindTimeout
	// KindInvalidData means the device answered with implausible values
	KindInvalidData
	// KindBusy means a previous timed-out read still owns the bus
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindBus:
		return "bus"
	case KindTimeout:
		return "timeout"
	case KindInvalidData:
		return "invalid data"
	case KindBusy:
		return "busy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a recoverable sensor failure. The poll that produced it
// contributes nothing downstream.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "sensor " + e.Kind.String()
	}
	return fmt.Sprintf("sensor %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsSensorError reports whether any error in err's chain is a sensor Error
func IsSensorError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// Operating range of the BME280
const (
	MinTemperatureC = -40.0
	MaxTemperatureC = 85.0
	MinPressureHPa  = 300.0
	MaxPressureHPa  = 1100.0
	MinHumidityRH   = 0.0
	MaxHumidityRH   = 100.0
)

// Validate rejects readings outside the device's operating range. Garbage
// register contents typically decode to such values.
func Validate(r models.Reading) error {
	check := func(name string, v, lo, hi float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
			return &Error{Kind: KindInvalidData, Err: errors.Errorf("%s %v outside [%v, %v]", name, v, lo, hi)}
		}
		return nil
	}
	if err := check("temperature", r.TemperatureC, MinTemperatureC, MaxTemperatureC); err != nil {
		return err
	}
	if err := check("pressure", r.PressureHPa, MinPressureHPa, MaxPressureHPa); err != nil {
		return err
	}
	return check("humidity", r.HumidityRH, MinHumidityRH, MaxHumidityRH)
}
