package models

import (
	"time"

	"github.com/pkg/errors"
)

// LiveSnapshot is the JSON document served to the live display page
type LiveSnapshot struct {
	Timestamp    string  `json:"timestamp"`
	Epoch        int64   `json:"epoch"`
	TemperatureC float64 `json:"temperature_c"`
	PressureHPa  float64 `json:"pressure_hpa"`
	HumidityRH   float64 `json:"humidity_rh"`
}

// Snapshot converts an (already rounded) record into its wire form
func (r MinuteRecord) Snapshot() LiveSnapshot {
	return LiveSnapshot{
		Timestamp:    r.FormattedTimestamp(),
		Epoch:        r.Epoch,
		TemperatureC: r.TemperatureC,
		PressureHPa:  r.PressureHPa,
		HumidityRH:   r.HumidityRH,
	}
}

// Record parses the snapshot back into a MinuteRecord
func (s LiveSnapshot) Record() (MinuteRecord, error) {
	ts, err := time.Parse(TimestampLayout, s.Timestamp)
	if err != nil {
		return MinuteRecord{}, errors.Wrapf(err, "invalid timestamp %q", s.Timestamp)
	}
	return MinuteRecord{
		Reading: Reading{
			TemperatureC: s.TemperatureC,
			PressureHPa:  s.PressureHPa,
			HumidityRH:   s.HumidityRH,
		},
		Timestamp: ts.UTC(),
		Epoch:     s.Epoch,
	}, nil
}
