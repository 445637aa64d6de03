package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/yakaglitch/Temp/internal/models"
)

// Header is the first row of every CSV file:
//
//	timestamp,epoch,temperature_c,pressure_hpa,humidity_rh
var Header = []string{"timestamp", "epoch", "temperature_c", "pressure_hpa", "humidity_rh"}

// FormatRow renders a record as CSV fields with floats at fixed precision
func FormatRow(rec models.MinuteRecord, precision int) []string {
	return []string{
		rec.FormattedTimestamp(),
		strconv.FormatInt(rec.Epoch, 10),
		strconv.FormatFloat(rec.TemperatureC, 'f', precision, 64),
		strconv.FormatFloat(rec.PressureHPa, 'f', precision, 64),
		strconv.FormatFloat(rec.HumidityRH, 'f', precision, 64),
	}
}

// appendCSV appends one row to path. A missing directory is recreated and
// a missing or empty file gets the header first.
func appendCSV(path string, row []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "cannot create directory")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "cannot open file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "cannot stat file")
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return errors.Wrap(err, "cannot write header")
		}
	}
	if err := w.Write(row); err != nil {
		return errors.Wrap(err, "cannot write row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "cannot flush row")
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "cannot sync file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "cannot close file")
	}
	if info.Size() == 0 {
		return syncDir(filepath.Dir(path))
	}
	return nil
}

// LoadFile reads all records from a CSV file written by the store
func LoadFile(path string) ([]models.MinuteRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(Header)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", path)
	}

	var records []models.MinuteRecord
	for i, row := range rows {
		if i == 0 && row[0] == Header[0] {
			continue
		}
		rec, err := ParseRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "%s line %d", path, i+1)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseRow converts CSV fields back into a record
func ParseRow(row []string) (models.MinuteRecord, error) {
	if len(row) != len(Header) {
		return models.MinuteRecord{}, errors.Errorf("expected %d fields, got %d", len(Header), len(row))
	}

	ts, err := time.Parse(models.TimestampLayout, row[0])
	if err != nil {
		return models.MinuteRecord{}, errors.Wrap(err, "bad timestamp")
	}
	epoch, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil {
		return models.MinuteRecord{}, errors.Wrap(err, "bad epoch")
	}

	var vals [3]float64
	for i := range vals {
		vals[i], err = strconv.ParseFloat(row[2+i], 64)
		if err != nil {
			return models.MinuteRecord{}, errors.Wrapf(err, "bad %s", Header[2+i])
		}
	}

	return models.MinuteRecord{
		Reading: models.Reading{
			TemperatureC: vals[0],
			PressureHPa:  vals[1],
			HumidityRH:   vals[2],
		},
		Timestamp: ts.UTC(),
		Epoch:     epoch,
	}, nil
}
