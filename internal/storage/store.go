// Package storage persists minute records into rotating, redundant CSV files
// and a live JSON snapshot. Files are laid out as:
//
//	<data>/YYYY.csv
//	<data>/YYYY_MM.csv
//	<data>/BU/YYYY_bu.csv
//	<data>/BU/YYYY_MM_bu.csv
//	<data>/live.json
package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/yakaglitch/Temp/internal/models"
)

// DefaultPrecision is the number of decimals persisted for each quantity
const DefaultPrecision = 3

// Store is the durable sink for minute records
type Store struct {
	targets   []Target
	livePath  string
	precision int
	logger    *zap.SugaredLogger

	mu sync.Mutex
}

// StoreConfig holds configuration for the durable store
type StoreConfig struct {
	Targets   []Target
	LivePath  string
	Precision int
}

// NewStore creates a store. No files are touched until the first flush.
func NewStore(config StoreConfig, logger *zap.SugaredLogger) (*Store, error) {
	if len(config.Targets) == 0 {
		return nil, errors.New("storage: at least one CSV target is required")
	}
	if config.LivePath == "" {
		return nil, errors.New("storage: live snapshot path is required")
	}
	if config.Precision < 0 {
		config.Precision = DefaultPrecision
	}

	targets := make([]Target, len(config.Targets))
	copy(targets, config.Targets)

	return &Store{
		targets:   targets,
		livePath:  config.LivePath,
		precision: config.Precision,
		logger:    logger,
	}, nil
}

// Name identifies the store in flush logs
func (s *Store) Name() string {
	return "csv"
}

// Save flushes a record: it appends a row to every CSV target and then
// replaces the live snapshot. Per-target failures do not stop the others;
// they are combined into the returned error.
func (s *Store) Save(ctx context.Context, rec models.MinuteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec = rec.Rounded(s.precision)
	err := s.appendRow(rec)
	if liveErr := s.writeLive(rec); liveErr != nil {
		err = multierr.Append(err, liveErr)
	}
	return err
}

// AppendRow appends the record to every CSV target
func (s *Store) AppendRow(rec models.MinuteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRow(rec.Rounded(s.precision))
}

// WriteLive atomically replaces the live snapshot with the record
func (s *Store) WriteLive(rec models.MinuteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLive(rec.Rounded(s.precision))
}

func (s *Store) appendRow(rec models.MinuteRecord) error {
	row := FormatRow(rec, s.precision)

	var errs error
	for _, t := range s.targets {
		path := t.Path(rec.Timestamp)
		if err := appendCSV(path, row); err != nil {
			errs = multierr.Append(errs, &Error{Op: "append", Path: path, Err: err})
			continue
		}
		s.logger.Debugw("appended row", "path", path, "epoch", rec.Epoch)
	}
	return errs
}

func (s *Store) writeLive(rec models.MinuteRecord) error {
	data, err := json.Marshal(rec.Snapshot())
	if err != nil {
		return &Error{Op: "live", Path: s.livePath, Err: err}
	}
	if err := writeFileAtomic(s.livePath, data); err != nil {
		return &Error{Op: "live", Path: s.livePath, Err: err}
	}
	return nil
}
