package database

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/yakaglitch/Temp/internal/models"
)

// execer is the subset of driver.Conn the mirror needs
type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ClickHouseDB mirrors flushed minute records into ClickHouse. It never
// queries; the CSV files remain the system of record.
type ClickHouseDB struct {
	conn      driver.Conn
	exec      execer
	deviceID  string
	precision int
	logger    *zap.SugaredLogger

	schemaReady atomic.Bool
}

// ClickHouseConfig holds ClickHouse connection configuration
type ClickHouseConfig struct {
	Addr      string
	Database  string
	Username  string
	Password  string
	DeviceID  string
	Precision int
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, config ClickHouseConfig, logger *zap.SugaredLogger) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to ClickHouse")
	}

	db := &ClickHouseDB{
		conn:      conn,
		exec:      conn,
		deviceID:  config.DeviceID,
		precision: config.Precision,
		logger:    logger,
	}

	// The server may come up after us; Save retries the schema until it does.
	if err := conn.Ping(ctx); err != nil {
		logger.Warnw("ClickHouse unreachable at startup, mirror will retry on each flush",
			"addr", config.Addr, "error", err)
		return db, nil
	}
	logger.Infof("Connected to ClickHouse at %s", config.Addr)

	if err := db.InitSchema(ctx); err != nil {
		logger.Warnw("ClickHouse schema not initialized, will retry on next flush", "error", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.exec.Exec(ctx, tableSQL); err != nil {
			return errors.Wrap(err, "failed to create table")
		}
	}

	db.schemaReady.Store(true)
	db.logger.Info("Database schema initialized successfully")
	return nil
}

// Name identifies the mirror in flush logs
func (db *ClickHouseDB) Name() string {
	return "clickhouse"
}

// Save inserts a flushed minute record
func (db *ClickHouseDB) Save(ctx context.Context, rec models.MinuteRecord) error {
	if !db.schemaReady.Load() {
		if err := db.InitSchema(ctx); err != nil {
			return err
		}
	}

	rec = rec.Rounded(db.precision)
	err := db.exec.Exec(ctx, InsertEnvMinuteSQL,
		rec.Timestamp,
		rec.Epoch,
		db.deviceID,
		rec.TemperatureC,
		rec.PressureHPa,
		rec.HumidityRH,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert minute record")
	}

	return nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return errors.Wrap(err, "failed to close ClickHouse connection")
		}
		db.logger.Info("ClickHouse connection closed")
	}
	return nil
}
