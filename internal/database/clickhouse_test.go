package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/yakaglitch/Temp/internal/models"
)

type execCall struct {
	query string
	args  []any
}

type fakeExec struct {
	calls []execCall
	err   error
}

func (f *fakeExec) Exec(_ context.Context, query string, args ...any) error {
	f.calls = append(f.calls, execCall{query, args})
	return f.err
}

func newTestDB(t *testing.T, exec execer) *ClickHouseDB {
	db := &ClickHouseDB{
		exec:      exec,
		deviceID:  "porch",
		precision: 3,
		logger:    zaptest.NewLogger(t).Sugar(),
	}
	db.schemaReady.Store(true)
	return db
}

func TestInitSchema(t *testing.T) {
	exec := &fakeExec{}
	db := newTestDB(t, exec)

	db.schemaReady.Store(false)

	test.That(t, db.InitSchema(context.Background()), test.ShouldBeNil)
	test.That(t, db.schemaReady.Load(), test.ShouldBeTrue)
	test.That(t, exec.calls, test.ShouldHaveLength, len(AllTables()))
	test.That(t, exec.calls[0].query, test.ShouldContainSubstring, "CREATE TABLE IF NOT EXISTS env_minutes")
}

func TestSaveInsertsRoundedRecord(t *testing.T) {
	exec := &fakeExec{}
	db := newTestDB(t, exec)

	ts := time.Date(2024, 7, 9, 12, 34, 0, 0, time.UTC)
	rec := models.MinuteRecord{
		Reading:   models.Reading{TemperatureC: 22.13449, PressureHPa: 1001.5, HumidityRH: 40},
		Timestamp: ts,
		Epoch:     ts.Unix(),
	}
	test.That(t, db.Save(context.Background(), rec), test.ShouldBeNil)

	test.That(t, exec.calls, test.ShouldHaveLength, 1)
	call := exec.calls[0]
	test.That(t, strings.TrimSpace(call.query), test.ShouldStartWith, "INSERT INTO env_minutes")
	test.That(t, call.args, test.ShouldResemble, []any{ts, ts.Unix(), "porch", 22.134, 1001.5, 40.0})
}

func TestSaveWrapsError(t *testing.T) {
	db := newTestDB(t, &fakeExec{err: errors.New("connection reset")})
	err := db.Save(context.Background(), models.MinuteRecord{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "connection reset")
	test.That(t, db.Close(), test.ShouldBeNil)
}

func TestSaveCreatesSchemaOnceServerIsBack(t *testing.T) {
	exec := &fakeExec{err: errors.New("dial tcp: connection refused")}
	db := newTestDB(t, exec)
	db.schemaReady.Store(false)
	ts := time.Date(2024, 7, 9, 12, 34, 0, 0, time.UTC)

	// Server down: the schema attempt fails and no insert is tried.
	err := db.Save(context.Background(), models.MinuteRecord{Timestamp: ts, Epoch: ts.Unix()})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "connection refused")
	test.That(t, exec.calls, test.ShouldHaveLength, 1)
	test.That(t, db.schemaReady.Load(), test.ShouldBeFalse)

	exec.err = nil
	test.That(t, db.Save(context.Background(), models.MinuteRecord{Timestamp: ts, Epoch: ts.Unix()}), test.ShouldBeNil)
	test.That(t, exec.calls, test.ShouldHaveLength, 1+len(AllTables())+1)
	test.That(t, exec.calls[1].query, test.ShouldContainSubstring, "CREATE TABLE IF NOT EXISTS env_minutes")
	test.That(t, strings.TrimSpace(exec.calls[2].query), test.ShouldStartWith, "INSERT INTO env_minutes")

	// Schema is only created once.
	test.That(t, db.Save(context.Background(), models.MinuteRecord{Timestamp: ts, Epoch: ts.Unix()}), test.ShouldBeNil)
	test.That(t, exec.calls, test.ShouldHaveLength, 1+len(AllTables())+2)
}
