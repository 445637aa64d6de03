package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	// Sampling
	SamplePeriod  time.Duration
	WindowSize    int
	FlushInterval time.Duration

	// Sensor Configuration
	I2CBus        string
	I2CAddress    uint16
	SensorTimeout time.Duration
	SensorID      string

	// Storage Configuration
	DataDir        string
	BackupSubdir   string
	LiveFile       string
	FloatPrecision int
	FlushQueueSize int

	// Logging
	LogLevel string
	LogFile  string

	// MQTT Configuration (mirror disabled when broker is empty)
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicMinute string

	// ClickHouse Configuration (mirror disabled when addr is empty)
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
}

// ConfigurationError reports invalid startup parameters. It is fatal: the
// acquisition loop must not start.
type ConfigurationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%q: %s", e.Key, e.Value, e.Reason)
}

// Load reads the configuration from the environment, after loading a .env
// file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		SamplePeriod:  p.duration("SAMPLE_PERIOD", 20*time.Millisecond),
		WindowSize:    p.int("WINDOW_SIZE", 50),
		FlushInterval: p.duration("FLUSH_INTERVAL", time.Minute),

		I2CBus:        getEnv("I2C_BUS", ""),
		I2CAddress:    p.address("I2C_ADDRESS", 0x76),
		SensorTimeout: p.duration("SENSOR_TIMEOUT", 100*time.Millisecond),
		SensorID:      getEnv("SENSOR_ID", "bme280"),

		DataDir:        getEnv("DATA_DIR", "data"),
		BackupSubdir:   getEnv("BACKUP_SUBDIR", "BU"),
		LiveFile:       getEnv("LIVE_FILE", "live.json"),
		FloatPrecision: p.int("FLOAT_PRECISION", 3),
		FlushQueueSize: p.int("FLUSH_QUEUE_SIZE", 16),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "env-logger"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		MQTTTopicMinute: getEnv("MQTT_TOPIC_MINUTE", "env/{device_id}/minute"),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "env"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. All problems are reported at once.
func (c *Config) Validate() error {
	var errs error
	bad := func(key string, value interface{}, reason string) {
		errs = multierr.Append(errs, &ConfigurationError{Key: key, Value: fmt.Sprint(value), Reason: reason})
	}

	if c.SamplePeriod <= 0 {
		bad("SAMPLE_PERIOD", c.SamplePeriod, "must be positive")
	}
	if c.WindowSize < 1 {
		bad("WINDOW_SIZE", c.WindowSize, "must be at least 1")
	}
	if c.FlushInterval < time.Second || c.FlushInterval%time.Second != 0 {
		bad("FLUSH_INTERVAL", c.FlushInterval, "must be a whole number of seconds")
	}
	if c.I2CAddress == 0 || c.I2CAddress > 0x7f {
		bad("I2C_ADDRESS", c.I2CAddress, "must be a 7-bit address")
	}
	if c.SensorTimeout <= 0 {
		bad("SENSOR_TIMEOUT", c.SensorTimeout, "must be positive")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		bad("DATA_DIR", c.DataDir, "must not be empty")
	}
	if strings.TrimSpace(c.BackupSubdir) == "" {
		bad("BACKUP_SUBDIR", c.BackupSubdir, "must not be empty")
	}
	if strings.TrimSpace(c.LiveFile) == "" {
		bad("LIVE_FILE", c.LiveFile, "must not be empty")
	}
	if c.FloatPrecision < 0 || c.FloatPrecision > 9 {
		bad("FLOAT_PRECISION", c.FloatPrecision, "must be between 0 and 9")
	}
	if c.FlushQueueSize < 1 {
		bad("FLUSH_QUEUE_SIZE", c.FlushQueueSize, "must be at least 1")
	}
	return errs
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parser collects parse failures instead of silently falling back to defaults
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	p.err = multierr.Append(p.err, &ConfigurationError{Key: key, Value: value, Reason: err.Error()})
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return i
}

// address accepts decimal or 0x-prefixed hex
func (p *parser) address(key string, defaultValue uint16) uint16 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	a, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return uint16(a)
}
