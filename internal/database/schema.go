package database

// SQL schemas for all ClickHouse tables

const (
	// EnvMinutesTableSQL creates the env_minutes table
	EnvMinutesTableSQL = `
		CREATE TABLE IF NOT EXISTS env_minutes (
			timestamp DateTime64(6),
			epoch Int64,
			device_id String,
			temperature_c Float64,
			pressure_hpa Float64,
			humidity_rh Float64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (device_id, timestamp)
	`

	// InsertEnvMinuteSQL inserts one flushed minute
	InsertEnvMinuteSQL = `
		INSERT INTO env_minutes (timestamp, epoch, device_id, temperature_c, pressure_hpa, humidity_rh)
		VALUES (?, ?, ?, ?, ?, ?)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		EnvMinutesTableSQL,
	}
}
