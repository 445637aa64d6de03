package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/yakaglitch/Temp/internal/database"
	"github.com/yakaglitch/Temp/internal/logging"
	"github.com/yakaglitch/Temp/internal/mqtt"
	"github.com/yakaglitch/Temp/internal/sensor"
	"github.com/yakaglitch/Temp/internal/services"
	"github.com/yakaglitch/Temp/internal/storage"
	"github.com/yakaglitch/Temp/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to start: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.NewLogger(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to start: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Errorf("Fatal: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	logger.Info("Starting environment logger...")

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Durable store ===
	store, err := storage.NewStore(storage.StoreConfig{
		Targets:   storage.DefaultTargets(cfg.DataDir, cfg.BackupSubdir),
		LivePath:  filepath.Join(cfg.DataDir, cfg.LiveFile),
		Precision: cfg.FloatPrecision,
	}, logger.Named("storage"))
	if err != nil {
		return err
	}
	sinks := []services.Sink{store}

	// === Optional MQTT mirror ===
	if cfg.MQTTBroker != "" {
		logger.Info("Connecting to MQTT broker...")
		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger.Named("mqtt"))
		if err != nil {
			logger.Errorf("MQTT mirror disabled: %v", err)
		} else {
			defer mqttClient.Close()

			publisher := mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{
				TopicPattern: cfg.MQTTTopicMinute,
				DeviceID:     cfg.SensorID,
				Precision:    cfg.FloatPrecision,
				QoS:          1,
			}, logger.Named("mqtt"))
			logger.Infof("Mirroring minute records to MQTT topic: %s", publisher.Topic())
			sinks = append(sinks, publisher)
		}
	}

	// === Optional ClickHouse mirror ===
	if cfg.ClickHouseAddr != "" {
		db, err := database.NewClickHouseDB(ctx, database.ClickHouseConfig{
			Addr:      cfg.ClickHouseAddr,
			Database:  cfg.ClickHouseDB,
			Username:  cfg.ClickHouseUser,
			Password:  cfg.ClickHousePass,
			DeviceID:  cfg.SensorID,
			Precision: cfg.FloatPrecision,
		}, logger.Named("clickhouse"))
		if err != nil {
			logger.Errorf("ClickHouse mirror disabled: %v", err)
		} else {
			defer db.Close()
			sinks = append(sinks, db)
		}
	}

	// === Sensor ===
	// An absent chip is not fatal: polls fail until it answers.
	bme := sensor.NewBME280(sensor.BME280Config{
		Bus:     cfg.I2CBus,
		Address: cfg.I2CAddress,
		Timeout: cfg.SensorTimeout,
	}, logger.Named("sensor"))
	defer func() {
		if err := bme.Close(); err != nil {
			logger.Warnf("Error closing sensor: %v", err)
		}
	}()

	// === Services ===
	flushConfig := services.DefaultFlushServiceConfig()
	flushConfig.QueueSize = cfg.FlushQueueSize
	flushService := services.NewFlushService(flushConfig, logger.Named("flush"), sinks...)
	go flushService.Start(ctx)

	acquisition := services.NewAcquisitionService(bme, flushService, services.AcquisitionServiceConfig{
		SamplePeriod:  cfg.SamplePeriod,
		WindowSize:    cfg.WindowSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.Named("acquisition"))

	logger.Infow("=== Environment logger is running ===",
		"period", cfg.SamplePeriod,
		"window", cfg.WindowSize,
		"data_dir", cfg.DataDir,
		"sinks", len(sinks))

	// Blocks until SIGINT/SIGTERM
	acquisition.Start(ctx)

	// === Graceful shutdown ===
	logger.Info("Shutdown signal received, flushing queued minutes...")
	flushService.Close()
	flushService.Wait()

	logger.Info("Shutdown complete. Goodbye!")
	return nil
}
