package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yakaglitch/Temp/internal/models"
)

// Publisher mirrors flushed minute records to an MQTT topic
type Publisher struct {
	client    mqtt.Client
	logger    *zap.SugaredLogger
	precision int
	qos       byte

	// Topic resolved from pattern, e.g., "env/{device_id}/minute"
	topic string
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	TopicPattern string // e.g., "env/{device_id}/minute"
	DeviceID     string
	Precision    int
	QoS          byte
}

// NewPublisher creates a new MQTT publisher
func NewPublisher(client mqtt.Client, config PublisherConfig, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{
		client:    client,
		logger:    logger,
		precision: config.Precision,
		qos:       config.QoS,
		topic:     formatTopic(config.TopicPattern, config.DeviceID),
	}
}

// Name identifies the publisher in flush logs
func (p *Publisher) Name() string {
	return "mqtt"
}

// Topic returns the resolved topic records are published to
func (p *Publisher) Topic() string {
	return p.topic
}

// Save publishes the record as a retained message so late subscribers
// immediately receive the latest minute.
func (p *Publisher) Save(ctx context.Context, rec models.MinuteRecord) error {
	if !p.client.IsConnected() {
		return errors.Errorf("not connected to broker, minute %d not published to %s", rec.Epoch, p.topic)
	}

	payload, err := json.Marshal(rec.Rounded(p.precision).Snapshot())
	if err != nil {
		return errors.Wrap(err, "failed to marshal minute record")
	}

	token := p.client.Publish(p.topic, p.qos, true, payload)

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return errors.Errorf("timed out publishing to %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", p.topic)
	}

	p.logger.Debugf("Published minute record %d to topic: %s", rec.Epoch, p.topic)
	return nil
}

// formatTopic replaces {device_id} placeholder with actual device ID
func formatTopic(topicPattern, deviceID string) string {
	return strings.ReplaceAll(topicPattern, "{device_id}", deviceID)
}
