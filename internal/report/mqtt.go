package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSink publishes records as JSON to a topic, QoS 0, without waiting for
// delivery. Delivery failures are only logged.
type MQTTSink struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMQTTSink wraps an already connected client.
func NewMQTTSink(client mqtt.Client, topic string, timeout time.Duration, logger *slog.Logger) *MQTTSink {
	return &MQTTSink{
		client:  client,
		topic:   topic,
		timeout: timeout,
		logger:  logger.With("component", "mqtt", "topic", topic),
	}
}

// DialMQTT connects to broker and returns a sink on topic.
func DialMQTT(broker, clientID, topic string, timeout time.Duration, logger *slog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect %s: timed out after %s", broker, timeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	return NewMQTTSink(client, topic, timeout, logger), nil
}

func (*MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tok := s.client.Publish(s.topic, 0, false, payload)
	go func() {
		if !tok.WaitTimeout(s.timeout) {
			s.logger.Warn("publish not confirmed", "task_id", rec.TaskID, "timeout", s.timeout)
			return
		}
		if err := tok.Error(); err != nil {
			s.logger.Error("publish failed", "task_id", rec.TaskID, "error", err)
		}
	}()
	return nil
}

// Close disconnects, giving in-flight messages a moment to drain.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
