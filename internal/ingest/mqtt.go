// Package ingest bridges MQTT reading updates into the registry. Sensors
// publish their latest value to <prefix>/<sensor-id>/reading; the payload
// becomes the stored reading verbatim.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Updater interface {
	UpdateReading(ctx context.Context, id, reading string) error
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

type Bridge struct {
	client mqtt.Client
	svc    Updater
	logger *slog.Logger
	prefix string
}

func NewBridge(opts Options, svc Updater, logger *slog.Logger) (*Bridge, error) {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerURL)
	o.SetClientID(opts.ClientID)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(2 * time.Second)
	client := mqtt.NewClient(o)

	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker: %w", token.Error())
	}

	return &Bridge{
		client: client,
		svc:    svc,
		logger: logger,
		prefix: strings.TrimSuffix(opts.TopicPrefix, "/"),
	}, nil
}

func (b *Bridge) Start() error {
	topic := b.prefix + "/+/reading"
	if token := b.client.Subscribe(topic, 0, b.handle); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	b.logger.Info("mqtt ingest started", slog.String("topic", topic))
	return nil
}

func (b *Bridge) Stop() {
	b.client.Disconnect(250)
}

func (b *Bridge) handle(_ mqtt.Client, msg mqtt.Message) {
	id, ok := SensorIDFromTopic(msg.Topic())
	if !ok {
		b.logger.Warn("ignoring message on unexpected topic", slog.String("topic", msg.Topic()))
		return
	}

	if err := b.svc.UpdateReading(context.Background(), id, string(msg.Payload())); err != nil {
		b.logger.Error("reading update rejected",
			slog.String("sensor_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// SensorIDFromTopic extracts the sensor id from a <prefix>/<id>/reading
// topic. The id is the second-to-last segment.
func SensorIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "reading" {
		return "", false
	}
	id := parts[len(parts)-2]
	if id == "" {
		return "", false
	}
	return id, true
}
