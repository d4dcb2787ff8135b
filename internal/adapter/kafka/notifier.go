// Package kafka publishes alert notifications for the operator-facing
// display client, which consumes them from a Kafka topic. Notifications are
// fire-and-forget: a publish failure is logged and counted, never surfaced
// to the station that triggered it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/zackehh/corba-flood-warning-system/internal/config"
	"github.com/zackehh/corba-flood-warning-system/internal/domain"
	"github.com/zackehh/corba-flood-warning-system/internal/observability"
)

// Notification is the wire format consumed by the display client.
type Notification struct {
	Action     string       `json:"action"` // "add" or "cancel"
	Alert      domain.Alert `json:"alert"`  // key fields only for cancels
	NotifiedAt int64        `json:"notified_at"`
}

// messageWriter is the slice of kafkago.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier implements the coordinator's Display interface on a Kafka topic.
type Notifier struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewNotifier creates a producer for the configured alert-notification topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger, metrics: metrics}
}

// AddAlert publishes an alert-raised notification.
func (n *Notifier) AddAlert(ctx context.Context, alert domain.Alert) {
	n.publish(ctx, Notification{Action: "add", Alert: alert, NotifiedAt: domain.Now()})
}

// CancelAlert publishes an alert-cancelled notification.
func (n *Notifier) CancelAlert(ctx context.Context, key domain.AlertKey) {
	n.publish(ctx, Notification{Action: "cancel", Alert: domain.Alert{AlertKey: key}, NotifiedAt: domain.Now()})
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

func (n *Notifier) publish(ctx context.Context, note Notification) {
	msg, err := serializeToMessage(note)
	if err != nil {
		n.fail(note, err)
		return
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.fail(note, err)
	}
}

func (n *Notifier) fail(note Notification, err error) {
	n.logger.Warn("display notification dropped",
		"action", note.Action, "key", note.Alert.AlertKey.String(), "error", err)
	n.metrics.NotifyFailures.Inc()
}

// serializeToMessage marshals a notification into a Kafka message. The
// compound alert key is the message key, so notifications for one alert
// land on one partition in order.
func serializeToMessage(note Notification) (kafkago.Message, error) {
	data, err := json.Marshal(note)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(note.Alert.AlertKey.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(note.Action)},
			{Key: "notified_at", Value: []byte(strconv.FormatInt(note.NotifiedAt, 10))},
		},
	}, nil
}
