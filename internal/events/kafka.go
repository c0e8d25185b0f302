// Package events publishes a durable audit trail of resolution outcomes to
// Kafka, independent of and in addition to the slog-based logging the rest
// of the hub relies on (§10.1, §11.2).
package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer wraps a kafka-go writer for publishing resolution events. If
// disabled or given no brokers, every Publish call is a no-op, letting the
// hub run without a broker in dev/test (KAFKA_ENABLED, mirroring
// AttaboyGO's own KafkaEnabled flag).
type Producer struct {
	writer  *kafka.Writer
	logger  *slog.Logger
	enabled bool
}

// NewProducer creates a Kafka producer.
func NewProducer(brokers string, enabled bool, logger *slog.Logger) *Producer {
	if !enabled || brokers == "" {
		logger.Info("kafka producer disabled")
		return &Producer{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka producer initialized", "brokers", brokers)
	return &Producer{writer: w, logger: logger, enabled: true}
}

// Publish sends a message to the given topic. No-op if disabled; failures
// are logged rather than returned since this is an additive audit channel
// and must never block the settlement path it records (§11.2).
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) {
	if !p.enabled {
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value}); err != nil {
		p.logger.Warn("kafka publish failed", "topic", topic, "error", err)
	}
}

// Close shuts down the Kafka writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// ── resolution event payloads ────────────────────────────────────────────────

const (
	TopicResolutionEvents = "resolution-events"

	EventResolutionSettled = "resolution.settled"
	EventResolutionFailed  = "resolution.failed"
)

// ResolutionEvent is the JSON body published once per ResolveMarket run,
// settled or failed.
type ResolutionEvent struct {
	Type        string    `json:"type"`
	MarketID    string    `json:"marketId"`
	Outcome     int       `json:"outcome"`
	Winners     int       `json:"winners,omitempty"`
	Losers      int       `json:"losers,omitempty"`
	TotalPayout string    `json:"totalPayout,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
