package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// envelope is the wire shape of a mirrored event.
type envelope struct {
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// KafkaBridge mirrors bus events onto a Kafka topic. It subscribes to the
// event types worth exporting and writes each as a JSON envelope. Write
// failures are logged and dropped; the bus never blocks on the broker.
type KafkaBridge struct {
	writer *kafka.Writer
}

// NewKafkaBridge creates a bridge writing to the given brokers and topic.
func NewKafkaBridge(brokers []string, topic string) *KafkaBridge {
	return &KafkaBridge{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Attach subscribes the bridge to the exported event types on the bus.
func (kb *KafkaBridge) Attach(bus *Bus) {
	for _, eventType := range []EventType{
		EventTypeBetPlaced,
		EventTypeMarketResolved,
		EventTypePeriodClosed,
	} {
		bus.Subscribe(eventType, kb.handle)
	}
}

func (kb *KafkaBridge) handle(event Event) {
	payload, err := json.Marshal(envelope{
		Type:       event.Type(),
		OccurredAt: time.Now().UTC(),
		Payload:    event,
	})
	if err != nil {
		log.WithError(err).WithField("event_type", event.Type()).Error("Failed to marshal event for Kafka")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Type()),
		Value: payload,
	}
	if err := kb.writer.WriteMessages(ctx, msg); err != nil {
		log.WithError(err).WithField("event_type", event.Type()).Error("Failed to publish event to Kafka")
	}
}

// Close flushes and closes the underlying writer.
func (kb *KafkaBridge) Close() error {
	if err := kb.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
