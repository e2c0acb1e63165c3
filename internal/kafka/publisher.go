package kafka

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/segmentio/kafka-go"
	"strconv"
)

// Sink publishes order envelopes through a Producer.
type Sink struct{ P *Producer }

var _ orders.EventSink = Sink{}

func (s Sink) Publish(_ context.Context, topic string, key []byte, env orders.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.P.Publish(topic, key, b,
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
