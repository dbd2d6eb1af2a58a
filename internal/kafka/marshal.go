package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ariefcatur/order-inventory/internal/orders"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// EncodeEnvelope builds the wire message for an event.
func EncodeEnvelope(key []byte, env orders.Envelope) (kafka.Message, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", env.EventType, err)
	}
	return kafka.Message{
		Key:   key,
		Value: b,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(env.EventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}, nil
}

func DecodeEnvelope(m kafka.Message) (orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return orders.Envelope{}, fmt.Errorf("decode envelope at offset %d: %w", m.Offset, err)
	}
	if env.EventID == "" {
		return orders.Envelope{}, errors.New("envelope without event_id")
	}
	return env, nil
}
