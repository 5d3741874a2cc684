// Package kafka publishes accepted order writes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/segmentio/kafka-go"
)

var _ ports.OrderEventPublisher = (*OrderEventPublisher)(nil)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEventPublisher writes one JSON message per event, keyed by order id
// so changes to the same order land on the same partition in order.
type OrderEventPublisher struct {
	writer MessageWriter
}

// NewWriter builds a synchronous writer that waits for all in-sync replicas.
func NewWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errs.NewValueIsRequiredError("kafka brokers")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errs.NewValueIsRequiredError("kafka topic")
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		Async:        false,
	}, nil
}

func NewOrderEventPublisher(writer MessageWriter) (*OrderEventPublisher, error) {
	if writer == nil {
		return nil, errs.NewValueIsRequiredError("writer")
	}
	return &OrderEventPublisher{writer: writer}, nil
}

func (p *OrderEventPublisher) PublishOrderChanged(ctx context.Context, event ports.OrderChangedEvent) error {
	if event.OrderID == "" {
		return errs.NewValueIsRequiredError("order id")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order changed event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("order.changed")},
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return errs.NewStoreUnavailableError("publish order changed", err)
	}
	return nil
}

func (p *OrderEventPublisher) Close() error {
	return p.writer.Close()
}
