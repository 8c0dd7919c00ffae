package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// saleEventPayload is the wire shape of a sale event.
type saleEventPayload struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id"`
	RequestID     string    `json:"request_id"`
	Username      string    `json:"username"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	UnitPrice     string    `json:"unit_price"`
	Total         string    `json:"total"`
	BalanceAfter  string    `json:"balance_after"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// KafkaPublisher writes sale events to one topic, keyed by customer so a
// customer's events stay ordered within a partition.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, cfg.WriteTimeout)
}

func NewKafkaPublisherWithWriter(writer MessageWriter, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{writer: writer, timeout: timeout}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.SaleEvent) error {
	msg, err := buildMessage(ctx, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildMessage(ctx context.Context, event domain.SaleEvent) (kafka.Message, error) {
	r := event.Record
	value, err := json.Marshal(saleEventPayload{
		Type:          string(event.Type),
		TransactionID: r.TransactionID,
		RequestID:     r.RequestID,
		Username:      r.CustomerID,
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice.StringFixed(2),
		Total:         r.Total.StringFixed(2),
		BalanceAfter:  r.BalanceAfter.StringFixed(2),
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		OccurredAt:    event.OccurredAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode sale event: %w", err)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Key:     []byte(r.CustomerID),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	}, nil
}
