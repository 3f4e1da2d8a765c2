// Package events publishes order status changes to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/order"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.EventPublisher = (*Publisher)(nil)

// Publisher writes one message per status change, keyed by order id so that
// changes of one order stay in one partition.
type Publisher struct {
	writer  messageWriter
	brokers []string
	topic   string
	lg      *zap.Logger
}

// NewPublisher creates a Publisher for topic on brokers.
func NewPublisher(brokers []string, topic string, lg *zap.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       zap.NewStdLog(lg.With(zap.String("kafka_component", "producer"))),
		ErrorLogger:  zap.NewStdLog(lg.With(zap.String("kafka_component", "producer"))),
	}
	lg.Info("Kafka publisher initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)
	return &Publisher{writer: w, brokers: brokers, topic: topic, lg: lg}
}

// Ping dials the brokers until one accepts a connection.
func (p *Publisher) Ping(ctx context.Context) error {
	var lastErr error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	if lastErr == nil {
		return errors.New("no kafka brokers configured")
	}
	return errors.Wrap(lastErr, "dial kafka")
}

// PublishStatusChange writes c to the topic.
func (p *Publisher) PublishStatusChange(ctx context.Context, c order.StatusChange) error {
	msg := kafka.Message{
		Key:   []byte(c.OrderID),
		Value: EncodeStatusChange(c),
		Time:  c.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write status change to %q", p.topic)
	}
	p.lg.Debug("Published status change",
		zap.String("order_id", c.OrderID),
		zap.String("status", string(c.Status)),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return errors.Wrap(err, "close kafka writer")
	}
	return nil
}

// EncodeStatusChange renders the message value.
func EncodeStatusChange(c order.StatusChange) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(c.OrderID)
	e.FieldStart("status")
	e.Str(string(c.Status))
	if c.PaymentIntentID != "" {
		e.FieldStart("paymentIntentId")
		e.Str(c.PaymentIntentID)
	}
	if c.EventID != "" {
		e.FieldStart("eventId")
		e.Str(c.EventID)
	}
	e.FieldStart("occurredAt")
	e.Str(c.OccurredAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

// Nop discards status changes. It is used when no brokers are configured.
type Nop struct {
	lg *zap.Logger
}

var _ order.EventPublisher = Nop{}

// NewNop creates a Nop publisher.
func NewNop(lg *zap.Logger) Nop { return Nop{lg: lg} }

// PublishStatusChange logs c at debug level.
func (n Nop) PublishStatusChange(_ context.Context, c order.StatusChange) error {
	if n.lg != nil {
		n.lg.Debug("Status change not published, no brokers configured",
			zap.String("order_id", c.OrderID),
			zap.String("status", string(c.Status)),
		)
	}
	return nil
}
