// Package payment consumes order created events and drives payment initiation.
//
// Each delivery moves through RECEIVED, DESERIALIZED and then PROCESSED or
// FAILED, and every step is recorded in the inbox.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/dlq"
	"github.com/safar/marketplace-orders/internal/events"
	"github.com/safar/marketplace-orders/internal/metrics"
)

type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       string
	Value     []byte
}

type DeadLetterQueue interface {
	Push(ctx context.Context, msg dlq.Message) error
}

type Processor struct {
	inbox     Inbox
	initiator Initiator
	dlq       DeadLetterQueue
	policy    string
	now       func() time.Time
}

// NewProcessor wires the processor. deadLetters may be nil unless policy is
// config.FailurePolicyDeadLetter.
func NewProcessor(inbox Inbox, initiator Initiator, deadLetters DeadLetterQueue, policy string) (*Processor, error) {
	switch policy {
	case config.FailurePolicyLog:
	case config.FailurePolicyDeadLetter:
		if deadLetters == nil {
			return nil, fmt.Errorf("failure policy %q needs a dead letter queue", policy)
		}
	default:
		return nil, fmt.Errorf("unknown failure policy %q", policy)
	}

	return &Processor{
		inbox:     inbox,
		initiator: initiator,
		dlq:       deadLetters,
		policy:    policy,
		now:       time.Now,
	}, nil
}

// Handle adapts a sarama message to Process.
func (p *Processor) Handle(ctx context.Context, m *sarama.ConsumerMessage) error {
	return p.Process(ctx, Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
		Value:     m.Value,
	})
}

// Process returns nil once the message is handled, successfully or not.
// An error means the outcome could not be recorded and the message must be
// delivered again.
func (p *Processor) Process(ctx context.Context, msg Message) error {
	ctx, span := otel.Tracer("payment").Start(ctx, "payment.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.partition", int(msg.Partition)),
		attribute.Int64("messaging.offset", msg.Offset),
	)

	logger := log.With().
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	prev, err := p.inbox.Receive(ctx, msg)
	if err != nil {
		return err
	}
	if prev.Terminal() {
		logger.Info().Str("state", string(prev)).Msg("duplicate delivery skipped")
		return nil
	}
	logger.Info().Ctx(ctx).Str("state", string(StateReceived)).Msg("order event received")

	event, err := events.Decode(msg.Value)
	if err != nil {
		span.SetStatus(codes.Error, "deserialization failed")
		return p.fail(ctx, logger, msg, nil, err)
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		span.SetStatus(codes.Error, "invalid order id")
		return p.fail(ctx, logger, msg, nil, fmt.Errorf("parse order id: %w", err))
	}
	if err := p.inbox.Advance(ctx, msg, Transition{State: StateDeserialized, OrderID: &orderID}); err != nil {
		return err
	}

	logger = logger.With().Str("orderId", event.OrderID).Logger()
	logOrder(ctx, logger, event)

	payment, err := p.initiator.Initiate(ctx, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment initiation failed")
		return p.fail(ctx, logger, msg, &orderID, err)
	}

	t := Transition{State: StateProcessed}
	if payment != nil {
		t.PaymentID = &payment.ID
	}
	if err := p.inbox.Advance(ctx, msg, t); err != nil {
		return err
	}

	metrics.PaymentMessages.WithLabelValues(string(StateProcessed)).Inc()
	logger.Info().Ctx(ctx).Str("state", string(StateProcessed)).Msg("order event processed")
	return nil
}

func (p *Processor) fail(ctx context.Context, logger zerolog.Logger, msg Message, orderID *uuid.UUID, cause error) error {
	logger.Error().Ctx(ctx).Err(cause).Str("state", string(StateFailed)).Str("policy", p.policy).Msg("order event processing failed")

	if p.policy == config.FailurePolicyDeadLetter {
		err := p.dlq.Push(ctx, dlq.Message{
			At:        p.now().UTC(),
			Error:     cause.Error(),
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Payload:   string(msg.Value),
		})
		if err != nil {
			return fmt.Errorf("dead letter: %w", err)
		}
	}

	if err := p.inbox.Advance(ctx, msg, Transition{State: StateFailed, OrderID: orderID, Error: cause.Error()}); err != nil {
		return err
	}

	metrics.PaymentMessages.WithLabelValues(string(StateFailed)).Inc()
	return nil
}

func logOrder(ctx context.Context, logger zerolog.Logger, event events.OrderCreated) {
	logger.Info().Ctx(ctx).
		Str("state", string(StateDeserialized)).
		Str("buyerId", event.BuyerID).
		Str("totalAmount", event.TotalAmount.String()).
		Str("status", event.Status).
		Int("items", len(event.Items)).
		Msg("order event deserialized")

	for i, item := range event.Items {
		logger.Debug().Ctx(ctx).
			Int("line", i+1).
			Str("productName", item.ProductName).
			Str("productPrice", item.ProductPrice.String()).
			Int("quantity", item.Quantity).
			Str("totalPrice", item.TotalPrice.String()).
			Msg("order event item")
	}
}
